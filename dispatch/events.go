package dispatch

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/sglre6355/slashkit/customid"
	"github.com/sglre6355/slashkit/definitions"
	"github.com/sglre6355/slashkit/runtimes"
)

// baseEvent carries what every handler needs: the session, the raw
// interaction, the Runtime the event belongs to (nil for independent and
// autocomplete interactions) and a Responder for replies.
type baseEvent struct {
	Session     *discordgo.Session
	Interaction *discordgo.InteractionCreate
	Runtime     *runtimes.Runtime
	Responder   Responder

	definition *definitions.Definition
	store      *runtimes.Store
}

// Definition returns the definition of the handler being invoked.
func (e *baseEvent) Definition() *definitions.Definition {
	return e.definition
}

// ComponentID mints a custom id for another handler of the same unit. When
// the event runs inside a Runtime the id is bound to it, so the component
// routes back to this conversation; otherwise it is independent.
func (e *baseEvent) ComponentID(handlerName string) (string, error) {
	definitionID := definitions.ComputeID(e.definition.UnitName, handlerName)
	if e.Runtime == nil {
		return customid.NewIndependent(definitionID).String(), nil
	}
	id, err := customid.Bound(e.Runtime.ID(), definitionID)
	if err != nil {
		return "", fmt.Errorf("failed to mint component id: %w", err)
	}
	return id.String(), nil
}

// CloseSession destroys the Runtime this event belongs to. Later events
// bound to its id fail as expired.
func (e *baseEvent) CloseSession() {
	if e.Runtime != nil {
		e.store.Close(e.Runtime.ID())
	}
}

// Reply sends a plain text response, honoring the definition's reply
// configuration.
func (e *baseEvent) Reply(content string) error {
	data := &discordgo.InteractionResponseData{Content: content}
	if e.definition.Reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return e.Responder.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// CommandEvent is the leading parameter of slash and context command
// handlers.
type CommandEvent struct {
	baseEvent
}

// ComponentEvent is the leading parameter of button and select menu
// handlers. Values holds the selected values for select menus.
type ComponentEvent struct {
	baseEvent
	Values []string
}

// ModalEvent is the leading parameter of modal handlers.
type ModalEvent struct {
	baseEvent
}

// AutoCompleteEvent is the leading parameter of autocomplete handlers. Its
// job is to produce candidate values, not to execute a command: it runs
// without middleware, constraint validation or session mutation.
type AutoCompleteEvent struct {
	baseEvent
	// Focused is the name of the option currently being completed.
	Focused string
	// Raw is the partial input the user has typed so far.
	Raw string
}

// RespondChoices sends the candidate values back to the platform.
func (e *AutoCompleteEvent) RespondChoices(choices []*discordgo.ApplicationCommandOptionChoice) error {
	return e.Responder.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}
