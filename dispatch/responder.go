package dispatch

import "github.com/bwmarrin/discordgo"

// Responder provides an abstraction for responding to Discord interactions.
// This interface enables testing the pipeline without a live Discord
// connection.
type Responder interface {
	// Respond sends a response to an interaction.
	Respond(response *discordgo.InteractionResponse) error
}

// ResponderFactory builds a Responder for one incoming interaction.
type ResponderFactory func(s *discordgo.Session, i *discordgo.Interaction) Responder

// DiscordResponder implements Responder using a live Discord session.
type DiscordResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

// NewDiscordResponder creates a new DiscordResponder.
func NewDiscordResponder(s *discordgo.Session, i *discordgo.Interaction) Responder {
	return &DiscordResponder{
		session:     s,
		interaction: i,
	}
}

// Respond sends a response to the interaction via Discord API.
func (r *DiscordResponder) Respond(response *discordgo.InteractionResponse) error {
	return r.session.InteractionRespond(r.interaction, response)
}

// MockResponder is a test double for Responder.
type MockResponder struct {
	Responses []*discordgo.InteractionResponse
	Err       error
}

// Respond records the response for testing.
func (m *MockResponder) Respond(response *discordgo.InteractionResponse) error {
	m.Responses = append(m.Responses, response)
	return m.Err
}

// LastResponse returns the most recent recorded response, nil if none.
func (m *MockResponder) LastResponse() *discordgo.InteractionResponse {
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}
