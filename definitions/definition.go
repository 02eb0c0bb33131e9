package definitions

import (
	"hash/fnv"
	"strconv"
	"time"
)

// Definition is the immutable, validated form of one declared handler. The
// Kind tag selects which of the per-kind payloads is set; the dispatch
// resolver switches exhaustively on it.
type Definition struct {
	Kind         Kind
	UnitName     string
	HandlerName  string
	DefinitionID string
	Permissions  []string
	Reply        ReplyConfig
	Cooldown     time.Duration
	Func         HandlerFunc

	Command      *CommandSpec
	Component    *ComponentSpec
	Modal        *ModalSpec
	AutoComplete *AutoCompleteSpec
}

// CommandSpec carries the command-specific payload for slash and context
// commands.
type CommandSpec struct {
	// Label is the declared, unsanitized command path.
	Label string
	// Path is the sanitized label path for slash commands, at most three
	// segments deep. Context commands carry their verbatim name as the only
	// segment.
	Path        []string
	Description string
	// Target is "user" or "message" for context commands.
	Target    string
	Options   []Option
	Scope     Scope
	NSFW      bool
	GuildOnly bool
	// AutoCompleteID is the definition id of the autocomplete rule serving
	// this command, empty if none matched.
	AutoCompleteID string
}

// ComponentSpec carries the payload for buttons and select menus.
type ComponentSpec struct {
	Label string
}

// ModalSpec carries the payload for modals, whose options are its text
// inputs.
type ModalSpec struct {
	Title   string
	Options []Option
}

// AutoCompleteSpec carries the command references of an autocomplete rule.
type AutoCompleteSpec struct {
	Commands []string
}

// Routable reports whether incoming events can target this definition
// directly. Autocomplete rules are reached through the command they augment,
// never by id.
func (d *Definition) Routable() bool {
	return d.Kind != KindAutoComplete
}

// ComputeID derives the stable definition id from the declaring unit's name
// and the handler's name. It only changes when one of the two names changes.
func ComputeID(unitName, handlerName string) string {
	h := fnv.New32a()
	h.Write([]byte(unitName))
	h.Write([]byte(handlerName))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}
