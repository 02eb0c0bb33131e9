// Package definitions turns raw handler metadata into immutable, validated
// Definition values and groups autocomplete rules with the commands they
// augment. The metadata itself is produced by an external scanner or
// dependency-injection layer; this package only reads names, parameter types
// and annotation values.
package definitions

import "time"

// Kind enumerates the closed set of interaction kinds a handler can declare.
type Kind int

const (
	KindSlashCommand Kind = iota
	KindContextCommand
	KindButton
	KindSelectMenu
	KindModal
	KindAutoComplete
)

func (k Kind) String() string {
	switch k {
	case KindSlashCommand:
		return "slash command"
	case KindContextCommand:
		return "context command"
	case KindButton:
		return "button"
	case KindSelectMenu:
		return "select menu"
	case KindModal:
		return "modal"
	case KindAutoComplete:
		return "autocomplete"
	default:
		return "unknown"
	}
}

// Scope declares where a command is deployed.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeGuild
)

// HandlerFunc is the uniform invocation shape for all handler kinds. The
// instance is the unit instance scoped to the current Runtime (nil for
// applications that use closures), ev is the kind-specific event and args are
// the adapted parameter values in declaration order.
type HandlerFunc func(instance any, ev any, args []any) error

// ReplyConfig controls how replies produced for an interaction behave.
// Handler-level config overrides unit-level config, which overrides the
// configured global default.
type ReplyConfig struct {
	Ephemeral      bool
	EditReply      bool
	KeepComponents bool
}

// Constraint is one validation annotation attached to a parameter.
type Constraint struct {
	// Kind names the constraint, e.g. "min", "max", "pattern".
	Kind string
	// Value is the annotation value the validator interprets.
	Value any
	// Message overrides the validator's failure message when non-empty.
	Message string
}

// Option describes one declared command option or modal text input, including
// the parameter type its value is adapted to.
type Option struct {
	Name         string
	Description  string
	Type         string
	Required     bool
	AutoComplete bool
	Constraints  []Constraint
}

// Param describes one parameter of a handler's declared signature.
type Param struct {
	Name string
	Type string
}

// Handler is the raw description of one annotated handler method.
type Handler struct {
	Name string
	Kind Kind

	// Label is the space-delimited command path for command kinds, the
	// component/modal title for component kinds.
	Label string
	// Commands lists the command names an autocomplete rule augments, by
	// exact or prefix match. Only set for KindAutoComplete.
	Commands []string
	// Target is "user" or "message" for context commands.
	Target string

	Description string
	Options     []Option
	Params      []Param
	Permissions []string
	Reply       *ReplyConfig
	Cooldown    time.Duration
	Scope       Scope
	NSFW        bool
	GuildOnly   bool
	Func        HandlerFunc
}

// Unit is the raw description of one declaring unit and its handlers.
type Unit struct {
	Name        string
	Permissions []string
	Reply       *ReplyConfig
	Cooldown    time.Duration
	Handlers    []Handler
}
