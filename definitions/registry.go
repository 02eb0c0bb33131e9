package definitions

import (
	"log/slog"
	"strings"
	"time"
)

// IndexConfig carries the global defaults and collaborator knowledge an
// indexing pass needs.
type IndexConfig struct {
	GlobalReply    ReplyConfig
	GlobalCooldown time.Duration
	// HasAdapter reports whether a type adapter is registered for the given
	// parameter type. Handlers declaring a type without an adapter are
	// skipped. A nil func accepts every type.
	HasAdapter func(typeName string) bool
}

// Registry holds the immutable result of one indexing pass. It is safe for
// concurrent read access.
type Registry struct {
	byID map[string]*Definition
	// byPath routes incoming command events; on path duplicates the first
	// definition wins here, while commands keeps every definition so the
	// command tree builder can fail fast on the conflict.
	byPath   map[string]*Definition
	commands []*Definition
	rules    []*Definition
}

// eventParamType is the required leading parameter type per interaction kind.
var eventParamType = map[Kind]string{
	KindSlashCommand:   "CommandEvent",
	KindContextCommand: "CommandEvent",
	KindButton:         "ComponentEvent",
	KindSelectMenu:     "ComponentEvent",
	KindModal:          "ModalEvent",
	KindAutoComplete:   "AutoCompleteEvent",
}

// Index converts the given declaring units into Definitions. Invalid handlers
// are skipped with a warning; one bad declaration never prevents the rest of
// the application from starting. Autocomplete rules are collected before any
// command is built so commands can be linked to the rule augmenting them.
func Index(units []Unit, cfg IndexConfig) *Registry {
	r := &Registry{
		byID:   make(map[string]*Definition),
		byPath: make(map[string]*Definition),
	}

	// First pass: autocomplete rules must be known before commands are
	// validated.
	for _, unit := range units {
		for _, h := range unit.Handlers {
			if h.Kind != KindAutoComplete {
				continue
			}
			if def, ok := buildAutoComplete(unit, h); ok {
				r.rules = append(r.rules, def)
			}
		}
	}

	// Second pass: kind-specific builders.
	for _, unit := range units {
		for _, h := range unit.Handlers {
			if h.Kind == KindAutoComplete {
				continue
			}
			def, ok := r.build(unit, h, cfg)
			if !ok {
				continue
			}
			if existing, dup := r.byID[def.DefinitionID]; dup {
				slog.Error("skipping handler, definition id collides with another routable definition",
					"unit", unit.Name,
					"handler", h.Name,
					"existing_unit", existing.UnitName,
					"existing_handler", existing.HandlerName,
				)
				continue
			}
			r.byID[def.DefinitionID] = def
			if def.Command != nil {
				r.commands = append(r.commands, def)
				r.addCommandPath(def)
			}
		}
	}

	r.checkRules()
	return r
}

func (r *Registry) build(unit Unit, h Handler, cfg IndexConfig) (*Definition, bool) {
	if h.Func == nil {
		slog.Warn("skipping handler without a function", "unit", unit.Name, "handler", h.Name)
		return nil, false
	}
	if !validSignature(unit, h, cfg) {
		return nil, false
	}

	def := &Definition{
		Kind:         h.Kind,
		UnitName:     unit.Name,
		HandlerName:  h.Name,
		DefinitionID: ComputeID(unit.Name, h.Name),
		Permissions:  mergePermissions(unit.Permissions, h.Permissions),
		Reply:        resolveReply(unit, h, cfg),
		Cooldown:     resolveCooldown(unit, h, cfg),
		Func:         h.Func,
	}

	switch h.Kind {
	case KindSlashCommand:
		path := SanitizeLabel(h.Label)
		if len(path) == 0 {
			slog.Warn("skipping command with empty label", "unit", unit.Name, "handler", h.Name)
			return nil, false
		}
		def.Command = &CommandSpec{
			Label:          h.Label,
			Path:           path,
			Description:    h.Description,
			Options:        h.Options,
			Scope:          h.Scope,
			NSFW:           h.NSFW,
			GuildOnly:      h.GuildOnly,
			AutoCompleteID: r.ruleFor(strings.Join(path, " ")),
		}
	case KindContextCommand:
		// Context command names are not part of the slash command hierarchy:
		// the platform allows spaces and mixed case in them, and the name the
		// user sees is the name the interaction comes back with. Keep it
		// verbatim so declaration and routing agree.
		name := strings.TrimSpace(h.Label)
		if name == "" {
			slog.Warn("skipping context command with empty label", "unit", unit.Name, "handler", h.Name)
			return nil, false
		}
		def.Command = &CommandSpec{
			Label:     h.Label,
			Path:      []string{name},
			Target:    h.Target,
			Scope:     h.Scope,
			NSFW:      h.NSFW,
			GuildOnly: h.GuildOnly,
		}
	case KindButton, KindSelectMenu:
		def.Component = &ComponentSpec{Label: h.Label}
	case KindModal:
		def.Modal = &ModalSpec{Title: h.Label, Options: h.Options}
	}
	return def, true
}

func buildAutoComplete(unit Unit, h Handler) (*Definition, bool) {
	if h.Func == nil || len(h.Commands) == 0 {
		slog.Warn("skipping autocomplete rule without function or command references",
			"unit", unit.Name, "handler", h.Name)
		return nil, false
	}
	if len(h.Params) != 1 || h.Params[0].Type != eventParamType[KindAutoComplete] {
		slog.Warn("skipping autocomplete rule with invalid signature",
			"unit", unit.Name, "handler", h.Name)
		return nil, false
	}

	commands := make([]string, 0, len(h.Commands))
	for _, ref := range h.Commands {
		commands = append(commands, strings.Join(SanitizeLabel(ref), " "))
	}
	return &Definition{
		Kind:         KindAutoComplete,
		UnitName:     unit.Name,
		HandlerName:  h.Name,
		DefinitionID: ComputeID(unit.Name, h.Name),
		Func:         h.Func,
		AutoComplete: &AutoCompleteSpec{Commands: commands},
	}, true
}

// validSignature checks the handler's declared parameter shape against the
// schema of its interaction kind: a leading event parameter of the matching
// type, followed by one parameter per declared option where the kind takes
// inputs.
func validSignature(unit Unit, h Handler, cfg IndexConfig) bool {
	want, ok := eventParamType[h.Kind]
	if !ok {
		slog.Warn("skipping handler with unknown interaction kind", "unit", unit.Name, "handler", h.Name)
		return false
	}
	if len(h.Params) == 0 || h.Params[0].Type != want {
		slog.Warn("skipping handler, first parameter must be the matching event type",
			"unit", unit.Name, "handler", h.Name, "kind", h.Kind.String(), "expected", want)
		return false
	}

	var arity int
	switch h.Kind {
	case KindSlashCommand, KindModal:
		arity = len(h.Options)
	default:
		// Context commands, buttons and select menus take only the event;
		// select menu values travel on the event itself.
		arity = 0
	}
	if len(h.Params)-1 != arity {
		slog.Warn("skipping handler, parameter count does not match declared options",
			"unit", unit.Name, "handler", h.Name,
			"params", len(h.Params)-1, "options", arity)
		return false
	}

	if cfg.HasAdapter != nil && (h.Kind == KindSlashCommand || h.Kind == KindModal) {
		for i, opt := range h.Options {
			if !cfg.HasAdapter(opt.Type) {
				slog.Warn("skipping handler, no type adapter registered for parameter type",
					"unit", unit.Name, "handler", h.Name,
					"parameter", h.Params[i+1].Name, "type", opt.Type)
				return false
			}
		}
	}
	return true
}

func mergePermissions(unitPerms, handlerPerms []string) []string {
	seen := make(map[string]struct{}, len(unitPerms)+len(handlerPerms))
	var merged []string
	for _, p := range append(append([]string{}, unitPerms...), handlerPerms...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		merged = append(merged, p)
	}
	return merged
}

func resolveReply(unit Unit, h Handler, cfg IndexConfig) ReplyConfig {
	if h.Reply != nil {
		return *h.Reply
	}
	if unit.Reply != nil {
		return *unit.Reply
	}
	return cfg.GlobalReply
}

func resolveCooldown(unit Unit, h Handler, cfg IndexConfig) time.Duration {
	if h.Cooldown > 0 {
		return h.Cooldown
	}
	if unit.Cooldown > 0 {
		return unit.Cooldown
	}
	return cfg.GlobalCooldown
}

func (r *Registry) addCommandPath(def *Definition) {
	path := strings.Join(def.Command.Path, " ")
	if existing, ok := r.byPath[path]; ok {
		// The command tree builder reports this as a hard declaration
		// conflict; keep the first definition so routing stays deterministic
		// until then.
		slog.Warn("two commands sanitize to the same path",
			"path", path,
			"first", existing.UnitName+"."+existing.HandlerName,
			"second", def.UnitName+"."+def.HandlerName,
		)
		return
	}
	r.byPath[path] = def
}

// ruleFor returns the definition id of the first autocomplete rule matching
// the given sanitized command path by exact or prefix match.
func (r *Registry) ruleFor(path string) string {
	for _, rule := range r.rules {
		for _, ref := range rule.AutoComplete.Commands {
			if path == ref || strings.HasPrefix(path, ref) {
				return rule.DefinitionID
			}
		}
	}
	return ""
}

// checkRules warns about autocomplete rules that match no known command.
// They still register, they are simply never reached.
func (r *Registry) checkRules() {
	for _, rule := range r.rules {
		matched := false
		for path := range r.byPath {
			for _, ref := range rule.AutoComplete.Commands {
				if path == ref || strings.HasPrefix(path, ref) {
					matched = true
				}
			}
		}
		if !matched {
			slog.Warn("autocomplete rule matches no known command",
				"unit", rule.UnitName,
				"handler", rule.HandlerName,
				"commands", rule.AutoComplete.Commands,
			)
		}
	}
}

// ByID returns the definition with the given id.
func (r *Registry) ByID(id string) (*Definition, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// Rule returns the autocomplete rule with the given definition id.
func (r *Registry) Rule(id string) (*Definition, bool) {
	for _, rule := range r.rules {
		if rule.DefinitionID == id {
			return rule, true
		}
	}
	return nil, false
}

// CommandByPath returns the command definition routed at the given sanitized
// path, e.g. "shop buy".
func (r *Registry) CommandByPath(path string) (*Definition, bool) {
	def, ok := r.byPath[path]
	return def, ok
}

// Commands returns all slash and context command definitions, including any
// that sanitize to a conflicting path.
func (r *Registry) Commands() []*Definition {
	return r.commands
}

// SlashCommands returns all slash command definitions with the given scope.
func (r *Registry) SlashCommands(scope Scope) []*Definition {
	var out []*Definition
	for _, def := range r.commands {
		if def.Kind == KindSlashCommand && def.Command.Scope == scope {
			out = append(out, def)
		}
	}
	return out
}

// ContextCommands returns all context command definitions with the given
// scope.
func (r *Registry) ContextCommands(scope Scope) []*Definition {
	var out []*Definition
	for _, def := range r.commands {
		if def.Kind == KindContextCommand && def.Command.Scope == scope {
			out = append(out, def)
		}
	}
	return out
}
