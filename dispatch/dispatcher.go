package dispatch

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/sglre6355/slashkit/customid"
	"github.com/sglre6355/slashkit/definitions"
	"github.com/sglre6355/slashkit/runtimes"
)

// Embed colors for pipeline replies.
const (
	colorYellow = 0xFFFF00
	colorRed    = 0xFF0000
)

// Config wires a Dispatcher. All middleware, adapter and validator
// registration happens here, once at startup; the pipeline itself holds no
// hidden global state.
type Config struct {
	Registry    *definitions.Registry
	Store       *runtimes.Store
	Middlewares []MiddlewareEntry
	Adapters    TypeAdapterRegistry
	Validators  ValidatorRegistry
	// Responders overrides the responder construction, used by tests.
	Responders ResponderFactory
}

// Dispatcher resolves incoming interaction events to a definition and
// session, runs the middleware chain, adapts arguments and invokes the
// handler. It is safe to run on multiple events simultaneously, including
// two events referencing the same Runtime.
type Dispatcher struct {
	registry    *definitions.Registry
	store       *runtimes.Store
	middlewares map[Priority][]Middleware
	adapters    TypeAdapterRegistry
	validators  ValidatorRegistry
	responders  ResponderFactory
}

// NewDispatcher creates a Dispatcher from the given configuration.
func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		registry:    cfg.Registry,
		store:       cfg.Store,
		middlewares: make(map[Priority][]Middleware),
		adapters:    cfg.Adapters,
		validators:  cfg.Validators,
		responders:  cfg.Responders,
	}
	if d.adapters == nil {
		d.adapters = DefaultAdapters()
	}
	if d.validators == nil {
		d.validators = DefaultValidators()
	}
	if d.responders == nil {
		d.responders = NewDiscordResponder
	}
	for _, entry := range cfg.Middlewares {
		d.middlewares[entry.Priority] = append(d.middlewares[entry.Priority], entry.Func)
	}
	return d
}

// HandleInteraction is the discordgo event handler. Every event runs on its
// own goroutine so a slow handler cannot stall unrelated events.
func (d *Dispatcher) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	go d.Dispatch(s, i)
}

// Dispatch processes one interaction event to a terminal outcome. It never
// panics and never returns an error: every failure ends in a log entry and,
// where a user is waiting, a single user-facing reply.
func (d *Dispatcher) Dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		d.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		d.handleAutoComplete(s, i)
	case discordgo.InteractionMessageComponent:
		d.handleComponent(s, i)
	case discordgo.InteractionModalSubmit:
		d.handleModal(s, i)
	}
}

func (d *Dispatcher) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	responder := d.responders(s, i.Interaction)
	path, rawOptions := commandPath(i.ApplicationCommandData())

	def, ok := d.registry.CommandByPath(path)
	if !ok {
		slog.Error("no definition found for command, declarations and registry are out of sync",
			"command", path)
		d.respondEmbed(responder, def, "Error", "This command is not recognized.", colorYellow)
		return
	}

	// A fresh top-level command invocation starts a new conversation.
	rt := d.store.Create()
	ev := &CommandEvent{baseEvent: d.newBaseEvent(s, i, rt, responder, def)}

	if !d.runMiddlewares(s, i, def, rt, ev, responder) {
		return
	}

	var args []any
	if def.Kind == definitions.KindSlashCommand {
		var err error
		args, err = d.adaptArguments(def.Command.Options, slashRawValue(rawOptions), ev)
		if err != nil {
			d.respondInputError(responder, def, err)
			return
		}
	}

	d.invoke(def, rt, ev, args, responder)
}

func (d *Dispatcher) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	def, rt, responder, ok := d.resolveCustomID(s, i, data.CustomID)
	if !ok {
		return
	}

	ev := &ComponentEvent{
		baseEvent: d.newBaseEvent(s, i, rt, responder, def),
		Values:    data.Values,
	}
	if !d.runMiddlewares(s, i, def, rt, ev, responder) {
		return
	}
	d.invoke(def, rt, ev, nil, responder)
}

func (d *Dispatcher) handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	def, rt, responder, ok := d.resolveCustomID(s, i, data.CustomID)
	if !ok {
		return
	}

	ev := &ModalEvent{baseEvent: d.newBaseEvent(s, i, rt, responder, def)}
	if !d.runMiddlewares(s, i, def, rt, ev, responder) {
		return
	}

	var args []any
	if def.Modal != nil {
		values := modalValues(data)
		var err error
		args, err = d.adaptArguments(def.Modal.Options, func(name string) (string, bool) {
			v, ok := values[name]
			return v, ok
		}, ev)
		if err != nil {
			d.respondInputError(responder, def, err)
			return
		}
	}

	d.invoke(def, rt, ev, args, responder)
}

// handleAutoComplete follows the resolve and invoke shape without middleware
// or constraint validation, and never mutates the session store.
func (d *Dispatcher) handleAutoComplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	path, rawOptions := commandPath(i.ApplicationCommandData())

	cmd, ok := d.registry.CommandByPath(path)
	if !ok || cmd.Command.AutoCompleteID == "" {
		slog.Warn("no autocomplete rule serves this command", "command", path)
		return
	}
	rule, ok := d.registry.Rule(cmd.Command.AutoCompleteID)
	if !ok {
		slog.Error("autocomplete rule vanished between indexing and dispatch",
			"command", path, "definition_id", cmd.Command.AutoCompleteID)
		return
	}

	responder := d.responders(s, i.Interaction)
	ev := &AutoCompleteEvent{baseEvent: d.newBaseEvent(s, i, nil, responder, rule)}
	for _, opt := range rawOptions {
		if opt.Focused {
			ev.Focused = opt.Name
			ev.Raw = rawValue(opt)
			break
		}
	}

	d.invoke(rule, nil, ev, nil, responder)
}

// resolveCustomID decodes the custom id and resolves the Definition and
// Runtime it names. Malformed ids are silently ignored; a missing definition
// is a framework bug; bound ids whose Runtime is gone get an expiration
// reply carrying the definition's reply configuration.
func (d *Dispatcher) resolveCustomID(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	raw string,
) (*definitions.Definition, *runtimes.Runtime, Responder, bool) {
	cid, err := customid.Parse(raw)
	if err != nil {
		slog.Debug("ignoring interaction with foreign custom id", "custom_id", raw)
		return nil, nil, nil, false
	}

	responder := d.responders(s, i.Interaction)

	def, ok := d.registry.ByID(cid.DefinitionID())
	if !ok {
		slog.Error("no definition found for custom id, this is a framework bug",
			"definition_id", cid.DefinitionID(), "error", ErrNoDefinitionFound)
		d.respondEmbed(responder, nil, "Error",
			"An internal error occurred while processing your interaction.", colorRed)
		return nil, nil, nil, false
	}

	var rt *runtimes.Runtime
	if sessionID, bound := cid.SessionID(); bound {
		rt, err = d.store.Get(sessionID)
		if err != nil {
			slog.Debug("interaction references an expired session", "session_id", sessionID)
			d.respondEmbed(responder, def, "Timed Out",
				"This interaction timed out and can no longer be used.", colorYellow)
			return nil, nil, nil, false
		}
		rt.Touch()
	}
	return def, rt, responder, true
}

func (d *Dispatcher) newBaseEvent(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	rt *runtimes.Runtime,
	responder Responder,
	def *definitions.Definition,
) baseEvent {
	return baseEvent{
		Session:     s,
		Interaction: i,
		Runtime:     rt,
		Responder:   responder,
		definition:  def,
		store:       d.store,
	}
}

// runMiddlewares executes the bands in order. A cancelled context
// short-circuits the rest of the chain and the handler; the cancelling
// middleware's reply becomes the outcome.
func (d *Dispatcher) runMiddlewares(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	def *definitions.Definition,
	rt *runtimes.Runtime,
	ev any,
	responder Responder,
) bool {
	ctx := &Context{
		Event:      ev,
		Definition: def,
		Runtime:    rt,
		Session:    s,
		Inter:      i,
	}
	for _, band := range priorities {
		for _, m := range d.middlewares[band] {
			m(ctx)
			if ctx.Cancelled() {
				d.respondEmbed(responder, def, ctx.cancelTitle, ctx.cancelText, colorYellow)
				return false
			}
		}
	}
	return true
}

// adaptArguments converts each declared option's raw value into the declared
// parameter type and runs its constraint validators. The first failure
// aborts; constraints after a failing parameter never execute.
func (d *Dispatcher) adaptArguments(
	options []definitions.Option,
	raw func(name string) (string, bool),
	ev any,
) ([]any, error) {
	args := make([]any, 0, len(options))
	for _, opt := range options {
		rawVal, present := raw(opt.Name)
		if !present {
			args = append(args, nil)
			continue
		}

		adapter, ok := d.adapters.Lookup(opt.Type)
		if !ok {
			return nil, &TypeAdaptingError{Param: opt.Name, Type: opt.Type, Raw: rawVal}
		}
		value, ok := adapter(rawVal, ev)
		if !ok {
			return nil, &TypeAdaptingError{Param: opt.Name, Type: opt.Type, Raw: rawVal}
		}

		for _, constraint := range opt.Constraints {
			validator, ok := d.validators.Lookup(constraint.Kind, opt.Type)
			if !ok {
				slog.Warn("no validator registered for constraint",
					"constraint", constraint.Kind, "type", opt.Type)
				continue
			}
			pass, message := validator(value, constraint)
			if !pass {
				if constraint.Message != "" {
					message = constraint.Message
				}
				return nil, &ConstraintError{Param: opt.Name, Message: message}
			}
		}

		args = append(args, value)
	}
	return args, nil
}

// invoke calls the handler on the Runtime-scoped unit instance. Errors and
// panics are translated to a user-facing reply and never propagate; the
// Runtime stays live regardless of outcome unless the handler closed it.
func (d *Dispatcher) invoke(
	def *definitions.Definition,
	rt *runtimes.Runtime,
	ev any,
	args []any,
	responder Responder,
) {
	var (
		instance any
		err      error
	)
	if rt != nil {
		instance, err = rt.Instance(def.UnitName)
	} else {
		instance, err = d.store.Instantiate(def.UnitName)
	}
	if err != nil {
		slog.Error("failed to construct unit instance",
			"unit", def.UnitName, "handler", def.HandlerName, "error", err)
		d.respondEmbed(responder, def, "Error",
			"An internal error occurred while processing your interaction.", colorRed)
		return
	}

	if err := d.safeInvoke(def, instance, ev, args); err != nil {
		slog.Error("handler execution failed",
			"unit", def.UnitName, "handler", def.HandlerName, "error", err)
		d.respondEmbed(responder, def, "Error",
			"An error occurred while processing your interaction.", colorRed)
	}
}

func (d *Dispatcher) safeInvoke(def *definitions.Definition, instance, ev any, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExecutionError{
				Unit:    def.UnitName,
				Handler: def.HandlerName,
				Err:     errors.New("panic: " + panicString(r)),
			}
		}
	}()
	if e := def.Func(instance, ev, args); e != nil {
		err = &ExecutionError{Unit: def.UnitName, Handler: def.HandlerName, Err: e}
	}
	return
}

func panicString(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "unexpected panic value"
}

func (d *Dispatcher) respondInputError(responder Responder, def *definitions.Definition, err error) {
	var (
		adaptErr      *TypeAdaptingError
		constraintErr *ConstraintError
	)
	switch {
	case errors.As(err, &adaptErr):
		d.respondEmbed(responder, def, "Invalid Input",
			"Could not interpret "+strconv.Quote(adaptErr.Raw)+" as "+adaptErr.Type+
				" for parameter `"+adaptErr.Param+"`.", colorYellow)
	case errors.As(err, &constraintErr):
		d.respondEmbed(responder, def, "Invalid Input",
			"Parameter `"+constraintErr.Param+"`: "+constraintErr.Message, colorYellow)
	default:
		d.respondEmbed(responder, def, "Error",
			"An internal error occurred while processing your interaction.", colorRed)
	}
}

// respondEmbed sends an embed reply. Failures to respond are logged, not
// propagated; the pipeline boundary always produces a terminal outcome.
func (d *Dispatcher) respondEmbed(
	responder Responder,
	def *definitions.Definition,
	title, description string,
	color int,
) {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       title,
				Description: description,
				Color:       color,
			},
		},
	}
	if def != nil && def.Reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := responder.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		slog.Error("failed to send embed response", "error", err)
	}
}

// commandPath walks the subcommand nesting of the interaction data and
// returns the full space-joined command path plus the leaf options.
func commandPath(
	data discordgo.ApplicationCommandInteractionData,
) (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	segments := []string{data.Name}
	options := data.Options
	for len(options) == 1 &&
		(options[0].Type == discordgo.ApplicationCommandOptionSubCommand ||
			options[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup) {
		segments = append(segments, options[0].Name)
		options = options[0].Options
	}
	return strings.Join(segments, " "), options
}

// slashRawValue exposes the leaf options of a slash command invocation as raw
// strings keyed by option name.
func slashRawValue(
	options []*discordgo.ApplicationCommandInteractionDataOption,
) func(name string) (string, bool) {
	return func(name string) (string, bool) {
		for _, opt := range options {
			if opt.Name == name {
				return rawValue(opt), true
			}
		}
		return "", false
	}
}

// rawValue renders an option value the way it arrived from the platform: a
// string, or a typed value rendered back to its textual form for the
// adapter.
func rawValue(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	switch v := opt.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// modalValues extracts the submitted text input values keyed by their custom
// id.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			if input, ok := component.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}
