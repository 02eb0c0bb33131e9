package dispatch

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sglre6355/slashkit/customid"
	"github.com/sglre6355/slashkit/definitions"
	"github.com/sglre6355/slashkit/runtimes"
)

type invocation struct {
	instance any
	ev       any
	args     []any
}

type recorder struct {
	invocations []invocation
	err         error
	panicMsg    string
}

func (r *recorder) handler(instance any, ev any, args []any) error {
	r.invocations = append(r.invocations, invocation{instance: instance, ev: ev, args: args})
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	return r.err
}

func newTestDispatcher(t *testing.T, units []definitions.Unit, extra ...MiddlewareEntry) (*Dispatcher, *runtimes.Store, *MockResponder) {
	t.Helper()

	adapters := DefaultAdapters()
	registry := definitions.Index(units, definitions.IndexConfig{HasAdapter: adapters.Has})
	store := runtimes.NewStore(nil, runtimes.Explicit{})
	responder := &MockResponder{}

	d := NewDispatcher(Config{
		Registry:    registry,
		Store:       store,
		Middlewares: extra,
		Adapters:    adapters,
		Responders: func(*discordgo.Session, *discordgo.Interaction) Responder {
			return responder
		},
	})
	return d, store, responder
}

func shopUnit(rec *recorder, options ...definitions.Option) []definitions.Unit {
	params := []definitions.Param{{Name: "event", Type: "CommandEvent"}}
	for _, opt := range options {
		params = append(params, definitions.Param{Name: opt.Name, Type: opt.Type})
	}
	return []definitions.Unit{{
		Name: "shop.ShopUnit",
		Handlers: []definitions.Handler{
			{
				Name:    "onBuy",
				Kind:    definitions.KindSlashCommand,
				Label:   "shop buy",
				Options: options,
				Params:  params,
				Func:    rec.handler,
			},
			{
				Name:   "onBuyAgain",
				Kind:   definitions.KindButton,
				Label:  "Buy again",
				Params: []definitions.Param{{Name: "event", Type: "ComponentEvent"}},
				Func:   rec.handler,
			},
		},
	}}
}

func commandInteraction(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: options,
		},
		Member: &discordgo.Member{User: &discordgo.User{ID: "100000000000000001"}},
	}}
}

func shopBuyInteraction(item string) *discordgo.InteractionCreate {
	return commandInteraction("shop", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "buy",
		Type: discordgo.ApplicationCommandOptionSubCommand,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "item", Type: discordgo.ApplicationCommandOptionString, Value: item},
		},
	})
}

func componentInteraction(id string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{
			CustomID:      id,
			ComponentType: discordgo.ButtonComponent,
		},
		Member: &discordgo.Member{User: &discordgo.User{ID: "100000000000000001"}},
	}}
}

func TestDispatch_EndToEndShopBuy(t *testing.T) {
	rec := &recorder{}
	d, store, responder := newTestDispatcher(t, shopUnit(rec, definitions.Option{Name: "item", Type: "string"}))

	d.Dispatch(nil, shopBuyInteraction("sword"))

	require.Len(t, rec.invocations, 1, "handler must be invoked exactly once")
	assert.Equal(t, []any{"sword"}, rec.invocations[0].args, "string adapter is identity")
	assert.Equal(t, 1, store.Len(), "a fresh Runtime is created for the command")
	assert.Empty(t, responder.Responses, "no error reply on success")

	ev, ok := rec.invocations[0].ev.(*CommandEvent)
	require.True(t, ok)
	assert.NotNil(t, ev.Runtime)
}

func TestDispatch_ComponentRoutesBackToSameRuntime(t *testing.T) {
	rec := &recorder{}
	d, store, _ := newTestDispatcher(t, shopUnit(rec, definitions.Option{Name: "item", Type: "string"}))

	d.Dispatch(nil, shopBuyInteraction("sword"))
	require.Len(t, rec.invocations, 1)
	cmdEv := rec.invocations[0].ev.(*CommandEvent)

	id, err := cmdEv.ComponentID("onBuyAgain")
	require.NoError(t, err)

	d.Dispatch(nil, componentInteraction(id))
	require.Len(t, rec.invocations, 2, "button handler must be invoked")

	compEv, ok := rec.invocations[1].ev.(*ComponentEvent)
	require.True(t, ok)
	assert.Same(t, cmdEv.Runtime, compEv.Runtime, "bound custom id resolves to the originating Runtime")
	assert.Equal(t, 1, store.Len(), "component callbacks never create sessions")
}

func TestDispatch_ContextCommandInvokesHandler(t *testing.T) {
	rec := &recorder{}
	units := []definitions.Unit{{
		Name: "mod.ModerationUnit",
		Handlers: []definitions.Handler{{
			Name:   "onBanUser",
			Kind:   definitions.KindContextCommand,
			Label:  "Ban User",
			Target: "user",
			Params: []definitions.Param{{Name: "event", Type: "CommandEvent"}},
			Func:   rec.handler,
		}},
	}}
	d, store, responder := newTestDispatcher(t, units)

	// Context command interactions come back bearing the declared name.
	d.Dispatch(nil, commandInteraction("Ban User"))

	require.Len(t, rec.invocations, 1, "handler must be invoked under the declared name")
	_, ok := rec.invocations[0].ev.(*CommandEvent)
	assert.True(t, ok)
	assert.Nil(t, rec.invocations[0].args, "context commands take no adapted arguments")
	assert.Equal(t, 1, store.Len(), "a fresh Runtime is created for the command")
	assert.Empty(t, responder.Responses, "no error reply on success")
}

func TestDispatch_ExpiredSessionYieldsTimeoutReply(t *testing.T) {
	rec := &recorder{}
	d, store, responder := newTestDispatcher(t, shopUnit(rec, definitions.Option{Name: "item", Type: "string"}))

	d.Dispatch(nil, shopBuyInteraction("sword"))
	cmdEv := rec.invocations[0].ev.(*CommandEvent)
	id, err := cmdEv.ComponentID("onBuyAgain")
	require.NoError(t, err)

	store.Close(cmdEv.Runtime.ID())
	d.Dispatch(nil, componentInteraction(id))

	require.Len(t, rec.invocations, 1, "handler must not run for an expired session")
	resp := responder.LastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, "Timed Out", resp.Data.Embeds[0].Title)
	assert.Equal(t, 0, store.Len(), "expired sessions are never recreated")
}

func TestDispatch_ExpiredSessionReplyHonorsEphemeral(t *testing.T) {
	rec := &recorder{}
	units := shopUnit(rec, definitions.Option{Name: "item", Type: "string"})
	units[0].Reply = &definitions.ReplyConfig{Ephemeral: true}
	d, store, responder := newTestDispatcher(t, units)

	d.Dispatch(nil, shopBuyInteraction("sword"))
	cmdEv := rec.invocations[0].ev.(*CommandEvent)
	id, err := cmdEv.ComponentID("onBuyAgain")
	require.NoError(t, err)

	store.Close(cmdEv.Runtime.ID())
	d.Dispatch(nil, componentInteraction(id))

	resp := responder.LastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, "Timed Out", resp.Data.Embeds[0].Title)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral,
		"timeout reply carries the definition's reply configuration")
}

func TestDispatch_MalformedCustomIDIsIgnored(t *testing.T) {
	rec := &recorder{}
	d, _, responder := newTestDispatcher(t, shopUnit(rec))

	d.Dispatch(nil, componentInteraction("skit.not-a-uuid.123"))
	d.Dispatch(nil, componentInteraction("totally-unrelated"))

	assert.Empty(t, rec.invocations, "malformed ids never reach a handler")
	assert.Empty(t, responder.Responses, "malformed ids are dropped without a reply")
}

func TestDispatch_UnknownDefinitionForLiveRuntime(t *testing.T) {
	rec := &recorder{}
	d, store, responder := newTestDispatcher(t, shopUnit(rec))

	rt := store.Create()
	id, err := customid.Bound(rt.ID(), "999999")
	require.NoError(t, err)

	d.Dispatch(nil, componentInteraction(id.String()))

	assert.Empty(t, rec.invocations)
	resp := responder.LastResponse()
	require.NotNil(t, resp)
	assert.Contains(t, resp.Data.Embeds[0].Description, "internal error")
}

func TestDispatch_AdapterFailureReportsParameter(t *testing.T) {
	rec := &recorder{}
	constraintRan := false
	units := []definitions.Unit{{
		Name: "shop.ShopUnit",
		Handlers: []definitions.Handler{{
			Name:  "onBuy",
			Kind:  definitions.KindSlashCommand,
			Label: "buy",
			Options: []definitions.Option{
				{Name: "amount", Type: "int", Constraints: []definitions.Constraint{{Kind: "min", Value: 1}}},
			},
			Params: []definitions.Param{
				{Name: "event", Type: "CommandEvent"},
				{Name: "amount", Type: "int"},
			},
			Func: rec.handler,
		}},
	}}
	d, _, responder := newTestDispatcher(t, units)
	d.validators = ValidatorMap{
		"min:int": func(value any, c definitions.Constraint) (bool, string) {
			constraintRan = true
			return true, ""
		},
	}

	d.Dispatch(nil, commandInteraction("buy",
		&discordgo.ApplicationCommandInteractionDataOption{
			Name: "amount", Type: discordgo.ApplicationCommandOptionString, Value: "many",
		}))

	assert.Empty(t, rec.invocations, "handler must not run on adapter failure")
	assert.False(t, constraintRan, "constraints after a failing parameter never execute")
	resp := responder.LastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, "Invalid Input", resp.Data.Embeds[0].Title)
	assert.Contains(t, resp.Data.Embeds[0].Description, "amount", "reply references the failing parameter")
}

func TestDispatch_ConstraintFailureUsesConstraintMessage(t *testing.T) {
	rec := &recorder{}
	units := shopUnit(rec, definitions.Option{
		Name: "item",
		Type: "string",
		Constraints: []definitions.Constraint{
			{Kind: "max-length", Value: 3, Message: "item names are at most 3 characters"},
		},
	})
	d, _, responder := newTestDispatcher(t, units)

	d.Dispatch(nil, shopBuyInteraction("sword"))

	assert.Empty(t, rec.invocations)
	resp := responder.LastResponse()
	require.NotNil(t, resp)
	assert.Contains(t, resp.Data.Embeds[0].Description, "item names are at most 3 characters")
}

func TestDispatch_MiddlewareCancellationShortCircuits(t *testing.T) {
	rec := &recorder{}
	var order []string
	entries := []MiddlewareEntry{
		{Priority: PriorityLow, Func: func(ctx *Context) { order = append(order, "low") }},
		{Priority: PriorityHigh, Func: func(ctx *Context) {
			order = append(order, "high")
			ctx.Cancel("Blocked", "A middleware rejected this interaction.")
		}},
		{Priority: PriorityNormal, Func: func(ctx *Context) { order = append(order, "normal") }},
		{Priority: PriorityPermissions, Func: func(ctx *Context) { order = append(order, "permissions") }},
	}
	d, _, responder := newTestDispatcher(t, shopUnit(rec, definitions.Option{Name: "item", Type: "string"}), entries...)

	d.Dispatch(nil, shopBuyInteraction("sword"))

	assert.Equal(t, []string{"permissions", "high"}, order,
		"bands run in order and cancellation stops the chain")
	assert.Empty(t, rec.invocations, "handler must not run after cancellation")
	resp := responder.LastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, "Blocked", resp.Data.Embeds[0].Title)
}

func TestDispatch_MiddlewareEffectsVisibleToHandler(t *testing.T) {
	rec := &recorder{}
	entries := []MiddlewareEntry{
		{Priority: PriorityHigh, Func: func(ctx *Context) { ctx.Runtime.Set("flag", "set-by-middleware") }},
	}
	d, _, _ := newTestDispatcher(t, shopUnit(rec, definitions.Option{Name: "item", Type: "string"}), entries...)

	d.Dispatch(nil, shopBuyInteraction("sword"))

	require.Len(t, rec.invocations, 1)
	ev := rec.invocations[0].ev.(*CommandEvent)
	v, ok := ev.Runtime.Get("flag")
	require.True(t, ok)
	assert.Equal(t, "set-by-middleware", v)
}

func TestDispatch_HandlerErrorIsContained(t *testing.T) {
	rec := &recorder{err: errors.New("boom")}
	d, store, responder := newTestDispatcher(t, shopUnit(rec, definitions.Option{Name: "item", Type: "string"}))

	d.Dispatch(nil, shopBuyInteraction("sword"))

	resp := responder.LastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, "Error", resp.Data.Embeds[0].Title)
	assert.NotContains(t, resp.Data.Embeds[0].Description, "boom", "internals never leak to the user")
	assert.Equal(t, 1, store.Len(), "the Runtime stays live after a failed turn")
}

func TestDispatch_HandlerPanicIsContained(t *testing.T) {
	rec := &recorder{panicMsg: "nil map write"}
	d, _, responder := newTestDispatcher(t, shopUnit(rec, definitions.Option{Name: "item", Type: "string"}))

	require.NotPanics(t, func() {
		d.Dispatch(nil, shopBuyInteraction("sword"))
	})
	resp := responder.LastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, "Error", resp.Data.Embeds[0].Title)
}

func TestDispatch_AutoCompleteSkipsSessionAndMiddleware(t *testing.T) {
	rec := &recorder{}
	middlewareRan := false
	units := []definitions.Unit{{
		Name: "shop.ShopUnit",
		Handlers: []definitions.Handler{
			{
				Name:     "completeItems",
				Kind:     definitions.KindAutoComplete,
				Commands: []string{"shop"},
				Params:   []definitions.Param{{Name: "event", Type: "AutoCompleteEvent"}},
				Func:     rec.handler,
			},
			{
				Name:  "onBuy",
				Kind:  definitions.KindSlashCommand,
				Label: "shop buy",
				Options: []definitions.Option{
					{Name: "item", Type: "string", AutoComplete: true},
				},
				Params: []definitions.Param{
					{Name: "event", Type: "CommandEvent"},
					{Name: "item", Type: "string"},
				},
				Func: rec.handler,
			},
		},
	}}
	d, store, _ := newTestDispatcher(t, units, MiddlewareEntry{
		Priority: PriorityHigh,
		Func:     func(*Context) { middlewareRan = true },
	})

	i := shopBuyInteraction("swo")
	i.Type = discordgo.InteractionApplicationCommandAutocomplete
	data := i.Data.(discordgo.ApplicationCommandInteractionData)
	data.Options[0].Options[0].Focused = true
	d.Dispatch(nil, i)

	require.Len(t, rec.invocations, 1)
	ev, ok := rec.invocations[0].ev.(*AutoCompleteEvent)
	require.True(t, ok)
	assert.Equal(t, "item", ev.Focused)
	assert.Equal(t, "swo", ev.Raw)
	assert.Nil(t, ev.Runtime)
	assert.False(t, middlewareRan, "autocomplete never runs the middleware chain")
	assert.Equal(t, 0, store.Len(), "autocomplete never touches the session store")
}

func TestDispatch_ModalValuesAreAdapted(t *testing.T) {
	rec := &recorder{}
	units := []definitions.Unit{{
		Name: "shop.ShopUnit",
		Handlers: []definitions.Handler{
			{
				Name:  "onBuy",
				Kind:  definitions.KindSlashCommand,
				Label: "shop buy",
				Params: []definitions.Param{
					{Name: "event", Type: "CommandEvent"},
				},
				Func: rec.handler,
			},
			{
				Name:  "onOrderModal",
				Kind:  definitions.KindModal,
				Label: "Order",
				Options: []definitions.Option{
					{Name: "quantity", Type: "int"},
				},
				Params: []definitions.Param{
					{Name: "event", Type: "ModalEvent"},
					{Name: "quantity", Type: "int"},
				},
				Func: rec.handler,
			},
		},
	}}
	d, _, _ := newTestDispatcher(t, units)

	d.Dispatch(nil, shopBuyInteraction("sword"))
	require.Len(t, rec.invocations, 1)
	cmdEv := rec.invocations[0].ev.(*CommandEvent)
	id, err := cmdEv.ComponentID("onOrderModal")
	require.NoError(t, err)

	modal := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionModalSubmit,
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: id,
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "quantity", Value: "3"},
				}},
			},
		},
		Member: &discordgo.Member{User: &discordgo.User{ID: "100000000000000001"}},
	}}
	d.Dispatch(nil, modal)

	require.Len(t, rec.invocations, 2)
	assert.Equal(t, []any{int64(3)}, rec.invocations[1].args)
	_, ok := rec.invocations[1].ev.(*ModalEvent)
	assert.True(t, ok)
}

func TestDispatch_CloseSessionFromHandler(t *testing.T) {
	store := runtimes.NewStore(nil, runtimes.Explicit{})
	adapters := DefaultAdapters()

	var sessionID string
	units := []definitions.Unit{{
		Name: "shop.ShopUnit",
		Handlers: []definitions.Handler{{
			Name:   "onDone",
			Kind:   definitions.KindSlashCommand,
			Label:  "done",
			Params: []definitions.Param{{Name: "event", Type: "CommandEvent"}},
			Func: func(_ any, ev any, _ []any) error {
				e := ev.(*CommandEvent)
				sessionID = e.Runtime.ID()
				e.CloseSession()
				return nil
			},
		}},
	}}
	registry := definitions.Index(units, definitions.IndexConfig{HasAdapter: adapters.Has})
	d := NewDispatcher(Config{
		Registry: registry,
		Store:    store,
		Adapters: adapters,
		Responders: func(*discordgo.Session, *discordgo.Interaction) Responder {
			return &MockResponder{}
		},
	})

	d.Dispatch(nil, commandInteraction("done"))

	require.NotEmpty(t, sessionID)
	assert.Equal(t, 0, store.Len())
	_, err := store.Get(sessionID)
	assert.ErrorIs(t, err, runtimes.ErrExpiredSession)
}
