// Package slashkit routes Discord interaction events (slash commands, button
// and menu clicks, modal submissions, autocomplete queries) to statically
// declared handler units while preserving short-lived session state across
// multi-step UI flows.
package slashkit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sglre6355/slashkit/customid"
	"github.com/sglre6355/slashkit/definitions"
	"github.com/sglre6355/slashkit/dispatch"
	"github.com/sglre6355/slashkit/register"
	"github.com/sglre6355/slashkit/runtimes"
)

// Options wires the framework's collaborators. Everything is registered here,
// once, before indexing; the pipeline holds no hidden global state.
type Options struct {
	// Config overrides the environment-loaded configuration.
	Config *Config
	// Instantiator constructs unit instances, typically backed by the
	// application's dependency injection. Defaults to nil instances.
	Instantiator runtimes.Instantiator
	// Expiration overrides the session expiration strategy derived from
	// Config.SessionTTL.
	Expiration runtimes.ExpirationStrategy
	// Middlewares are appended to the built-in permission and cooldown
	// middlewares.
	Middlewares []dispatch.MiddlewareEntry
	// Permissions enables the built-in permissions middleware when set.
	Permissions dispatch.PermissionsProvider
	// Adapters defaults to dispatch.DefaultAdapters().
	Adapters dispatch.AdapterMap
	// Validators defaults to dispatch.DefaultValidators().
	Validators dispatch.ValidatorRegistry
	// GuildScopeProvider selects the guilds each guild-scoped command is
	// deployed to. Without one, guild-scoped commands go nowhere.
	GuildScopeProvider register.GuildScopeProvider
	// GlobalReply is the reply configuration for definitions that declare
	// none, at neither handler nor unit level.
	GlobalReply definitions.ReplyConfig
	// GlobalCooldown applies to commands that declare no cooldown.
	GlobalCooldown time.Duration
}

// Framework is the embedding surface: index declarations once, then let it
// dispatch events and reconcile command declarations with Discord.
type Framework struct {
	session *discordgo.Session
	cfg     Config
	opts    Options
	store   *runtimes.Store

	registry   *definitions.Registry
	dispatcher *dispatch.Dispatcher
	registrar  *register.Registrar

	removeHandler func()
	stopSweeper   func()
}

var errNotIndexed = errors.New("no declarations indexed, call Index first")

// New creates a Framework bound to the given Discord session.
func New(session *discordgo.Session, opts Options) (*Framework, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	strategy := opts.Expiration
	if strategy == nil {
		if cfg.SessionTTL > 0 {
			strategy = runtimes.Inactivity{After: cfg.SessionTTL}
		} else {
			strategy = runtimes.Explicit{}
		}
	}
	if opts.Adapters == nil {
		opts.Adapters = dispatch.DefaultAdapters()
	}

	return &Framework{
		session: session,
		cfg:     *cfg,
		opts:    opts,
		store:   runtimes.NewStore(opts.Instantiator, strategy),
	}, nil
}

// Index converts the given declaring units into validated definitions and
// prepares the dispatch pipeline. Declaration conflicts (two commands
// sanitizing to the same path) abort indexing; invalid handlers are skipped
// with a warning.
func (f *Framework) Index(units []definitions.Unit) error {
	registry := definitions.Index(units, definitions.IndexConfig{
		GlobalReply:    f.opts.GlobalReply,
		GlobalCooldown: f.opts.GlobalCooldown,
		HasAdapter:     f.opts.Adapters.Has,
	})

	// Dry-run the command tree per scope so path conflicts fail at startup
	// instead of at the first update.
	for _, scope := range []definitions.Scope{definitions.ScopeGlobal, definitions.ScopeGuild} {
		if _, err := register.BuildTree(registry.SlashCommands(scope)); err != nil {
			return err
		}
		if err := register.ContextConflicts(registry.ContextCommands(scope)); err != nil {
			return err
		}
	}

	middlewares := make([]dispatch.MiddlewareEntry, 0, len(f.opts.Middlewares)+2)
	if f.opts.Permissions != nil {
		middlewares = append(middlewares, dispatch.MiddlewareEntry{
			Priority: dispatch.PriorityPermissions,
			Func:     dispatch.NewPermissionsMiddleware(f.opts.Permissions),
		})
	}
	middlewares = append(middlewares, dispatch.MiddlewareEntry{
		Priority: dispatch.PriorityNormal,
		Func:     dispatch.NewCooldownMiddleware(),
	})
	middlewares = append(middlewares, f.opts.Middlewares...)

	f.registry = registry
	f.dispatcher = dispatch.NewDispatcher(dispatch.Config{
		Registry:    registry,
		Store:       f.store,
		Middlewares: middlewares,
		Adapters:    f.opts.Adapters,
		Validators:  f.opts.Validators,
	})
	f.registrar = register.NewRegistrar(f.session, f.applicationID, registry, f.opts.GuildScopeProvider)

	slog.Info("indexed interaction declarations",
		"units", len(units),
		"commands", len(registry.Commands()),
	)
	return nil
}

// Start registers the interaction handler with the session and starts the
// expiration sweeper if configured.
func (f *Framework) Start() error {
	if f.dispatcher == nil {
		return errNotIndexed
	}
	f.removeHandler = f.session.AddHandler(f.dispatcher.HandleInteraction)
	if _, ok := f.store.Strategy().(runtimes.Inactivity); ok && f.cfg.SweepInterval > 0 {
		f.stopSweeper = f.store.StartSweeper(f.cfg.SweepInterval)
	}
	return nil
}

// Dispatch feeds one interaction event through the pipeline. Start wires this
// up automatically; it is exposed for embedders driving events themselves.
// Before Index, events are dropped with a warning.
func (f *Framework) Dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if f.dispatcher == nil {
		slog.Warn("dropping interaction, no declarations indexed")
		return
	}
	f.dispatcher.Dispatch(s, i)
}

// UpdateAllCommands pushes global and guild command declarations to Discord.
func (f *Framework) UpdateAllCommands() error {
	if f.registrar == nil {
		return errNotIndexed
	}
	return f.registrar.UpdateAllCommands()
}

// UpdateGlobalCommands pushes the globally scoped command declarations.
func (f *Framework) UpdateGlobalCommands() error {
	if f.registrar == nil {
		return errNotIndexed
	}
	return f.registrar.UpdateGlobalCommands()
}

// UpdateGuildCommands pushes the guild-scoped command declarations, once per
// guild.
func (f *Framework) UpdateGuildCommands() error {
	if f.registrar == nil {
		return errNotIndexed
	}
	return f.registrar.UpdateGuildCommands()
}

// CloseSession destroys the session with the given id. Later events bound to
// it fail as expired.
func (f *Framework) CloseSession(id string) {
	f.store.Close(id)
}

// Sessions returns the session store.
func (f *Framework) Sessions() *runtimes.Store {
	return f.store
}

// IndependentID mints a session-independent custom id for the given handler,
// for components sent outside any particular conversation.
func (f *Framework) IndependentID(unitName, handlerName string) string {
	return customid.NewIndependent(definitions.ComputeID(unitName, handlerName)).String()
}

// Shutdown detaches from the session, stops the sweeper and closes all live
// sessions.
func (f *Framework) Shutdown() {
	if f.removeHandler != nil {
		f.removeHandler()
		f.removeHandler = nil
	}
	if f.stopSweeper != nil {
		f.stopSweeper()
		f.stopSweeper = nil
	}
	f.store.CloseAll()
	slog.Info("slashkit shut down")
}

func (f *Framework) applicationID() string {
	if f.session == nil || f.session.State == nil || f.session.State.User == nil {
		return ""
	}
	return f.session.State.User.ID
}
