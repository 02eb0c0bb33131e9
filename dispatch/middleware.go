package dispatch

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sglre6355/slashkit/definitions"
	"github.com/sglre6355/slashkit/runtimes"
)

// Priority orders middleware into fixed bands. Middlewares run strictly in
// band order; within a band, order is unspecified.
type Priority int

const (
	PriorityPermissions Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

// priorities is the execution order of the bands.
var priorities = []Priority{PriorityPermissions, PriorityHigh, PriorityNormal, PriorityLow}

// Context is what middleware sees of an in-flight interaction. Middleware
// may read and write the Runtime's key-value store; effects are visible to
// later middleware and to the handler.
type Context struct {
	Event      any
	Definition *definitions.Definition
	Runtime    *runtimes.Runtime
	Session    *discordgo.Session
	Inter      *discordgo.InteractionCreate

	cancelled   bool
	cancelTitle string
	cancelText  string
	cancelErr   error
}

// Cancel marks the interaction cancelled, short-circuiting all remaining
// middleware and the handler. The title and description become the
// user-facing reply.
func (c *Context) Cancel(title, description string) {
	c.cancelled = true
	c.cancelTitle = title
	c.cancelText = description
}

// CancelWithError is Cancel with a classifying error attached, e.g.
// ErrInsufficientPermissions.
func (c *Context) CancelWithError(err error, title, description string) {
	c.cancelErr = err
	c.Cancel(title, description)
}

// Cancelled reports whether a middleware cancelled this interaction.
func (c *Context) Cancelled() bool {
	return c.cancelled
}

// Middleware inspects an interaction before the handler runs and may cancel
// it.
type Middleware func(*Context)

// MiddlewareEntry pairs a middleware with its priority band.
type MiddlewareEntry struct {
	Priority Priority
	Func     Middleware
}

// PermissionsProvider answers whether the interaction's invoker holds a
// framework-level permission.
type PermissionsProvider interface {
	HasPermission(i *discordgo.InteractionCreate, permission string) bool
}

// NewPermissionsMiddleware cancels interactions whose invoker is missing any
// permission required by the definition. It belongs in the Permissions band.
func NewPermissionsMiddleware(provider PermissionsProvider) Middleware {
	return func(ctx *Context) {
		for _, perm := range ctx.Definition.Permissions {
			if !provider.HasPermission(ctx.Inter, perm) {
				ctx.CancelWithError(ErrInsufficientPermissions,
					"Insufficient Permissions",
					"You are not allowed to use this interaction.")
				return
			}
		}
	}
}

type cooldownKey struct {
	definitionID string
	user         snowflake.ID
}

// NewCooldownMiddleware cancels command invocations arriving before the
// definition's per-user cooldown has elapsed. It belongs in the Normal band.
func NewCooldownMiddleware() Middleware {
	var mu sync.Mutex
	last := make(map[cooldownKey]time.Time)

	return func(ctx *Context) {
		if ctx.Definition.Cooldown <= 0 || ctx.Definition.Kind != definitions.KindSlashCommand {
			return
		}
		user, err := snowflake.Parse(interactionUserID(ctx.Inter))
		if err != nil {
			return
		}
		key := cooldownKey{definitionID: ctx.Definition.DefinitionID, user: user}

		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if prev, ok := last[key]; ok {
			if remaining := ctx.Definition.Cooldown - now.Sub(prev); remaining > 0 {
				ctx.Cancel("Cooldown", "You are using this command too fast. Please wait "+
					remaining.Round(time.Second).String()+".")
				return
			}
		}
		last[key] = now
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
