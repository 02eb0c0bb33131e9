package dispatch

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/sglre6355/slashkit/definitions"
)

type allowList map[string]bool

func (a allowList) HasPermission(_ *discordgo.InteractionCreate, permission string) bool {
	return a[permission]
}

func permissionContext(perms ...string) *Context {
	return &Context{
		Definition: &definitions.Definition{
			Kind:        definitions.KindSlashCommand,
			Permissions: perms,
		},
		Inter: commandInteraction("x"),
	}
}

func TestPermissionsMiddleware_AllowsWhenAllPresent(t *testing.T) {
	m := NewPermissionsMiddleware(allowList{"BAN_MEMBERS": true, "KICK_MEMBERS": true})

	ctx := permissionContext("BAN_MEMBERS", "KICK_MEMBERS")
	m(ctx)

	assert.False(t, ctx.Cancelled())
}

func TestPermissionsMiddleware_CancelsOnMissingPermission(t *testing.T) {
	m := NewPermissionsMiddleware(allowList{"BAN_MEMBERS": true})

	ctx := permissionContext("BAN_MEMBERS", "KICK_MEMBERS")
	m(ctx)

	assert.True(t, ctx.Cancelled())
	assert.ErrorIs(t, ctx.cancelErr, ErrInsufficientPermissions)
	assert.Equal(t, "Insufficient Permissions", ctx.cancelTitle)
}

func TestCooldownMiddleware_CancelsRapidReinvocation(t *testing.T) {
	m := NewCooldownMiddleware()
	def := &definitions.Definition{
		Kind:         definitions.KindSlashCommand,
		DefinitionID: "1",
		Cooldown:     time.Minute,
	}

	first := &Context{Definition: def, Inter: commandInteraction("x")}
	m(first)
	assert.False(t, first.Cancelled())

	second := &Context{Definition: def, Inter: commandInteraction("x")}
	m(second)
	assert.True(t, second.Cancelled(), "second invocation within the cooldown is cancelled")
}

func TestCooldownMiddleware_IsPerUser(t *testing.T) {
	m := NewCooldownMiddleware()
	def := &definitions.Definition{
		Kind:         definitions.KindSlashCommand,
		DefinitionID: "1",
		Cooldown:     time.Minute,
	}

	first := &Context{Definition: def, Inter: commandInteraction("x")}
	m(first)

	other := commandInteraction("x")
	other.Member.User.ID = "200000000000000002"
	second := &Context{Definition: def, Inter: other}
	m(second)

	assert.False(t, second.Cancelled(), "cooldowns are keyed per user")
}

func TestCooldownMiddleware_IgnoresComponents(t *testing.T) {
	m := NewCooldownMiddleware()
	def := &definitions.Definition{
		Kind:         definitions.KindButton,
		DefinitionID: "1",
		Cooldown:     time.Minute,
	}

	for i := 0; i < 3; i++ {
		ctx := &Context{Definition: def, Inter: commandInteraction("x")}
		m(ctx)
		assert.False(t, ctx.Cancelled())
	}
}
