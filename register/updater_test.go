package register

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sglre6355/slashkit/definitions"
)

type fakeClient struct {
	overwrites map[string][]*discordgo.ApplicationCommand
}

func (f *fakeClient) ApplicationCommandBulkOverwrite(appID, guildID string,
	commands []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	if f.overwrites == nil {
		f.overwrites = make(map[string][]*discordgo.ApplicationCommand)
	}
	f.overwrites[guildID] = commands
	return commands, nil
}

func indexUnits(t *testing.T, handlers ...definitions.Handler) *definitions.Registry {
	t.Helper()
	return definitions.Index([]definitions.Unit{{
		Name:     "shop.ShopUnit",
		Handlers: handlers,
	}}, definitions.IndexConfig{})
}

func slashHandler(name, label string, scope definitions.Scope) definitions.Handler {
	return definitions.Handler{
		Name:   name,
		Kind:   definitions.KindSlashCommand,
		Label:  label,
		Scope:  scope,
		Params: []definitions.Param{{Name: "event", Type: "CommandEvent"}},
		Func:   func(any, any, []any) error { return nil },
	}
}

func contextHandler(name, label, target string, scope definitions.Scope) definitions.Handler {
	return definitions.Handler{
		Name:   name,
		Kind:   definitions.KindContextCommand,
		Label:  label,
		Target: target,
		Scope:  scope,
		Params: []definitions.Param{{Name: "event", Type: "CommandEvent"}},
		Func:   func(any, any, []any) error { return nil },
	}
}

func TestRegistrar_UpdateGlobalCommands(t *testing.T) {
	registry := indexUnits(t,
		slashHandler("onBuy", "shop buy", definitions.ScopeGlobal),
		slashHandler("onAdmin", "admin", definitions.ScopeGuild),
	)
	client := &fakeClient{}
	r := NewRegistrar(client, func() string { return "app" }, registry, nil)

	require.NoError(t, r.UpdateGlobalCommands())

	global := client.overwrites[""]
	require.Len(t, global, 1, "guild-scoped commands stay out of the global set")
	assert.Equal(t, "shop", global[0].Name)
}

func TestRegistrar_UpdateGuildCommandsPushesOncePerGuild(t *testing.T) {
	registry := indexUnits(t,
		slashHandler("onAdmin", "admin", definitions.ScopeGuild),
		slashHandler("onAudit", "audit", definitions.ScopeGuild),
		slashHandler("onOrphan", "orphan", definitions.ScopeGuild),
	)
	client := &fakeClient{}
	guildA := snowflake.ID(111)
	guildB := snowflake.ID(222)
	provider := GuildScopeProviderFunc(func(cmd *discordgo.ApplicationCommand) []snowflake.ID {
		switch cmd.Name {
		case "admin":
			return []snowflake.ID{guildA, guildB}
		case "audit":
			return []snowflake.ID{guildA}
		default:
			return nil
		}
	})
	r := NewRegistrar(client, func() string { return "app" }, registry, provider)

	require.NoError(t, r.UpdateGuildCommands())

	require.Len(t, client.overwrites, 2, "one push per guild, none for the orphan command")

	namesFor := func(guildID snowflake.ID) []string {
		var names []string
		for _, cmd := range client.overwrites[guildID.String()] {
			names = append(names, cmd.Name)
		}
		return names
	}
	assert.ElementsMatch(t, []string{"admin", "audit"}, namesFor(guildA),
		"per-guild set is the union of all commands selected for that guild")
	assert.ElementsMatch(t, []string{"admin"}, namesFor(guildB))
}

func TestRegistrar_ContextCommandNameRoundTrips(t *testing.T) {
	registry := indexUnits(t, contextHandler("onBanUser", "Ban User", "user", definitions.ScopeGlobal))
	client := &fakeClient{}
	r := NewRegistrar(client, func() string { return "app" }, registry, nil)

	require.NoError(t, r.UpdateGlobalCommands())

	global := client.overwrites[""]
	require.Len(t, global, 1)
	assert.Equal(t, "Ban User", global[0].Name, "the declared name is the verbatim label")
	assert.Equal(t, discordgo.UserApplicationCommand, global[0].Type)

	def, ok := registry.CommandByPath(global[0].Name)
	require.True(t, ok, "the declared name must route back to the definition")
	assert.Equal(t, "onBanUser", def.HandlerName)
}

func TestRegistrar_DuplicateContextCommandAbortsUpdate(t *testing.T) {
	registry := definitions.Index([]definitions.Unit{
		{Name: "a.Unit", Handlers: []definitions.Handler{contextHandler("onBan", "Ban User", "user", definitions.ScopeGlobal)}},
		{Name: "b.Unit", Handlers: []definitions.Handler{contextHandler("onBan2", "Ban User", "user", definitions.ScopeGlobal)}},
	}, definitions.IndexConfig{})
	client := &fakeClient{}
	r := NewRegistrar(client, func() string { return "app" }, registry, nil)

	err := r.UpdateGlobalCommands()
	require.Error(t, err)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Empty(t, client.overwrites, "nothing is pushed when declarations conflict")
}

func TestRegistrar_ConflictAbortsUpdate(t *testing.T) {
	registry := definitions.Index([]definitions.Unit{
		{Name: "a.Unit", Handlers: []definitions.Handler{slashHandler("onBuy", "shop buy", definitions.ScopeGlobal)}},
		{Name: "b.Unit", Handlers: []definitions.Handler{slashHandler("onBuy2", "shop buy", definitions.ScopeGlobal)}},
	}, definitions.IndexConfig{})
	client := &fakeClient{}
	r := NewRegistrar(client, func() string { return "app" }, registry, nil)

	err := r.UpdateGlobalCommands()
	require.Error(t, err)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Empty(t, client.overwrites, "nothing is pushed when declarations conflict")
}
