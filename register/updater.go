package register

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sglre6355/slashkit/definitions"
)

// CommandClient is the slice of the platform client the registrar needs.
// *discordgo.Session satisfies it.
type CommandClient interface {
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// GuildScopeProvider decides, per top-level guild-scoped command declaration,
// which guilds should receive it.
type GuildScopeProvider interface {
	ForCommand(cmd *discordgo.ApplicationCommand) []snowflake.ID
}

// GuildScopeProviderFunc adapts a function to the GuildScopeProvider
// interface.
type GuildScopeProviderFunc func(cmd *discordgo.ApplicationCommand) []snowflake.ID

// ForCommand calls f.
func (f GuildScopeProviderFunc) ForCommand(cmd *discordgo.ApplicationCommand) []snowflake.ID {
	return f(cmd)
}

// Registrar reconciles command declarations against Discord.
type Registrar struct {
	client        CommandClient
	appID         func() string
	registry      *definitions.Registry
	scopeProvider GuildScopeProvider
}

// NewRegistrar creates a Registrar. The application id is resolved lazily
// because it is only known once the gateway connection is open.
func NewRegistrar(client CommandClient, appID func() string, registry *definitions.Registry,
	scopeProvider GuildScopeProvider) *Registrar {
	if scopeProvider == nil {
		scopeProvider = GuildScopeProviderFunc(func(*discordgo.ApplicationCommand) []snowflake.ID {
			return nil
		})
	}
	return &Registrar{
		client:        client,
		appID:         appID,
		registry:      registry,
		scopeProvider: scopeProvider,
	}
}

// Declarations builds the full declaration set for one deployment scope.
func (r *Registrar) Declarations(scope definitions.Scope) ([]*discordgo.ApplicationCommand, error) {
	tree, err := BuildTree(r.registry.SlashCommands(scope))
	if err != nil {
		return nil, err
	}
	contextCommands := r.registry.ContextCommands(scope)
	if err := ContextConflicts(contextCommands); err != nil {
		return nil, err
	}
	commands := tree.Flatten()
	for _, def := range contextCommands {
		commands = append(commands, leafCommand(def.Command.Path[0], def))
	}
	return commands, nil
}

// UpdateGlobalCommands pushes all globally scoped declarations in a single
// overwrite.
func (r *Registrar) UpdateGlobalCommands() error {
	commands, err := r.Declarations(definitions.ScopeGlobal)
	if err != nil {
		return err
	}
	if _, err := r.client.ApplicationCommandBulkOverwrite(r.appID(), "", commands); err != nil {
		return fmt.Errorf("failed to update global commands: %w", err)
	}
	slog.Info("updated global commands", "count", len(commands))
	return nil
}

// UpdateGuildCommands asks the scope provider which guilds each guild-scoped
// command belongs to, then pushes the union once per guild to respect
// platform rate limits.
func (r *Registrar) UpdateGuildCommands() error {
	commands, err := r.Declarations(definitions.ScopeGuild)
	if err != nil {
		return err
	}

	byGuild := make(map[snowflake.ID][]*discordgo.ApplicationCommand)
	for _, cmd := range commands {
		guildIDs := r.scopeProvider.ForCommand(cmd)
		if len(guildIDs) == 0 {
			slog.Debug("no guilds provided for command", "command", cmd.Name)
			continue
		}
		for _, guildID := range guildIDs {
			byGuild[guildID] = append(byGuild[guildID], cmd)
		}
	}

	for guildID, guildCommands := range byGuild {
		if _, err := r.client.ApplicationCommandBulkOverwrite(r.appID(), guildID.String(), guildCommands); err != nil {
			return fmt.Errorf("failed to update commands for guild %s: %w", guildID, err)
		}
		slog.Info("updated guild commands", "guild_id", guildID, "count", len(guildCommands))
	}
	return nil
}

// UpdateAllCommands updates global and guild commands.
func (r *Registrar) UpdateAllCommands() error {
	if err := r.UpdateGlobalCommands(); err != nil {
		return err
	}
	return r.UpdateGuildCommands()
}
