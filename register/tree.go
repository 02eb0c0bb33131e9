// Package register folds command definitions into the bounded-depth tree
// Discord requires (command, subcommand, subcommand group) and reconciles the
// resulting declarations against the platform, once per deployment scope and
// once per guild.
package register

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/sglre6355/slashkit/definitions"
)

// ConflictError reports two definitions sanitizing to the same command path.
// This is a startup failure, not a runtime warning: silently dropping one of
// the two would make routing depend on iteration order.
type ConflictError struct {
	Path   string
	First  string
	Second string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("commands %s and %s both declare path %q", e.First, e.Second, e.Path)
}

// Node is a single node of the command tree. A node is a leaf iff it carries
// a definition and has no children.
type Node struct {
	Label    string
	Def      *definitions.Definition
	Children []*Node
}

// BuildTree inserts every slash command definition into a tree, creating
// intermediate nodes as needed. Paths are already sanitized to at most three
// segments by the registry.
func BuildTree(defs []*definitions.Definition) (*Node, error) {
	root := &Node{}
	for _, def := range defs {
		if err := root.insert(def.Command.Path, def); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func (n *Node) insert(path []string, def *definitions.Definition) error {
	label := path[0]
	if len(path) == 1 {
		if existing := n.child(label); existing != nil {
			first := "command group " + label
			if existing.Def != nil {
				first = existing.Def.UnitName + "." + existing.Def.HandlerName
			}
			return &ConflictError{
				Path:   def.Command.Label,
				First:  first,
				Second: def.UnitName + "." + def.HandlerName,
			}
		}
		n.Children = append(n.Children, &Node{Label: label, Def: def})
		return nil
	}

	child := n.child(label)
	if child == nil {
		// Intermediate nodes carry no definition of their own.
		child = &Node{Label: label}
		n.Children = append(n.Children, child)
	} else if child.Def != nil {
		return &ConflictError{
			Path:   def.Command.Label,
			First:  child.Def.UnitName + "." + child.Def.HandlerName,
			Second: def.UnitName + "." + def.HandlerName,
		}
	}
	return child.insert(path[1:], def)
}

// ContextConflicts reports two context commands of the same target type
// declaring the same name. Context command names live outside the slash
// command tree and are matched verbatim.
func ContextConflicts(defs []*definitions.Definition) error {
	seen := make(map[string]*definitions.Definition)
	for _, def := range defs {
		key := def.Command.Target + ":" + def.Command.Path[0]
		if existing, ok := seen[key]; ok {
			return &ConflictError{
				Path:   def.Command.Path[0],
				First:  existing.UnitName + "." + existing.HandlerName,
				Second: def.UnitName + "." + def.HandlerName,
			}
		}
		seen[key] = def
	}
	return nil
}

func (n *Node) child(label string) *Node {
	for _, c := range n.Children {
		if c.Label == label {
			return c
		}
	}
	return nil
}

// Flatten transforms the tree into Discord application command declarations.
// Internal nodes become commands or subcommand groups; their NSFW, guild-only
// and permission flags are the logical OR of all descendant leaves, since the
// platform has no per-leaf flags inside a group.
func (n *Node) Flatten() []*discordgo.ApplicationCommand {
	commands := make([]*discordgo.ApplicationCommand, 0, len(n.Children))
	for _, top := range n.Children {
		commands = append(commands, top.toCommand())
	}
	return commands
}

func (n *Node) toCommand() *discordgo.ApplicationCommand {
	if n.Def != nil && len(n.Children) == 0 {
		return leafCommand(n.Label, n.Def)
	}

	nsfw, guildOnly := n.aggregateFlags()
	cmd := &discordgo.ApplicationCommand{
		Name:        n.Label,
		Description: groupDescription,
		NSFW:        &nsfw,
	}
	if guildOnly {
		dm := false
		cmd.DMPermission = &dm
	}
	for _, child := range n.Children {
		if len(child.Children) == 0 {
			cmd.Options = append(cmd.Options, child.toSubCommand())
		} else {
			cmd.Options = append(cmd.Options, child.toSubCommandGroup())
		}
	}
	return cmd
}

// groupDescription fills the description Discord requires on group commands
// that have no declaration of their own.
const groupDescription = "-"

func (n *Node) toSubCommandGroup() *discordgo.ApplicationCommandOption {
	group := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
		Name:        n.Label,
		Description: groupDescription,
	}
	for _, child := range n.Children {
		group.Options = append(group.Options, child.toSubCommand())
	}
	return group
}

func (n *Node) toSubCommand() *discordgo.ApplicationCommandOption {
	sub := &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionSubCommand,
		Name: n.Label,
	}
	if n.Def != nil {
		sub.Description = commandDescription(n.Def)
		sub.Options = optionData(n.Def.Command.Options)
	}
	return sub
}

func (n *Node) aggregateFlags() (nsfw, guildOnly bool) {
	if n.Def != nil {
		nsfw = nsfw || n.Def.Command.NSFW
		guildOnly = guildOnly || n.Def.Command.GuildOnly
	}
	for _, child := range n.Children {
		childNSFW, childGuildOnly := child.aggregateFlags()
		nsfw = nsfw || childNSFW
		guildOnly = guildOnly || childGuildOnly
	}
	return nsfw, guildOnly
}

func leafCommand(name string, def *definitions.Definition) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        name,
		Description: commandDescription(def),
		NSFW:        &def.Command.NSFW,
		Options:     optionData(def.Command.Options),
	}
	if def.Kind == definitions.KindContextCommand {
		cmd.Type = discordgo.UserApplicationCommand
		if def.Command.Target == "message" {
			cmd.Type = discordgo.MessageApplicationCommand
		}
		cmd.Description = ""
		cmd.Options = nil
	}
	if def.Command.GuildOnly {
		dm := false
		cmd.DMPermission = &dm
	}
	return cmd
}

func commandDescription(def *definitions.Definition) string {
	if def.Command.Description != "" {
		return def.Command.Description
	}
	return "-"
}

var optionTypes = map[string]discordgo.ApplicationCommandOptionType{
	"string":  discordgo.ApplicationCommandOptionString,
	"int":     discordgo.ApplicationCommandOptionInteger,
	"float64": discordgo.ApplicationCommandOptionNumber,
	"bool":    discordgo.ApplicationCommandOptionBoolean,
	"user":    discordgo.ApplicationCommandOptionUser,
	"channel": discordgo.ApplicationCommandOptionChannel,
	"role":    discordgo.ApplicationCommandOptionRole,
}

func optionData(options []definitions.Option) []*discordgo.ApplicationCommandOption {
	var out []*discordgo.ApplicationCommandOption
	for _, opt := range options {
		optType, ok := optionTypes[opt.Type]
		if !ok {
			optType = discordgo.ApplicationCommandOptionString
		}
		description := opt.Description
		if description == "" {
			description = "-"
		}
		out = append(out, &discordgo.ApplicationCommandOption{
			Type:         optType,
			Name:         opt.Name,
			Description:  description,
			Required:     opt.Required,
			Autocomplete: opt.AutoComplete,
		})
	}
	return out
}
