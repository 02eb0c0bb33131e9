package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"

	"github.com/sglre6355/slashkit"
	"github.com/sglre6355/slashkit/definitions"
	"github.com/sglre6355/slashkit/dispatch"
)

type config struct {
	DiscordToken string `env:"DISCORD_TOKEN,notEmpty"`
}

func main() {
	// Configure JSON logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := &config{}
	if err := env.Parse(cfg); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		slog.Error("failed to create Discord session", "error", err)
		os.Exit(1)
	}

	framework, err := slashkit.New(session, slashkit.Options{})
	if err != nil {
		slog.Error("failed to create framework", "error", err)
		os.Exit(1)
	}

	if err := framework.Index(shopUnits()); err != nil {
		slog.Error("failed to index declarations", "error", err)
		os.Exit(1)
	}
	if err := framework.Start(); err != nil {
		slog.Error("failed to start framework", "error", err)
		os.Exit(1)
	}

	if err := session.Open(); err != nil {
		slog.Error("failed to open Discord connection", "error", err)
		os.Exit(1)
	}
	if err := framework.UpdateAllCommands(); err != nil {
		slog.Error("failed to update commands", "error", err)
		os.Exit(1)
	}

	slog.Info("started examplebot",
		"user_id", session.State.User.ID,
		"username", session.State.User.Username,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("received termination signal, shutting down")
	framework.Shutdown()
	if err := session.Close(); err != nil {
		slog.Error("failed to close Discord session", "error", err)
	}

	slog.Info("completed shutdown")
}

var items = []string{"sword", "shield", "potion", "bow", "helmet"}

// shopUnits declares a /shop buy command with autocomplete on the item
// option and a session-bound "buy again" button.
func shopUnits() []definitions.Unit {
	return []definitions.Unit{{
		Name: "example.Shop",
		Handlers: []definitions.Handler{
			{
				Name:        "onBuy",
				Kind:        definitions.KindSlashCommand,
				Label:       "shop buy",
				Description: "Buy an item from the shop",
				Options: []definitions.Option{
					{Name: "item", Description: "The item to buy", Type: "string", Required: true, AutoComplete: true},
				},
				Params: []definitions.Param{
					{Name: "event", Type: "CommandEvent"},
					{Name: "item", Type: "string"},
				},
				Func: onBuy,
			},
			{
				Name:   "onBuyAgain",
				Kind:   definitions.KindButton,
				Label:  "Buy again",
				Params: []definitions.Param{{Name: "event", Type: "ComponentEvent"}},
				Func:   onBuyAgain,
			},
			{
				Name:     "completeItems",
				Kind:     definitions.KindAutoComplete,
				Commands: []string{"shop"},
				Params:   []definitions.Param{{Name: "event", Type: "AutoCompleteEvent"}},
				Func:     completeItems,
			},
		},
	}}
}

func onBuy(_ any, ev any, args []any) error {
	e := ev.(*dispatch.CommandEvent)
	item := args[0].(string)

	// Remember the purchase for the rest of the conversation.
	e.Runtime.Set("last_item", item)

	buttonID, err := e.ComponentID("onBuyAgain")
	if err != nil {
		return err
	}
	return e.Responder.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "You bought a " + item + "!",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Buy again",
						Style:    discordgo.PrimaryButton,
						CustomID: buttonID,
					},
				}},
			},
		},
	})
}

func onBuyAgain(_ any, ev any, _ []any) error {
	e := ev.(*dispatch.ComponentEvent)

	item, ok := e.Runtime.Get("last_item")
	if !ok {
		return e.Reply("Nothing to buy again.")
	}
	return e.Reply("You bought another " + item.(string) + "!")
}

func completeItems(_ any, ev any, _ []any) error {
	e := ev.(*dispatch.AutoCompleteEvent)

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, item := range items {
		if len(e.Raw) == 0 || (len(item) >= len(e.Raw) && item[:len(e.Raw)] == e.Raw) {
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  item,
				Value: item,
			})
		}
	}
	return e.RespondChoices(choices)
}
