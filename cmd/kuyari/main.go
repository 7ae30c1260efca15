package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/kuyari/pkg/bot"
	"github.com/go-go-golems/kuyari/pkg/chat"
	"github.com/go-go-golems/kuyari/pkg/chat/console"
	"github.com/go-go-golems/kuyari/pkg/events"
	"github.com/go-go-golems/kuyari/pkg/settings"
)

var (
	configPath string
	logLevel   string
	traceBus   bool
	dumpConfig bool
)

var rootCmd = &cobra.Command{
	Use:   "kuyari",
	Short: "Relay chat messages to an LLM backend and stream the responses back",
	RunE:  run,
}

func main() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&traceBus, "trace-events", false, "log all streaming events on the event bus")
	rootCmd.Flags().BoolVar(&dumpConfig, "dump-config", false, "print the effective configuration and exit")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	if dumpConfig {
		cfg, err := settings.Load(configPath)
		if err != nil {
			return err
		}
		out, err := cfg.Dump()
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	self := chat.Identity{UserID: 2, Mention: "@kuyari"}
	surface := console.New(os.Stdout, chat.Author{ID: self.UserID, Name: "kuyari", Bot: true})

	var options []bot.Option
	if traceBus {
		router, err := events.NewEventRouter()
		if err != nil {
			return err
		}
		defer func() { _ = router.Close() }()

		const topic = "chat-events"
		router.AddHandler("log-events", topic, func(msg *message.Message) error {
			log.Debug().RawJSON("event", msg.Payload).Msg("stream event")
			return nil
		})
		go func() {
			if err := router.Run(ctx); err != nil {
				log.Error().Err(err).Msg("event router stopped")
			}
		}()
		<-router.Running()
		options = append(options, bot.WithSink(events.NewWatermillSink(router.Publisher, topic)))
	}

	b, err := bot.New(configPath, surface, self, options...)
	if err != nil {
		return err
	}

	user := chat.Author{ID: 1, Name: "you"}
	fmt.Println("kuyari console. Type a message, /model <name>, /engine <name>, or /quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/model"):
			fmt.Println(b.HandleModelCommand(user.ID, strings.TrimSpace(strings.TrimPrefix(line, "/model"))))
			continue
		case strings.HasPrefix(line, "/engine"):
			fmt.Println(b.HandleEngineCommand(user.ID, strings.TrimSpace(strings.TrimPrefix(line, "/engine"))))
			continue
		}

		msg := surface.UserMessage(user, line)
		if err := b.OnIncomingMessage(ctx, msg); err != nil {
			log.Error().Err(err).Msg("failed to handle message")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}
