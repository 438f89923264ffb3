package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/foodloop/assistant/internal/agent"
	"github.com/foodloop/assistant/internal/config"
	"github.com/foodloop/assistant/internal/logging"
	model "github.com/foodloop/assistant/internal/model/chat"
	"github.com/foodloop/assistant/internal/service/chat"
	"github.com/foodloop/assistant/internal/service/session"
	"github.com/foodloop/assistant/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	storePath string
	once      string
	logLevel  string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "chat",
		Short:         "Talk to the FoodLoop assistant from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.storePath, "store", defaultStorePath(), "sqlite file holding the conversation session id")
	cmd.Flags().StringVar(&opts.once, "once", "", "send a single message, print the reply and exit")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".foodloop", "assistant.db")
	}
	return filepath.Join(dir, "foodloop", "assistant.db")
}

func run(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	logging.Setup(os.Stderr, opts.logLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	store, err := storage.NewSQLiteStore(ctx, opts.storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	detector, err := agent.NewDetector(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("assistant agent unavailable")
	}

	transcript := chat.NewLog(model.Message{Origin: model.OriginAssistant, Text: chat.GreetingText})
	widget := chat.NewWidget(transcript, chat.NewDispatcher(transcript, session.NewResolver(store), detector))

	if opts.once != "" {
		o, ok := widget.Send(ctx, opts.once)
		if !ok {
			return errors.New("message is empty")
		}
		fmt.Fprintln(out, o.Reply.Text)
		return nil
	}

	return repl(ctx, widget, in, out)
}

func repl(ctx context.Context, widget *chat.Widget, in io.Reader, out io.Writer) error {
	widget.Toggle()
	for _, m := range widget.Log().Messages() {
		printMessage(out, m)
	}
	fmt.Fprintln(out, "(type /history to reprint the conversation, /quit to leave)")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/history":
			for _, m := range widget.Log().Messages() {
				printMessage(out, m)
			}
			continue
		}

		o, ok := widget.Send(ctx, line)
		if !ok {
			continue
		}
		printMessage(out, o.Reply)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func printMessage(out io.Writer, m model.Message) {
	who := "assistant"
	if m.Origin == model.OriginUser {
		who = "you"
	}
	fmt.Fprintf(out, "%-9s %s\n", who+":", m.Text)
}
