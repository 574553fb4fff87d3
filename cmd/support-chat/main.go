// ABOUTME: Terminal client for the storefront support chat.
// ABOUTME: Readline-style input dispatched to the session engine, colorized transcript output.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/lumenshop/support-chat/internal/config"
	"github.com/lumenshop/support-chat/internal/gateway"
	"github.com/lumenshop/support-chat/internal/session"
)

const banner = `
   lumenshop support chat
`

// renderInterval is how often the transcript is re-checked for messages
// that arrived over the push channel or the poller.
const renderInterval = 250 * time.Millisecond

// closeTimeout bounds the teardown resolve call on exit.
const closeTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load(".env")

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Gateway:   %s (account %d, inbox %d)\n", cfg.Gateway.BaseURL, cfg.Gateway.AccountID, cfg.Gateway.InboxID)
	green.Print("    ▶ ")
	fmt.Printf("Websocket: %s\n", cfg.Websocket.URL)
	green.Print("    ▶ ")
	fmt.Printf("Bot:       %s\n", cfg.Bot.Endpoint)
	fmt.Println()
	fmt.Println("Type a question and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.AccountID, cfg.Gateway.APIAccessToken, logger)
	bot := gateway.NewBotClient(cfg.Bot.Endpoint, cfg.Bot.Timeout)

	sess := session.New(session.Config{
		AccountID:    cfg.Gateway.AccountID,
		InboxID:      cfg.Gateway.InboxID,
		WebsocketURL: cfg.Websocket.URL,
		Profile: gateway.Profile{
			Name:        cfg.Customer.Name,
			Email:       cfg.Customer.Email,
			PhoneNumber: cfg.Customer.PhoneNumber,
		},
		PollInterval: cfg.Transports.PollInterval,
		Greeting:     cfg.FAQ.Greeting,
	}, gw, bot, logger)

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		sess.Close(closeCtx)
	}()

	r := newRenderer(sess, cfg.FAQ.Topics)
	r.flush()

	// Messages arriving over the transports are printed as they land.
	stopRender := make(chan struct{})
	defer close(stopRender)
	go func() {
		ticker := time.NewTicker(renderInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopRender:
				return
			case <-ticker.C:
				r.flush()
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		r.prompt()

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if err := dispatch(ctx, sess, r, input); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
		r.flush()
	}
}

// dispatch routes one line of input to a session operation. Slash commands
// work in any mode; plain text goes to whatever the current mode expects.
func dispatch(ctx context.Context, sess *session.Session, r *renderer, input string) error {
	switch {
	case input == "/help":
		printHelp()
		return nil

	case input == "/agent":
		return sess.ReferToAgent(ctx)

	case input == "/ticket":
		return sess.StartTicket()

	case input == "/again":
		return sess.AskAnotherQuestion(ctx)

	case strings.HasPrefix(input, "/faq"):
		args := strings.TrimSpace(strings.TrimPrefix(input, "/faq"))
		if args == "" {
			r.printTopics()
			return nil
		}
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 || n > len(r.topics) {
			return fmt.Errorf("unknown topic %q, use /faq to list them", args)
		}
		return sess.AskFAQTopic(ctx, r.topics[n-1])

	case strings.HasPrefix(input, "/"):
		return fmt.Errorf("unknown command %s, try /help", input)
	}

	switch sess.Mode() {
	case session.ModeBot:
		return sess.AskQuestion(ctx, input)
	case session.ModeAwaitingProblem:
		return sess.SubmitProblem(ctx, input)
	case session.ModeAgent:
		return sess.SendAgentMessage(ctx, input)
	case session.ModeTicket:
		return sess.SubmitTicket(ctx, input)
	}
	return nil
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /faq           List quick FAQ topics")
	fmt.Println("  /faq <n>       Ask topic number n")
	fmt.Println("  /agent         Talk to a human agent")
	fmt.Println("  /ticket        Open a support ticket")
	fmt.Println("  /again         Leave the agent conversation, back to the bot")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /quit          Exit")
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs go to stderr so they interleave cleanly with the transcript
	// on stdout.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
