// Command chatcli opens one conversation from the terminal. Lines read from
// stdin are sent, and the conversation is printed as it changes. "/away"
// and "/back" tell it whether you are watching, which decides when a
// notification is printed for incoming messages.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/infra/logger"
	"github.com/thereayou/heartmatch/pkg/auth"
	"github.com/thereayou/heartmatch/pkg/chatclient"
)

type options struct {
	serverURL string
	token     string
	match     string
	timeout   time.Duration
	away      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.serverURL, "server", envOr("CHAT_SERVER_URL", "http://localhost:8080"), "server base url")
	flag.StringVar(&opts.token, "token", os.Getenv("CHAT_TOKEN"), "access token")
	flag.StringVar(&opts.match, "match", "", "match id of the conversation")
	flag.DurationVar(&opts.timeout, "confirm-timeout", chatclient.DefaultConfirmTimeout, "how long a sent message may stay unconfirmed")
	flag.BoolVar(&opts.away, "away", false, "start as not watching the conversation")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log, err := logger.New(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	err = run(opts, log)
	_ = log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatcli: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, log *zap.Logger) error {
	if strings.TrimSpace(opts.token) == "" {
		return errors.New("use -token or CHAT_TOKEN to pass an access token")
	}
	matchID, err := uuid.Parse(opts.match)
	if err != nil {
		return fmt.Errorf("use -match to pass a match id: %w", err)
	}
	self, err := auth.SubjectUnverified(opts.token)
	if err != nil {
		return fmt.Errorf("unreadable token: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := chatclient.Dial(ctx, opts.serverURL, opts.token)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller := chatclient.NewController(self, matchID, chatclient.ControllerOptions{
		ConfirmTimeout: opts.timeout,
		OnFailure: func(_, content string) {
			fmt.Printf("! not delivered: %q (kept as draft)\n", content)
		},
	})
	session := chatclient.NewSession(conn, controller, chatclient.NewNotifier(self, true), matchID)
	session.OnNotify = func(title, body string) { fmt.Printf("\a* %s: %s\n", title, body) }
	session.OnError = func(e chatclient.ErrorPayload) { fmt.Printf("! %s: %s\n", e.Code, e.Error) }
	session.SetVisible(!opts.away)

	go func() {
		if err := conn.ReadLoop(ctx, func(f chatclient.Frame) {
			before := len(controller.Messages())
			session.Handle(f)
			if msgs := controller.Messages(); f.Type == "new_message" && len(msgs) > before {
				printMessage(self, msgs[len(msgs)-1])
			}
		}); err != nil {
			log.Warn("connection lost", zap.Error(err))
		}
		stop()
	}()

	if err := session.Open(ctx, nil, opts.serverURL, opts.token); err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	defer session.Close()

	for _, m := range controller.Messages() {
		printMessage(self, m)
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// give the last message a moment to be confirmed
				time.Sleep(500 * time.Millisecond)
				return nil
			}
			switch strings.TrimSpace(line) {
			case "":
			case "/away":
				session.SetVisible(false)
			case "/back":
				session.SetVisible(true)
			default:
				if _, err := session.Send(line); err != nil {
					fmt.Printf("! send failed: %v\n", err)
				}
			}
		}
	}
}

func printMessage(self uuid.UUID, m chatclient.Message) {
	who := "them"
	if m.SenderID == self {
		who = "me"
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Content)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
