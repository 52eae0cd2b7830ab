// Command watch is a terminal front end for the assistant: it sends chat
// turns, triggers organize runs and surfaces both background jobs'
// progress by polling the server the same way the web UI does.
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

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/client"
	"github.com/hn770123/memory-assistant-v3/internal/domain"
)

func main() {
	serverURL := flag.String("server", "http://localhost:5000", "assistant server base URL")
	organizeEvery := flag.Duration("organize-interval", 500*time.Millisecond, "organize status poll interval")
	extractionEvery := flag.Duration("extraction-interval", time.Second, "extraction status poll interval")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
	}()

	api, err := client.NewClient(*serverURL, &logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	logView := client.NewConsoleLogView(out)
	progressView := client.NewConsoleProgressView(out)
	indicatorView := client.NewConsoleIndicatorView(out)
	chatView := client.NewConsoleChatView(out)

	poller := client.NewJobPoller(api, logView, progressView, *organizeEvery, &logger)
	watcher := client.NewChatStatusWatcher(api, indicatorView, logView, *extractionEvery, &logger)
	session := client.NewChatSession(api, chatView, watcher, &logger)
	defer poller.Stop()
	defer watcher.Stop()

	fmt.Fprintln(out, "commands: /organize  /history  /clear  /test on|off  /quit - anything else is chat")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "/quit":
			return
		case line == "/organize":
			if err := poller.Start(ctx); err != nil && !errors.Is(err, domain.ErrJobAlreadyRunning) {
				fmt.Fprintf(out, "organize: %v\n", err)
			}
		case line == "/history":
			history, err := api.History(ctx)
			if err != nil {
				fmt.Fprintf(out, "history: %v\n", err)
				break
			}
			for _, m := range history {
				fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
			}
		case line == "/clear":
			if err := api.ClearHistory(ctx); err != nil {
				fmt.Fprintf(out, "clear: %v\n", err)
			} else {
				fmt.Fprintln(out, "history cleared")
			}
		case strings.HasPrefix(line, "/test"):
			enabled := strings.TrimSpace(strings.TrimPrefix(line, "/test")) == "on"
			if err := api.SetTestMode(ctx, enabled); err != nil {
				fmt.Fprintf(out, "test mode: %v\n", err)
			} else {
				fmt.Fprintf(out, "test mode: %v\n", enabled)
			}
		default:
			if err := session.Send(ctx, line); err != nil && errors.Is(err, domain.ErrEmptyMessage) {
				continue
			}
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "stdin: %v\n", err)
	}
}
