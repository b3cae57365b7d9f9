package main

import (
	"classchat/internal/commands"
	"classchat/internal/config"
	"classchat/internal/http"
	"classchat/internal/metrics"
	"classchat/internal/models"
	"classchat/internal/session"
	"classchat/internal/storage"
	"classchat/internal/ws"
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	flags := flag.NewFlagSet("classchat", flag.ContinueOnError)
	history := flags.Bool("history", false, "Print the cached transcript of the configured group and exit")
	ask := flags.String("ask", "", "Send one prompt to the course assistant and print the reply")
	chats := flags.Bool("chats", false, "List stored assistant chats and GPTs and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	offline := *history || *ask != "" || *chats
	cfg, err := config.Load(offline)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if *history {
		return commands.PrintHistory(out, cfg)
	}
	if *ask != "" {
		return commands.Ask(ctx, out, cfg, logger, *ask)
	}
	if *chats {
		return commands.ListChats(ctx, out, cfg, logger)
	}

	m := metrics.New()
	renderer := commands.NewRenderer(out)

	sessionConfig := session.Config{
		Identity:       models.Identity{ID: cfg.UserID, Name: cfg.UserName, AvatarRef: cfg.Avatar},
		GroupID:        cfg.GroupID,
		RequireAvatar:  cfg.RequireAvatar,
		TypingDebounce: cfg.TypingDebounce,
		TypingTTL:      cfg.TypingTTL,
		MaxMessages:    cfg.MaxMessages,
		Reconnect:      cfg.Reconnect,
		Metrics:        m,
		Logger:         logger,
		OnChange:       renderer.Update,
	}

	if cfg.HistoryDB != "" {
		bbStorage, err := storage.NewBboltStorage(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer func() { _ = bbStorage.Close() }()
		sessionConfig.History = bbStorage
	}

	sess, err := session.New(sessionConfig)
	if err != nil {
		return err
	}
	defer sess.Close()

	client, err := ws.NewGatewayClient(
		ws.DialConfig{URL: cfg.GatewayURL, Form: ws.IdentityForm(cfg.IdentityForm)},
		sessionConfig.Identity,
		ws.ClientConfig{
			Handler:   sess,
			Reconnect: cfg.Reconnect,
			Backoff:   ws.Backoff{Min: cfg.ReconnectMin, Max: cfg.ReconnectMax},
			Logger:    logger,
			Metrics:   m,
			OnReconnecting: func(attempt int, delay time.Duration) {
				logger.Info("Reconnecting", "attempt", attempt, "delay", delay)
			},
		},
	)
	if err != nil {
		return err
	}

	console := commands.NewConsole(sess, renderer, out, logger)

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return sess.Run(runCtx, client)
	})

	g.Go(func() error {
		defer stop()
		return console.Run(runCtx, in)
	})

	if cfg.MetricsAddr != "" {
		statusServer := http.NewStatusServer(sess, m, cfg.MetricsAddr, logger)

		g.Go(func() error {
			return statusServer.Start()
		})

		// Stop the status server once the session is over
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := statusServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Status server shutdown error", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}
