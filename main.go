package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"posto/internal/api"
	"posto/internal/cli"
	"posto/internal/client"
	"posto/internal/config"
	"posto/internal/credstore"
	"posto/internal/realtime"
	"posto/internal/session"
	"posto/internal/store"
	"posto/internal/typing"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	creds, err := credstore.Open(cfg.CredFile)
	if err != nil {
		return err
	}
	defer func() { _ = creds.Close() }()

	sess := session.New(creds, logger)
	gateway := api.NewClient(cfg.APIBaseURL, sess, cfg.HTTPTimeout)

	st := store.New()
	presence := store.NewPresence()
	tracker := typing.NewTracker()

	// The notifier sends through the adapter and the adapter cancels the
	// notifier on disconnect, so one of the two is wired via closure.
	var notifier *typing.Notifier
	adapter := realtime.NewAdapter(realtime.Config{
		Dial:         realtime.NewDialer(cfg.WSURL, sess),
		Store:        st,
		Presence:     presence,
		Typing:       tracker,
		AckTimeout:   cfg.SendAckTimeout,
		ReconnectMin: cfg.ReconnectMin,
		ReconnectMax: cfg.ReconnectMax,
		Logger:       logger,
		OnDisconnect: func() {
			if notifier != nil {
				notifier.Cancel()
			}
		},
	})
	notifier = typing.NewNotifier(adapter, cfg.TypingStartWindow, cfg.TypingStopWindow)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cl := client.New(ctx, client.Config{
		Gateway:    gateway,
		Channel:    adapter,
		Store:      st,
		Presence:   presence,
		Typing:     tracker,
		Notifier:   notifier,
		Session:    sess,
		ProfileTTL: cfg.ProfileCacheTTL,
		Logger:     logger,
	})

	if err := cl.Restore(ctx); err != nil {
		logger.Warn("session restore failed", "error", err)
	}

	ui := cli.New(cl, st, presence, tracker, sess, os.Stdin, os.Stdout)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return adapter.Run(gCtx)
	})

	g.Go(func() error {
		// The UI returning (EOF or /quit) shuts the whole client down.
		defer cancel()
		return ui.Run(gCtx)
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
