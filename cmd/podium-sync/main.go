// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

// Command podium-sync joins a teaching room as one participant and
// keeps the taught content synchronized with the peer: it connects the
// WebRTC data channel, maintains the durable session record, relays
// slide captures, and tears the session down when either side leaves.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/podium-foundation/podium/capture"
	"github.com/podium-foundation/podium/lib/clock"
	"github.com/podium-foundation/podium/lib/config"
	"github.com/podium-foundation/podium/protocol"
	"github.com/podium-foundation/podium/session"
	"github.com/podium-foundation/podium/store"
	"github.com/podium-foundation/podium/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "podium-sync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		logLevel   string
	)
	pflag.StringVar(&configPath, "config", "", "path to the YAML config file (defaults to $"+config.EnvVar+")")
	pflag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	pflag.Parse()

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	sessionStore, err := store.Open(cfg.Store.Path, clk, logger)
	if err != nil {
		return err
	}
	defer sessionStore.Close()

	signaler := transport.NewHTTPSignaler(cfg.Signaling.URL)
	channel := transport.NewChannel(signaler,
		cfg.Room.Participant, cfg.Room.Peer,
		transport.ICEConfigFromSignaling(cfg.Signaling), clk, logger)

	pipeline := capture.New(func(msg protocol.Message) error {
		data, err := protocol.Encode(msg)
		if err != nil {
			return err
		}
		return channel.Send(data)
	}, clk, logger, capture.Options{
		MaxWidth:    cfg.Capture.MaxWidth,
		Quality:     cfg.Capture.Quality,
		SettleDelay: cfg.Capture.SettleDelay,
	})

	syncer, err := session.New(session.Options{
		Channel:               channel,
		Store:                 sessionStore,
		RoomID:                cfg.Room.ID,
		Participant:           cfg.Room.Participant,
		Peer:                  cfg.Room.Peer,
		Role:                  roleFor(cfg.Room.Participant),
		Capture:               pipeline,
		Beacon:                session.NewBeacon(cfg.Store.CleanupURL, logger),
		Clock:                 clk,
		Logger:                logger,
		TargetDurationMinutes: cfg.Session.TargetDurationMinutes,
		WrapUpBufferMinutes:   cfg.Session.WrapUpBufferMinutes,
	})
	if err != nil {
		return err
	}

	ended := make(chan string, 1)
	syncer.OnEnded(func(reason string) { ended <- reason })

	logger.Info("connecting to peer",
		"room", cfg.Room.ID,
		"participant", cfg.Room.Participant,
		"peer", cfg.Room.Peer)
	if err := channel.Connect(ctx); err != nil {
		return fmt.Errorf("connecting data channel: %w", err)
	}
	if err := syncer.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		syncer.End(context.Background(), store.EndReasonPageUnload)
		<-ended
	case reason := <-ended:
		logger.Info("session over", "reason", reason)
	}
	return nil
}

// roleFor maps the participant name to its controller seat. Anything
// other than the AI avatar sits in the student seat.
func roleFor(participant string) store.Controller {
	if participant == "avatar" {
		return store.ControllerAvatar
	}
	return store.ControllerStudent
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}
