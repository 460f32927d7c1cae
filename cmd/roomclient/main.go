package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/api"
	"github.com/openstage/roomclient/internal/app"
	"github.com/openstage/roomclient/internal/config"
	"github.com/openstage/roomclient/internal/domain"
	"github.com/openstage/roomclient/internal/media"
	sig "github.com/openstage/roomclient/internal/signal"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	localID := domain.UserID(cfg.UserID)
	registryOracle := &registryAdminOracle{}

	session := app.NewSession(localID, app.Deps{
		Settings:    api.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout),
		Permissions: grantedPermissions{},
		AdminOracle: registryOracle,
		Prompter:    &terminalPrompter{in: os.Stdin, out: os.Stderr},
		Notifier:    &logNotifier{},
		Channel: sig.NewChannel(sig.Config{
			BaseInterval:     cfg.Signal.BaseInterval,
			MaxInterval:      cfg.Signal.MaxInterval,
			Decay:            cfg.Signal.Decay,
			MaxAttempts:      cfg.Signal.MaxReconnectAttempts,
			HandshakeTimeout: cfg.Signal.HandshakeTimeout,
			WriteTimeout:     cfg.Signal.WriteTimeout,
		}),
		Media: media.NewSession(),
	}, app.Options{
		DevicePixelRatio: cfg.DevicePixelRatio,
		ReactionTTL:      cfg.ReactionTTL,
	})
	registryOracle.registry = session.Registry()

	res, err := session.Connect(ctx, domain.RoomID(cfg.RoomID), domain.RoomPass(cfg.RoomPass))
	if err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	switch res.Type {
	case app.ConnectOK:
		log.Info().Str("room", cfg.RoomID).Msg("joined room")
	case app.ConnectNotPermitted:
		log.Fatal().Msg("audio permission denied")
	case app.ConnectPaid:
		log.Fatal().Msg("room requires a ticket")
	case app.ConnectNftRequired:
		log.Fatal().Str("event", res.EventID).Msg("room requires an NFT ticket")
	case app.ConnectFailLoadSettings:
		log.Fatal().Msg("room is already over")
	default:
		log.Fatal().Msg("could not join room")
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	result, err := session.PrepareForLeave(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("leave negotiation failed")
	}
	log.Info().Str("result", result.String()).Msg("leaving")
	session.Destroy()
}
