package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
	"github.com/you/gatekeeper/internal/config"
)

// Run wires the container and serves until SIGINT/SIGTERM. In polling
// mode the update loop is the foreground task; in webhook mode the
// HTTP server is. The sweeper runs alongside either.
func Run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := NewContainer(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()
	// Let an in-flight broadcast finish before state is flushed.
	defer container.Router.Wait()

	go container.Sweeper.Run(ctx)

	if cfg.Mode == "webhook" {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting in webhook mode")
		errc := make(chan error, 1)
		go func() { errc <- container.HTTP.Run(cfg.HTTPPort) }()
		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		}
	}

	log.Info().Msg("starting in polling mode")
	err = container.Gateway.Poll(ctx, func(event domain.Event) {
		container.Router.HandleEvent(ctx, event)
	})
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("shutting down")
		return nil
	}
	return err
}
