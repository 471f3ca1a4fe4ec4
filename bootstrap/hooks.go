package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/artpar/paramkit/core/events"
)

// RegisterHooks subscribes the server's built-in handlers to the event bus.
func RegisterHooks(bus *events.Bus, logger zerolog.Logger) {
	bus.Subscribe(events.ValidationCompleted, validationCompleted(logger))
	bus.Subscribe(events.ValuesExpired, valuesExpired(logger))
	bus.Subscribe(events.ModeSwitched, modeSwitched(logger))

	logger.Debug().Msg("event hooks registered")
}

// validationCompleted logs the outcome of a full validation pass. Failed
// passes are logged at info so they show up at the default level.
func validationCompleted(logger zerolog.Logger) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		valid, _ := event.Data["valid"].(bool)
		e := logger.Debug()
		if !valid {
			e = logger.Info()
		}
		e.Str("context", event.Context).
			Bool("valid", valid).
			Interface("checked", event.Data["checked"]).
			Interface("failed", event.Data["failed"]).
			Msg("validation completed")
		return nil
	}
}

func valuesExpired(logger zerolog.Logger) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		logger.Info().
			Str("context", event.Context).
			Str("path", event.Path).
			Msg("expirable value reset")
		return nil
	}
}

func modeSwitched(logger zerolog.Logger) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		logger.Debug().
			Str("context", event.Context).
			Str("path", event.Path).
			Interface("from", event.Data["from"]).
			Interface("to", event.Data["to"]).
			Msg("mode switched")
		return nil
	}
}
