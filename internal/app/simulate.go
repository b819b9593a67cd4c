package app

import (
	"context"
	"errors"

	"isucondition/internal/service"
)

// SimulateAlert dispatches a notification for the given condition string
// through the configured channels without touching stored history.
func (a *App) SimulateAlert(ctx context.Context, deviceID, flags, message string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	svc := service.New(a.Config, nil, nil, notifier, a.Logger)
	if err := svc.SimulateAlert(ctx, deviceID, flags, message); err != nil {
		return err
	}
	a.Logger.Info().Str("device_id", deviceID).Str("condition", flags).Msg("simulated alert dispatched")
	return nil
}
