package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"isucondition/internal/alerting"
	"isucondition/internal/config"
	"isucondition/internal/scheduler"
	"isucondition/internal/service"
	"isucondition/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (storage.Repository, func(), error) {
	repo, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}

// openService opens the store and builds a service without a scheduler.
func (a *App) openService(ctx context.Context, notifier alerting.Notifier) (*service.Service, func(), error) {
	repo, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return service.New(a.Config, nil, repo, notifier, a.Logger), closeStore, nil
}

// Run executes the long-running trend sweep service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier := a.newNotifier()
	if a.Config.Alerting.Enabled && notifier == nil {
		a.Logger.Warn().Msg("alerting enabled but no channel configured; alerts disabled")
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   true,
		Location:     a.Config.GraphOptions().Location,
	}, a.Logger)

	svc := service.New(a.Config, sched, repo, notifier, a.Logger)

	a.Logger.Info().Str("driver", a.Config.Database.Driver).Dur("interval", a.Config.Scheduler.Interval).Msg("starting condition service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("condition service stopped")
	return nil
}

// GraphOptions hold parameters for rendering a daily graph.
type GraphOptions struct {
	DeviceID string
	Day      time.Time
	Format   string
	PNGPath  string
	CSVPath  string
}

// ConditionsOptions configure the conditions command.
type ConditionsOptions struct {
	DeviceID string
	Start    *time.Time
	End      *time.Time
	Levels   string
	Limit    int
	JSON     bool
}

// TrendOptions configure the trend command.
type TrendOptions struct {
	JSON bool
}

// IngestOptions configure the ingest command.
type IngestOptions struct {
	DeviceID string
	Path     string
}

// RegisterOptions configure the register command.
type RegisterOptions struct {
	DeviceID  string
	Name      string
	Character string
}

// AuditOptions configure the audit job.
type AuditOptions struct {
	DeviceID string
	From     time.Time
	To       time.Time
}

// AlertsOptions configure the alerts command.
type AlertsOptions struct {
	Limit int
}
