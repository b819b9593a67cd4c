package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"isucondition/internal/alerting"
	"isucondition/internal/condition"
	"isucondition/internal/config"
	"isucondition/internal/scheduler"
	"isucondition/internal/storage"
)

// ErrInvalidDevice reports a registration without id or character.
var ErrInvalidDevice = errors.New("device id and character are required")

// Service wires storage and alerting around the condition engine.
type Service struct {
	scheduler  *scheduler.Scheduler
	repo       storage.Repository
	notifier   alerting.Notifier
	logger     zerolog.Logger
	graphOpts  condition.Options
	limit      int
	channels   []string
	alertsOn   bool
	cooldown   time.Duration
	retention  time.Duration
	locker     storage.AdvisoryLocker
	lockKey    int64
	now        func() time.Time
	mu         sync.Mutex
	lastAlerts map[string]time.Time
}

// New constructs the condition service.
func New(cfg *config.Config, sched *scheduler.Scheduler, repo storage.Repository, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := repo.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		repo:       repo,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		graphOpts:  cfg.GraphOptions(),
		limit:      cfg.Conditions.Limit,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		cooldown:   cfg.Alerting.Cooldown,
		retention:  cfg.Alerting.Retention,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		now:        time.Now,
		lastAlerts: make(map[string]time.Time),
	}
}

// GraphOptions exposes the bucketing parameters in use.
func (s *Service) GraphOptions() condition.Options {
	return s.graphOpts
}

// Run begins the aligned sweep loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.Sweep)
}

// RegisterDevice creates or updates a device.
func (s *Service) RegisterDevice(ctx context.Context, device storage.Device) error {
	device.DeviceID = strings.TrimSpace(device.DeviceID)
	device.Character = strings.TrimSpace(device.Character)
	if device.DeviceID == "" || device.Character == "" {
		return ErrInvalidDevice
	}
	if device.Name == "" {
		device.Name = device.DeviceID
	}
	if err := s.repo.UpsertDevice(ctx, device); err != nil {
		return err
	}
	s.logger.Info().Str("device_id", device.DeviceID).Str("character", device.Character).Msg("device registered")
	return nil
}

// Ingest validates and stores a batch of condition reports for a device.
// The batch is rejected as a whole when any record is malformed.
func (s *Service) Ingest(ctx context.Context, deviceID string, records []condition.Record) error {
	if _, err := s.repo.GetDevice(ctx, deviceID); err != nil {
		return err
	}

	batch := make([]condition.Record, len(records))
	for i, rec := range records {
		rec.DeviceID = deviceID
		batch[i] = rec
	}
	if err := condition.ValidateBatch(batch); err != nil {
		return err
	}

	if err := s.repo.InsertConditions(ctx, deviceID, batch); err != nil {
		return err
	}
	s.logger.Info().Str("device_id", deviceID).Int("records", len(batch)).Msg("conditions stored")
	return nil
}

// Graph builds the daily graph of a device for the day containing day.
func (s *Service) Graph(ctx context.Context, deviceID string, day time.Time) ([]condition.GraphBucket, error) {
	history, err := s.History(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return condition.BuildDailyGraph(deviceID, day, history, s.graphOpts)
}

// History returns a device's full condition history, oldest first.
func (s *Service) History(ctx context.Context, deviceID string) ([]condition.Record, error) {
	if _, err := s.repo.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.repo.ListConditions(ctx, deviceID)
}

// Conditions lists a device's conditions newest first. A zero End means now,
// a non-positive Limit uses the configured default and a nil severity set
// matches every level.
func (s *Service) Conditions(ctx context.Context, deviceID string, q condition.ListOptions) ([]condition.ListedCondition, error) {
	if _, err := s.repo.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	if q.End.IsZero() {
		q.End = s.now()
	}
	if q.Limit <= 0 {
		q.Limit = s.limit
	}
	if q.Severities == nil {
		q.Severities = condition.NewSeveritySet(condition.Severities()...)
	}

	history, err := s.repo.ListConditionsBefore(ctx, deviceID, q.End, q.Start)
	if err != nil {
		return nil, err
	}
	return condition.ListConditions(history, q), nil
}

// Trend summarises the latest condition of every device by character.
func (s *Service) Trend(ctx context.Context) ([]condition.TrendEntry, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return condition.BuildTrend(snap.byCharacter)
}

// RecentAlerts lists the last recorded alerts.
func (s *Service) RecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error) {
	return s.repo.ListRecentAlerts(ctx, limit)
}

type snapshot struct {
	byCharacter map[string][]condition.DeviceHistory
	devices     map[string]storage.Device
}

func (s *Service) loadSnapshot(ctx context.Context) (snapshot, error) {
	devices, err := s.repo.ListDevices(ctx)
	if err != nil {
		return snapshot{}, err
	}

	snap := snapshot{
		byCharacter: make(map[string][]condition.DeviceHistory),
		devices:     make(map[string]storage.Device, len(devices)),
	}
	for _, device := range devices {
		history, err := s.repo.ListConditions(ctx, device.DeviceID)
		if err != nil {
			return snapshot{}, err
		}
		snap.devices[device.DeviceID] = device
		snap.byCharacter[device.Character] = append(snap.byCharacter[device.Character], condition.DeviceHistory{
			DeviceID: device.DeviceID,
			History:  history,
		})
	}
	return snap, nil
}

// Sweep runs one scheduled pass: it logs the trend and alerts on devices
// whose latest condition is critical.
func (s *Service) Sweep(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip sweep because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeSweep(ctx, tick)
}

func (s *Service) executeSweep(ctx context.Context, tick time.Time) error {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load trend snapshot: %w", err)
	}
	trend, err := condition.BuildTrend(snap.byCharacter)
	if err != nil {
		return fmt.Errorf("build trend: %w", err)
	}

	for _, entry := range trend {
		s.logger.Info().Time("tick", tick).
			Str("character", entry.Character).
			Int("info", len(entry.Info)).
			Int("warning", len(entry.Warning)).
			Int("critical", len(entry.Critical)).
			Msg("trend recorded")
	}

	if !s.alertsOn || s.notifier == nil {
		return nil
	}

	for _, entry := range trend {
		for _, item := range entry.Critical {
			s.alertCritical(ctx, snap, entry.Character, item)
		}
	}

	if s.retention > 0 {
		if err := s.repo.DeleteAlertsBefore(ctx, s.now().Add(-s.retention)); err != nil {
			s.logger.Error().Err(err).Msg("failed to prune alert records")
		}
	}
	return nil
}

func (s *Service) alertCritical(ctx context.Context, snap snapshot, character string, item condition.TrendCondition) {
	if s.coolingDown(item.DeviceID) {
		return
	}

	// the alert row claims the condition; it is released again if dispatch fails
	inserted, err := s.repo.InsertAlert(ctx, storage.AlertRecord{
		DeviceID:    item.DeviceID,
		ConditionTS: item.Timestamp,
		Severity:    condition.SeverityCritical,
		Channels:    s.channels,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("device_id", item.DeviceID).Msg("failed to persist alert record")
		return
	}
	if !inserted {
		return
	}

	note := alerting.Notification{
		DeviceID:  item.DeviceID,
		Character: character,
		Timestamp: item.Timestamp.In(s.graphOpts.Location),
		Severity:  condition.SeverityCritical,
		Channels:  s.channels,
	}
	if device, ok := snap.devices[item.DeviceID]; ok {
		note.DeviceName = device.Name
	}
	for _, h := range snap.byCharacter[character] {
		if h.DeviceID != item.DeviceID {
			continue
		}
		if latest, ok := condition.Latest(h.History); ok {
			note.Condition = latest.Condition
			note.Message = latest.Message
		}
	}

	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("device_id", item.DeviceID).Msg("failed to dispatch alert")
		if err := s.repo.DeleteAlert(ctx, item.DeviceID, item.Timestamp); err != nil {
			s.logger.Error().Err(err).Str("device_id", item.DeviceID).Msg("failed to release alert record")
		}
		return
	}
	s.markAlerted(item.DeviceID)
}

// coolingDown reports whether the device was alerted less than cooldown ago.
func (s *Service) coolingDown(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastAlerts[deviceID]
	return ok && s.cooldown > 0 && s.now().Sub(last) < s.cooldown
}

func (s *Service) markAlerted(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAlerts[deviceID] = s.now()
}

// SimulateAlert dispatches a notification for a synthetic condition string.
func (s *Service) SimulateAlert(ctx context.Context, deviceID, flags, message string) error {
	if s.notifier == nil {
		return fmt.Errorf("no alert channel configured")
	}
	sev, err := condition.Classify(flags)
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, alerting.Notification{
		DeviceID:      deviceID,
		Timestamp:     s.now().In(s.graphOpts.Location),
		Severity:      sev,
		Condition:     flags,
		Message:       message,
		Channels:      s.channels,
		AdditionalMsg: "(simulated)",
	})
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
