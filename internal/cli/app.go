package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/borgmon/alert-keeper/pkg/audio"
	"github.com/borgmon/alert-keeper/pkg/cadence"
	"github.com/borgmon/alert-keeper/pkg/calendar"
	"github.com/borgmon/alert-keeper/pkg/clock"
	"github.com/borgmon/alert-keeper/pkg/config"
	"github.com/borgmon/alert-keeper/pkg/logging"
	"github.com/borgmon/alert-keeper/pkg/presence"
	"github.com/borgmon/alert-keeper/pkg/reconcile"
	"github.com/borgmon/alert-keeper/pkg/scheduler"
	"github.com/borgmon/alert-keeper/pkg/store"
	"go.uber.org/zap"
)

// openPreferences opens the preference store of the Fyne app with the given
// id. Only reads are made; the desktop app owns writes.
var openPreferences = func(id string) fyne.Preferences {
	return fyneapp.NewWithID(id).Preferences()
}

// app is everything a command needs, opened from the config file.
type app struct {
	file     *config.File
	settings scheduler.SettingsSource
	logger   *zap.Logger
	clock    clock.Clock

	db         *store.DB
	alerts     *store.AlertStore
	cadence    *store.CadenceStore
	bluez      *presence.BlueZSource
	scheduler  *scheduler.Scheduler
	reconciler *reconcile.Reconciler
}

func openApp(opts *RootOptions) (*app, error) {
	file, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	file.Resolve(filepath.Dir(opts.ConfigPath))

	level := file.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, file.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	initial, err := file.Alerts.Settings()
	if err != nil {
		return nil, fmt.Errorf("alert settings: %w", err)
	}

	db, err := store.Open(file.Database)
	if err != nil {
		return nil, err
	}

	var settings scheduler.SettingsSource = config.NewSource(opts.ConfigPath, initial, logger)
	if file.Settings == config.SettingsPreferences {
		settings = store.NewConfigStore(openPreferences(file.PreferencesID))
		logger.Info("alert settings from preferences", zap.String("id", file.PreferencesID))
	}

	a := &app{
		file:     file,
		settings: settings,
		logger:   logger,
		clock:    clock.System{},
		db:       db,
		alerts:   store.NewAlertStore(db.SQL(), logger),
		cadence:  store.NewCadenceStore(db.SQL(), logger),
		bluez:    presence.NewBlueZSource(file.BlueZAdapter),
	}

	// The bus is only dialled once presence_devices lists a device.
	override := presence.NewOverride(store.NewPresenceStore(db.SQL(), logger), a.bluez, logger)

	var notifier scheduler.Notifier = scheduler.NewLogNotifier(logger)
	if file.Sound.Enabled {
		notifier = audio.NewNotifier(notifier, audio.NewPlayer(), file.Sound.Volume, logger)
	}

	a.scheduler = scheduler.New(scheduler.Options{
		Alerts:   a.alerts,
		Cadence:  cadence.NewTracker(a.cadence, logger),
		Presence: override,
		Settings: a.settings,
		Notifier: notifier,
		Clock:    a.clock,
		Logger:   logger,
	})

	a.reconciler = reconcile.New(
		a.alerts,
		calendar.NewICSCalendar(file.Calendar, logger),
		a.clock,
		func() time.Duration { return a.settings.Load().Retention },
		logger,
	)

	return a, nil
}

// gcResult counts the rows a gc pass removed.
type gcResult struct {
	Alerts  int64
	Cadence int64
}

// gc removes alerts whose occurrence started before the retention window,
// then reminder state for alerts that are gone or finished reminding before
// it. The cadence pass holds the alert store lock so no alert can appear
// between listing live keys and pruning.
func (a *app) gc(ctx context.Context) gcResult {
	cutoff := a.clock.Now().Add(-a.settings.Load().Retention)

	var res gcResult
	res.Alerts = a.alerts.DeleteOlderThan(ctx, cutoff)
	a.alerts.Exclusive(ctx, func(v *store.AlertView) error {
		entries, err := v.AllEntries(ctx)
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}
		live := make(map[string]bool, len(entries))
		for _, entry := range entries {
			live[entry.Key().String()] = true
		}
		res.Cadence = a.cadence.Prune(ctx, live, cutoff)
		return nil
	})

	a.logger.Info("gc finished",
		zap.Int64("alerts", res.Alerts),
		zap.Int64("cadence", res.Cadence),
		zap.Time("cutoff", cutoff),
	)
	return res
}

func (a *app) Close() {
	if err := a.bluez.Close(); err != nil {
		a.logger.Warn("close bluez connection", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
