// Package app wires the Findr services from settings for the CLI commands.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/findrapp/findr/internal/buildinfo"
	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/datastore"
	"github.com/findrapp/findr/internal/datastore/repository"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/httpclient"
	"github.com/findrapp/findr/internal/identity"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/mqtt"
	"github.com/findrapp/findr/internal/observability"
	"github.com/findrapp/findr/internal/sightings"
	"github.com/findrapp/findr/internal/supabase"
)

const sentryFlushTimeout = 2 * time.Second

// App holds the wired services. Close releases them.
type App struct {
	Settings   *conf.Settings
	Metrics    *observability.Metrics
	Store      *datastore.Store
	Supabase   *supabase.Client // nil when the hosted store is not configured
	Classifier *classifier.Classifier
	Sightings  *sightings.Service
	Identity   *identity.Service
	Reconciler *sightings.Reconciler
	Mirror     *identity.Mirror
	MQTT       mqtt.Client // nil unless mqtt.enabled

	http   *httpclient.Client
	log    logger.Logger
	sentry bool
}

// New wires every service. The hosted store and MQTT are optional; the
// local datastore is not.
func New(ctx context.Context, settings *conf.Settings) (*App, error) {
	a := &App{
		Settings: settings,
		http:     httpclient.New(nil),
		log:      logger.Global().Module("app"),
	}

	if err := a.initTelemetry(); err != nil {
		return nil, err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	a.Metrics = m

	store, err := datastore.Open(&settings.Datastore, logger.Global().Module("datastore"))
	if err != nil {
		return nil, err
	}
	a.Store = store

	if settings.Supabase.IsConfigured() {
		a.Supabase, err = supabase.NewFromSettings(&settings.Supabase, a.http, logger.Global().Module("supabase"))
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		a.log.Warn("hosted store not configured, sightings will be queued locally")
	}

	a.Classifier, err = classifier.NewFromSettings(ctx, &settings.Gemini, a.http,
		classifier.WithMetrics(m.Classifier),
		classifier.WithLogger(logger.Global().Module("classifier")))
	if err != nil {
		a.Close()
		return nil, err
	}

	sightingOpts := []sightings.Option{
		sightings.WithHTTPClient(a.http),
		sightings.WithCollection(sightings.NewCollection()),
		sightings.WithMetrics(m.Sightings),
		sightings.WithLogger(logger.Global().Module("sightings")),
	}
	if settings.MQTT.Enabled {
		a.MQTT = mqtt.NewClient(&settings.MQTT, settings.Main.Name, m.MQTT, logger.Global().Module("mqtt"))
		sightingOpts = append(sightingOpts, sightings.WithPublisher(a.MQTT, topicOf(&settings.MQTT)))
	}
	a.Sightings = sightings.NewService(a.Supabase,
		repository.NewPendingSightingRepository(store.DB),
		sightings.ConfigFromSettings(&settings.Supabase),
		sightingOpts...)
	a.Reconciler = sightings.NewReconciler(a.Sightings)

	a.Identity = identity.NewService(
		repository.NewCredentialRepository(store.DB),
		repository.NewSessionRepository(store.DB),
		a.Supabase,
		identity.ConfigFromSettings(&settings.Supabase),
		identity.WithMetrics(m.Identity),
		identity.WithLogger(logger.Global().Module("identity")))
	a.Mirror = identity.NewMirror(a.Identity)

	return a, nil
}

func topicOf(s *conf.MQTTSettings) string {
	if s.Topic != "" {
		return s.Topic
	}
	return mqtt.DefaultConfig().Topic
}

// ConnectMQTT connects the event publisher when enabled. A failed connect
// is logged and publishing stays best effort.
func (a *App) ConnectMQTT(ctx context.Context) {
	if a.MQTT == nil {
		return
	}
	if err := a.MQTT.Connect(ctx); err != nil {
		a.log.Warn("mqtt connect failed, sighting events will be dropped", logger.Error(err))
	}
}

// ReconcileOnce runs one pass of both reconcilers. Passes that cannot run
// for lack of a hosted store are skipped.
func (a *App) ReconcileOnce(ctx context.Context) (sightings.Report, identity.MirrorReport, error) {
	sr, err := a.Reconciler.Run(ctx)
	if err != nil && !errors.Is(err, sightings.ErrNotConfigured) {
		return sr, identity.MirrorReport{}, err
	}
	mr, err := a.Mirror.Reconcile(ctx)
	if err != nil && !errors.Is(err, supabase.ErrNotConfigured) {
		return sr, mr, err
	}
	return sr, mr, nil
}

// ReconcileLoop runs both reconcilers until ctx is done.
func (a *App) ReconcileLoop(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	wg.Go(func() { a.Reconciler.Loop(ctx, interval) })
	defer wg.Wait()

	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := a.Mirror.Reconcile(ctx); err != nil && !errors.Is(err, supabase.ErrNotConfigured) {
			a.log.Warn("account mirror pass failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases the datastore, MQTT connection and telemetry.
func (a *App) Close() {
	if a.MQTT != nil {
		a.MQTT.Disconnect()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Warn("failed to close datastore", logger.Error(err))
		}
	}
	a.http.Close()
	if a.sentry {
		sentry.Flush(sentryFlushTimeout)
	}
}

func (a *App) initTelemetry() error {
	s := a.Settings.Sentry
	if !s.Enabled {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              s.DSN,
		Release:          buildinfo.Current().Release(),
		AttachStacktrace: true,
		SendDefaultPII:   false,
	})
	if err != nil {
		return errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	a.sentry = true
	a.log.Info("error telemetry enabled")
	return nil
}
