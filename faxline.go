/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package faxline

import (
	"embed"
	"time"

	"github.com/jerry-enebeli/faxline/config"
	"github.com/jerry-enebeli/faxline/cost"
	"github.com/jerry-enebeli/faxline/database"
	"github.com/jerry-enebeli/faxline/internal/cache"
	"github.com/jerry-enebeli/faxline/internal/notification"
	redis_db "github.com/jerry-enebeli/faxline/internal/redis-db"
	"github.com/jerry-enebeli/faxline/predictor"
	"github.com/jerry-enebeli/faxline/registry"
	"github.com/jerry-enebeli/faxline/scheduler"
	"github.com/jerry-enebeli/faxline/transport"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("faxline")

//go:embed sql/*.sql
var SQLFiles embed.FS

// Faxline is the dispatch engine. It owns the job lifecycle and wires the
// registry, predictor, scheduler and transport together.
type Faxline struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	registry   *registry.Registry
	calculator *cost.Calculator
	predictor  *predictor.Predictor
	scheduler  *scheduler.Scheduler
	transport  transport.Client
	cache      cache.Cache
	location   *time.Location
	settings   settings
}

// settings are the dispatch knobs read once from configuration.
type settings struct {
	maxRetries        int
	backoff           []time.Duration
	broadcastInterval time.Duration
	lockTTL           time.Duration
	lockWait          time.Duration
	historyLimit      int
	statsTTL          time.Duration
	stuckSending      time.Duration
	recoveryInterval  time.Duration
}

// Option customizes a Faxline after the configured defaults are applied.
type Option func(*Faxline)

// WithTransport replaces the HTTP carrier client.
func WithTransport(client transport.Client) Option {
	return func(f *Faxline) {
		f.transport = client
	}
}

// WithClock makes every timestamp and scheduling decision use clock.
func WithClock(clock scheduler.Clock) Option {
	return func(f *Faxline) {
		f.scheduler = scheduler.New(clock, f.location)
	}
}

func WithRegistry(r *registry.Registry) Option {
	return func(f *Faxline) {
		f.registry = r
	}
}

// NewFaxline builds the engine from the stored configuration.
func NewFaxline(db database.IDataSource, opts ...Option) (*Faxline, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	redisClient, err := redis_db.NewRedisClient(redis_db.SplitAddresses(cfg.Redis.Dns), cfg.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	queue, err := NewQueue(cfg)
	if err != nil {
		return nil, err
	}

	destinations, err := registry.Default()
	if err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(cfg.Dispatch.DefaultTimezone)
	if err != nil {
		return nil, err
	}

	f := &Faxline{
		queue:      queue,
		redis:      redisClient.Client(),
		datasource: db,
		registry:   destinations,
		calculator: cost.NewCalculator(feesFromConfig(cfg.Costs)),
		predictor:  predictor.New(predictorOptions(cfg.Predictor, location)),
		scheduler:  scheduler.New(scheduler.SystemClock, location),
		transport:  transport.NewHTTPClient(cfg.Transport),
		cache:      cache.New(redisClient.Client(), time.Minute),
		location:   location,
		settings:   settingsFromConfig(cfg),
	}
	for _, opt := range opts {
		opt(f)
	}

	notification.RegisterWebhookSender(f.systemWebhookSender)
	return f, nil
}

func settingsFromConfig(cfg *config.Configuration) settings {
	d := cfg.Dispatch
	return settings{
		maxRetries:        d.MaxRetries,
		backoff:           d.BackoffTable(),
		broadcastInterval: time.Duration(d.BroadcastDelayMs) * time.Millisecond,
		lockTTL:           time.Duration(d.LockTTLSec) * time.Second,
		lockWait:          time.Duration(d.LockWaitSec) * time.Second,
		historyLimit:      cfg.Predictor.HistoryLimit,
		statsTTL:          time.Duration(d.HistoryCacheTTLSec) * time.Second,
		stuckSending:      time.Duration(d.StuckSendingMinutes) * time.Minute,
		recoveryInterval:  time.Duration(d.RecoveryIntervalSec) * time.Second,
	}
}

func feesFromConfig(c config.CostConfig) cost.Fees {
	return cost.Fees{
		PostageFirstPage:      decimal.NewFromFloat(c.PostageFirstPage),
		PostageAdditionalPage: decimal.NewFromFloat(c.PostageAdditionalPage),
		Envelope:              decimal.NewFromFloat(c.Envelope),
		PrintingPerPage:       decimal.NewFromFloat(c.PrintingPerPage),
		LaborPerMailing:       decimal.NewFromFloat(c.LaborPerMailing),
		CarrierBase:           decimal.NewFromFloat(c.CarrierBase),
		CarrierPerPage:        decimal.NewFromFloat(c.CarrierPerPage),
	}
}

func predictorOptions(p config.PredictorConfig, location *time.Location) predictor.Options {
	return predictor.Options{
		Multipliers: predictor.Multipliers{
			LongDocument:     p.LongDocument,
			VeryLongDocument: p.VeryLongDocument,
			OutsideHours:     p.OutsideHours,
			Weekend:          p.Weekend,
			UrgentPriority:   p.UrgentPriority,
			RecentFailures:   p.RecentFailures,
		},
		FallbackRate:        p.FallbackRate,
		HighConfidenceSends: p.HighConfidenceSends,
		DefaultLocation:     location,
	}
}

// Registry exposes the destination catalog to the API layer.
func (f *Faxline) Registry() *registry.Registry {
	return f.registry
}

// Calculator exposes the fee model to the API layer.
func (f *Faxline) Calculator() *cost.Calculator {
	return f.calculator
}

// Queue exposes the task queue so workers share the engine's connection.
func (f *Faxline) Queue() *Queue {
	return f.queue
}

func (f *Faxline) now() time.Time {
	return f.scheduler.Clock().Now()
}

func (f *Faxline) backoffFor(retryCount int) time.Duration {
	if len(f.settings.backoff) == 0 {
		return 0
	}
	if retryCount >= len(f.settings.backoff) {
		return f.settings.backoff[len(f.settings.backoff)-1]
	}
	return f.settings.backoff[retryCount]
}
