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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT            = "5001"
	DEFAULT_MONITORING_PORT = "5004"
	DEFAULT_TIMEZONE        = "America/New_York"

	// MIN_BROADCAST_DELAY is the floor for spacing sends during a broadcast.
	MIN_BROADCAST_DELAY = 1500 * time.Millisecond
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"FAXLINE_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"FAXLINE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"FAXLINE_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"FAXLINE_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"FAXLINE_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"FAXLINE_SERVER_PORT"`

	// ApiKeys are scoped keys for callers that should not hold the secret key.
	ApiKeys []ApiKeyConfig `json:"api_keys" ignored:"true"`
}

// ApiKeyConfig grants a named caller scopes such as "faxes:read" or "*:*".
type ApiKeyConfig struct {
	Name   string   `json:"name"`
	Key    string   `json:"key"`
	Scopes []string `json:"scopes"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"FAXLINE_DATA_SOURCE_DNS"`
	// CompoundFilter turns off server-side scope filtering on windowed history
	// queries when the deployment lacks the composite index.
	CompoundFilter *bool `json:"compound_filter" envconfig:"FAXLINE_DATA_SOURCE_COMPOUND_FILTER"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"FAXLINE_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"FAXLINE_REDIS_SKIP_TLS_VERIFY"`
}

type TransportConfig struct {
	Url        string `json:"url" envconfig:"FAXLINE_TRANSPORT_URL"`
	ApiKey     string `json:"api_key" envconfig:"FAXLINE_TRANSPORT_API_KEY"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"FAXLINE_TRANSPORT_TIMEOUT_SEC"`
}

type QueueConfig struct {
	DispatchQueue  string `json:"dispatch_queue" envconfig:"FAXLINE_QUEUE_DISPATCH"`
	WebhookQueue   string `json:"webhook_queue" envconfig:"FAXLINE_QUEUE_WEBHOOK"`
	Concurrency    int    `json:"concurrency" envconfig:"FAXLINE_QUEUE_CONCURRENCY"`
	MonitoringPort string `json:"monitoring_port" envconfig:"FAXLINE_QUEUE_MONITORING_PORT"`
}

type DispatchConfig struct {
	MaxRetries             int    `json:"max_retries" envconfig:"FAXLINE_DISPATCH_MAX_RETRIES"`
	BackoffMinutes         []int  `json:"backoff_minutes" envconfig:"FAXLINE_DISPATCH_BACKOFF_MINUTES"`
	BroadcastDelayMs       int    `json:"broadcast_delay_ms" envconfig:"FAXLINE_DISPATCH_BROADCAST_DELAY_MS"`
	LockTTLSec             int    `json:"lock_ttl_sec" envconfig:"FAXLINE_DISPATCH_LOCK_TTL_SEC"`
	LockWaitSec            int    `json:"lock_wait_sec" envconfig:"FAXLINE_DISPATCH_LOCK_WAIT_SEC"`
	DefaultTimezone        string `json:"default_timezone" envconfig:"FAXLINE_DISPATCH_DEFAULT_TIMEZONE"`
	HistoryCacheTTLSec     int    `json:"history_cache_ttl_sec" envconfig:"FAXLINE_DISPATCH_HISTORY_CACHE_TTL_SEC"`
	StuckSendingMinutes    int    `json:"stuck_sending_minutes" envconfig:"FAXLINE_DISPATCH_STUCK_SENDING_MINUTES"`
	RecoveryIntervalSec    int    `json:"recovery_interval_sec" envconfig:"FAXLINE_DISPATCH_RECOVERY_INTERVAL_SEC"`
	EnableStuckJobRecovery bool   `json:"enable_stuck_job_recovery" envconfig:"FAXLINE_DISPATCH_ENABLE_STUCK_JOB_RECOVERY"`
}

// CostConfig carries the fee schedule in dollars.
type CostConfig struct {
	PostageFirstPage      float64 `json:"postage_first_page" envconfig:"FAXLINE_COST_POSTAGE_FIRST_PAGE"`
	PostageAdditionalPage float64 `json:"postage_additional_page" envconfig:"FAXLINE_COST_POSTAGE_ADDITIONAL_PAGE"`
	Envelope              float64 `json:"envelope" envconfig:"FAXLINE_COST_ENVELOPE"`
	PrintingPerPage       float64 `json:"printing_per_page" envconfig:"FAXLINE_COST_PRINTING_PER_PAGE"`
	LaborPerMailing       float64 `json:"labor_per_mailing" envconfig:"FAXLINE_COST_LABOR_PER_MAILING"`
	CarrierBase           float64 `json:"carrier_base" envconfig:"FAXLINE_COST_CARRIER_BASE"`
	CarrierPerPage        float64 `json:"carrier_per_page" envconfig:"FAXLINE_COST_CARRIER_PER_PAGE"`
}

type PredictorConfig struct {
	FallbackRate        float64 `json:"fallback_rate" envconfig:"FAXLINE_PREDICTOR_FALLBACK_RATE"`
	LongDocument        float64 `json:"long_document" envconfig:"FAXLINE_PREDICTOR_LONG_DOCUMENT"`
	VeryLongDocument    float64 `json:"very_long_document" envconfig:"FAXLINE_PREDICTOR_VERY_LONG_DOCUMENT"`
	OutsideHours        float64 `json:"outside_hours" envconfig:"FAXLINE_PREDICTOR_OUTSIDE_HOURS"`
	Weekend             float64 `json:"weekend" envconfig:"FAXLINE_PREDICTOR_WEEKEND"`
	UrgentPriority      float64 `json:"urgent_priority" envconfig:"FAXLINE_PREDICTOR_URGENT_PRIORITY"`
	RecentFailures      float64 `json:"recent_failures" envconfig:"FAXLINE_PREDICTOR_RECENT_FAILURES"`
	HistoryLimit        int     `json:"history_limit" envconfig:"FAXLINE_PREDICTOR_HISTORY_LIMIT"`
	HighConfidenceSends int     `json:"high_confidence_sends" envconfig:"FAXLINE_PREDICTOR_HIGH_CONFIDENCE_SENDS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"FAXLINE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"FAXLINE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"FAXLINE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"FAXLINE_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url" envconfig:"FAXLINE_WEBHOOK_URL"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"FAXLINE_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"FAXLINE_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Transport       TransportConfig  `json:"transport"`
	Queue           QueueConfig      `json:"queue"`
	Dispatch        DispatchConfig   `json:"dispatch"`
	Costs           CostConfig       `json:"costs"`
	Predictor       PredictorConfig  `json:"predictor"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("faxline", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called faxline.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Faxline"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Transport.Url = strings.TrimSpace(cnf.Transport.Url)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.DataSource.CompoundFilter == nil {
		enabled := true
		cnf.DataSource.CompoundFilter = &enabled
	}

	cnf.setQueueDefaults()
	if err := cnf.setDispatchDefaults(); err != nil {
		return err
	}
	cnf.setCostDefaults()
	cnf.setPredictorDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (cnf *Configuration) setQueueDefaults() {
	if cnf.Queue.DispatchQueue == "" {
		cnf.Queue.DispatchQueue = "fax_dispatch"
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "fax_webhooks"
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = 10
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = DEFAULT_MONITORING_PORT
	}
}

func (cnf *Configuration) setDispatchDefaults() error {
	d := &cnf.Dispatch
	if d.MaxRetries <= 0 {
		d.MaxRetries = 3
	}
	if len(d.BackoffMinutes) == 0 {
		d.BackoffMinutes = []int{15, 60, 240}
	}
	if len(d.BackoffMinutes) < d.MaxRetries {
		return errors.New("dispatch backoff table must have an entry for every retry")
	}
	if time.Duration(d.BroadcastDelayMs)*time.Millisecond < MIN_BROADCAST_DELAY {
		if d.BroadcastDelayMs != 0 {
			log.Printf("Warning: broadcast delay %dms is below the provider floor. Using %s", d.BroadcastDelayMs, MIN_BROADCAST_DELAY)
		}
		d.BroadcastDelayMs = int(MIN_BROADCAST_DELAY / time.Millisecond)
	}
	if cnf.Transport.TimeoutSec <= 0 {
		cnf.Transport.TimeoutSec = 30
	}
	if d.LockTTLSec <= 0 {
		// must outlive a full transport call
		d.LockTTLSec = 2 * cnf.Transport.TimeoutSec
	}
	if d.LockWaitSec <= 0 {
		d.LockWaitSec = 10
	}
	if d.DefaultTimezone == "" {
		d.DefaultTimezone = DEFAULT_TIMEZONE
	}
	if _, err := time.LoadLocation(d.DefaultTimezone); err != nil {
		return err
	}
	if d.HistoryCacheTTLSec <= 0 {
		d.HistoryCacheTTLSec = 300
	}
	if d.StuckSendingMinutes <= 0 {
		d.StuckSendingMinutes = 60
	}
	if d.RecoveryIntervalSec <= 0 {
		d.RecoveryIntervalSec = 60
	}
	return nil
}

func (cnf *Configuration) setCostDefaults() {
	c := &cnf.Costs
	setDefaultFloat(&c.PostageFirstPage, 1.55)
	setDefaultFloat(&c.PostageAdditionalPage, 0.28)
	setDefaultFloat(&c.Envelope, 0.12)
	setDefaultFloat(&c.PrintingPerPage, 0.18)
	setDefaultFloat(&c.LaborPerMailing, 0.50)
	setDefaultFloat(&c.CarrierBase, 0.05)
	setDefaultFloat(&c.CarrierPerPage, 0.015)
}

func (cnf *Configuration) setPredictorDefaults() {
	p := &cnf.Predictor
	setDefaultFloat(&p.FallbackRate, 0.85)
	setDefaultFloat(&p.LongDocument, 0.95)
	setDefaultFloat(&p.VeryLongDocument, 0.90)
	setDefaultFloat(&p.OutsideHours, 0.92)
	setDefaultFloat(&p.Weekend, 0.85)
	setDefaultFloat(&p.UrgentPriority, 0.97)
	setDefaultFloat(&p.RecentFailures, 0.88)
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = 100
	}
	if p.HighConfidenceSends <= 0 {
		p.HighConfidenceSends = 10
	}
}

func setDefaultFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}

// BackoffTable returns the retry delays in order.
func (d DispatchConfig) BackoffTable() []time.Duration {
	table := make([]time.Duration, len(d.BackoffMinutes))
	for i, m := range d.BackoffMinutes {
		table[i] = time.Duration(m) * time.Minute
	}
	return table
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

// MockConfigWithDefaults stores cfg after filling defaults, for tests that
// need realistic dispatch settings without a file.
func MockConfigWithDefaults(cfg *Configuration) error {
	if err := cfg.validateAndAddDefaults(); err != nil {
		return err
	}
	ConfigStore.Store(cfg)
	return nil
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
