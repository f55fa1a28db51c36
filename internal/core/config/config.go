package config

import (
	"time"

	"github.com/vietddude/triage/internal/infra/call"
	redisclient "github.com/vietddude/triage/internal/infra/redis"
	"github.com/vietddude/triage/internal/infra/storage/postgres"
	"github.com/vietddude/triage/internal/infra/ticket"
	"github.com/vietddude/triage/internal/workflow/steps"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig        `yaml:"server"`
	Logging  LoggingConfig       `yaml:"logging"`
	Database postgres.Config     `yaml:"database"`
	Redis    redisclient.Config  `yaml:"redis"`
	Model    ModelConfig         `yaml:"model"`
	Ticket   TicketConfig        `yaml:"ticket"`
	Notify   NotifyConfig        `yaml:"notify"`
	Workflow WorkflowConfig      `yaml:"workflow"`
	Monitor  steps.MonitorConfig `yaml:"monitor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ModelConfig holds the classification service settings.
type ModelConfig struct {
	APIKey  string           `yaml:"api_key"`
	BaseURL string           `yaml:"base_url"`
	Model   string           `yaml:"model"`
	Retry   call.RetryConfig `yaml:"retry"`
}

// TicketConfig holds the ticket service settings.
type TicketConfig struct {
	ticket.Config `yaml:",inline"`
	Retry         call.RetryConfig `yaml:"retry"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	Channel      string           `yaml:"channel"` // slack, webhook
	SlackToken   string           `yaml:"slack_token"`
	SlackChannel string           `yaml:"slack_channel"`
	WebhookURL   string           `yaml:"webhook_url"`
	Retry        call.RetryConfig `yaml:"retry"`
}

// WorkflowConfig holds engine tuning settings.
type WorkflowConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	ScoreThreshold int           `yaml:"score_threshold"`
	Retention      time.Duration `yaml:"retention"` // 0 = keep terminal records forever
	PruneSchedule  string        `yaml:"prune_schedule"`
}
