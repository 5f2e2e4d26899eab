package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/YelzhanWeb/pickup/internal/domain"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Reminder    ReminderConfig    `yaml:"reminder"`
	Transitions TransitionsConfig `yaml:"transitions"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// PublishAttempts bounds retries inside the notification gateway.
	PublishAttempts int `yaml:"publish_attempts"`
}

type ScheduleConfig struct {
	OpeningTime     string `yaml:"opening_time"`
	ClosingTime     string `yaml:"closing_time"`
	PrepMinutes     int    `yaml:"prep_minutes"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	CapacityPerSlot int    `yaml:"capacity_per_slot"`
	Timezone        string `yaml:"timezone"`
}

type ReminderConfig struct {
	IntervalSeconds  int `yaml:"interval_seconds"`
	ThresholdMinutes int `yaml:"threshold_minutes"`
	Concurrency      int `yaml:"concurrency"`
}

type TransitionsConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	NotifyOn    []string `yaml:"notify_on"`
}

// Load reads a YAML config file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}
	if cfg.RabbitMQ.PublishAttempts == 0 {
		cfg.RabbitMQ.PublishAttempts = 3
	}

	// Schedule
	if cfg.Schedule.OpeningTime == "" {
		cfg.Schedule.OpeningTime = "06:00"
	}
	if cfg.Schedule.ClosingTime == "" {
		cfg.Schedule.ClosingTime = "23:00"
	}
	if cfg.Schedule.PrepMinutes == 0 {
		cfg.Schedule.PrepMinutes = 30
	}
	if cfg.Schedule.IntervalMinutes == 0 {
		cfg.Schedule.IntervalMinutes = 15
	}

	// Reminder
	if cfg.Reminder.IntervalSeconds == 0 {
		cfg.Reminder.IntervalSeconds = 60
	}
	if cfg.Reminder.ThresholdMinutes == 0 {
		cfg.Reminder.ThresholdMinutes = 10
	}
	if cfg.Reminder.Concurrency == 0 {
		cfg.Reminder.Concurrency = 4
	}

	// Transitions
	if cfg.Transitions.MaxAttempts == 0 {
		cfg.Transitions.MaxAttempts = 3
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.PublishAttempts < 1 {
		problems = append(problems, "rabbitmq.publish_attempts must be at least 1")
	}

	if _, err := c.Schedule.Domain(); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Reminder.IntervalSeconds < 1 {
		problems = append(problems, "reminder.interval_seconds must be at least 1")
	}
	if c.Reminder.ThresholdMinutes < 1 {
		problems = append(problems, "reminder.threshold_minutes must be at least 1")
	}
	if c.Reminder.Concurrency < 1 {
		problems = append(problems, "reminder.concurrency must be at least 1")
	}

	if c.Transitions.MaxAttempts < 1 {
		problems = append(problems, "transitions.max_attempts must be at least 1")
	}
	if _, err := c.Transitions.NotifyStatuses(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Domain converts the YAML schedule section into the scheduler's input.
func (s ScheduleConfig) Domain() (domain.ScheduleConfig, error) {
	opening, err := domain.ParseTimeOfDay(s.OpeningTime)
	if err != nil {
		return domain.ScheduleConfig{}, err
	}
	closing, err := domain.ParseTimeOfDay(s.ClosingTime)
	if err != nil {
		return domain.ScheduleConfig{}, err
	}

	var loc *time.Location
	if s.Timezone != "" {
		loc, err = time.LoadLocation(s.Timezone)
		if err != nil {
			return domain.ScheduleConfig{}, fmt.Errorf("schedule.timezone: %w", err)
		}
	}

	cfg := domain.ScheduleConfig{
		OpeningTime:     opening,
		ClosingTime:     closing,
		PrepMinutes:     s.PrepMinutes,
		IntervalMinutes: s.IntervalMinutes,
		CapacityPerSlot: s.CapacityPerSlot,
		Location:        loc,
	}
	if err := cfg.Validate(); err != nil {
		return domain.ScheduleConfig{}, err
	}
	return cfg, nil
}

func (r ReminderConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

func (r ReminderConfig) Threshold() time.Duration {
	return time.Duration(r.ThresholdMinutes) * time.Minute
}

// NotifyStatuses parses transitions.notify_on. Only confirmed and preparing are meaningful.
func (t TransitionsConfig) NotifyStatuses() ([]domain.Status, error) {
	statuses := make([]domain.Status, 0, len(t.NotifyOn))
	for _, raw := range t.NotifyOn {
		s, err := domain.ParseStatus(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("transitions.notify_on: %q: %w", raw, err)
		}
		if s != domain.StatusConfirmed && s != domain.StatusPreparing {
			return nil, fmt.Errorf("transitions.notify_on: %q is not configurable", raw)
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}
