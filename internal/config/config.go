package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete worker configuration. Validation failures
// are fatal at startup; there is no partial startup.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Queue     QueueConfig     `yaml:"queue"`
	Worker    WorkerConfig    `yaml:"worker"`
	Storage   StorageConfig   `yaml:"storage"`
	Inference InferenceConfig `yaml:"inference"`
	Callback  CallbackConfig  `yaml:"callback"`
	Health    HealthConfig    `yaml:"health"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// QueueConfig holds queue polling configuration
type QueueConfig struct {
	URL         string        `yaml:"url"`
	MaxMessages int32         `yaml:"max_messages"`
	WaitTime    time.Duration `yaml:"wait_time"`
}

// WorkerConfig holds worker lifecycle configuration. JobTimeout doubles as
// the queue visibility timeout so an in-flight message cannot be
// redelivered while it is being processed.
type WorkerConfig struct {
	JobTimeout    time.Duration `yaml:"job_timeout"`
	GracePeriod   time.Duration `yaml:"grace_period"`
	MaxEmptyPolls int           `yaml:"max_empty_polls"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Bucket string `yaml:"bucket"`
}

// InferenceConfig holds engine and model selection
type InferenceConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ModelName   string `yaml:"model_name"`
	Device      string `yaml:"device"`
	Language    string `yaml:"language"`
	MinSpeakers int    `yaml:"min_speakers"`
	MaxSpeakers int    `yaml:"max_speakers"`
}

// CallbackConfig names the coordinator function invoked for callbacks
type CallbackConfig struct {
	FunctionName string `yaml:"function_name"`
}

// HealthConfig holds the health endpoint configuration
type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Queue.MaxMessages == 0 {
		c.Queue.MaxMessages = 10
	}
	if c.Queue.WaitTime == 0 {
		c.Queue.WaitTime = time.Second
	}
	if c.Worker.JobTimeout == 0 {
		c.Worker.JobTimeout = time.Hour
	}
	if c.Worker.GracePeriod == 0 {
		c.Worker.GracePeriod = 5 * time.Second
	}
	if c.Worker.MaxEmptyPolls == 0 {
		c.Worker.MaxEmptyPolls = 3
	}
	if c.Inference.ModelName == "" {
		c.Inference.ModelName = "large-v2"
	}
	if c.Inference.Device == "" {
		c.Inference.Device = "cpu"
	}
	if c.Inference.Language == "" {
		c.Inference.Language = "en"
	}
	if c.Inference.MinSpeakers == 0 {
		c.Inference.MinSpeakers = 1
	}
	if c.Health.Port == 0 {
		c.Health.Port = 8081
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Queue.URL == "" {
		return fmt.Errorf("queue url is required")
	}

	if c.Queue.MaxMessages < 1 || c.Queue.MaxMessages > 10 {
		return fmt.Errorf("queue max_messages must be between 1 and 10, got %d", c.Queue.MaxMessages)
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}

	if c.Inference.Endpoint == "" {
		return fmt.Errorf("inference endpoint is required")
	}

	if c.Inference.Device != "cpu" && c.Inference.Device != "cuda" {
		return fmt.Errorf("inference device must be cpu or cuda, got %q", c.Inference.Device)
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.GracePeriod <= 0 {
		return fmt.Errorf("worker grace_period must be greater than 0")
	}

	if c.Worker.MaxEmptyPolls <= 0 {
		return fmt.Errorf("worker max_empty_polls must be greater than 0")
	}

	if c.Inference.MaxSpeakers != 0 && c.Inference.MaxSpeakers < c.Inference.MinSpeakers {
		return fmt.Errorf("inference max_speakers (%d) must not be less than min_speakers (%d)",
			c.Inference.MaxSpeakers, c.Inference.MinSpeakers)
	}

	if c.Health.Enabled && (c.Health.Port < MinPort || c.Health.Port > MaxPort) {
		return fmt.Errorf("invalid health port: %d (must be between %d and %d)", c.Health.Port, MinPort, MaxPort)
	}

	return nil
}
