// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.yaml"
	// defaultLogFile is used when the config omits logFile.
	defaultLogFile = "cardia.log"
	// defaultHost is the interface the inference service binds to.
	defaultHost = "127.0.0.1"
	// defaultPort is the inference service port.
	defaultPort = 8000
	// defaultModelPath is the artifact served by the inference service.
	defaultModelPath = "models/pipeline_logreg.model"
	// defaultModelsDir is the directory scanned by the comparison reporter.
	defaultModelsDir = "models"
	// defaultExtension is the artifact file extension.
	defaultExtension = ".model"
	// defaultTestFeatures is the held-out feature matrix.
	defaultTestFeatures = "data/X_test.csv"
	// defaultTestLabels is the held-out label vector.
	defaultTestLabels = "data/y_test.csv"
	// defaultReadTimeout bounds reading a request.
	defaultReadTimeout = 10 * time.Second
	// defaultWriteTimeout bounds writing a response.
	defaultWriteTimeout = 30 * time.Second
	// defaultShutdownTimeout bounds graceful shutdown.
	defaultShutdownTimeout = 5 * time.Second
	// defaultClientURL is where the predict command sends requests.
	defaultClientURL = "http://localhost:8000"
	// defaultClientTimeout bounds a single prediction call.
	defaultClientTimeout = 10 * time.Second
)

// Config represents the top-level application configuration.
type Config struct {
	LogFile    string         `mapstructure:"logFile" json:"logFile,omitempty"`
	Debug      bool           `mapstructure:"debug" json:"debug"`
	Server     ServerConfig   `mapstructure:"server" json:"server"`
	Reporter   ReporterConfig `mapstructure:"reporter" json:"reporter"`
	Client     ClientConfig   `mapstructure:"client" json:"client"`
	ConfigPath string         `mapstructure:"-" json:"-"`
}

// ServerConfig configures the inference service.
type ServerConfig struct {
	Host                   string `mapstructure:"host" json:"host"`
	Port                   int    `mapstructure:"port" json:"port"`
	ModelPath              string `mapstructure:"modelPath" json:"modelPath"`
	ReadTimeoutSeconds     int    `mapstructure:"readTimeout" json:"readTimeout,omitempty"`
	WriteTimeoutSeconds    int    `mapstructure:"writeTimeout" json:"writeTimeout,omitempty"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdownTimeout" json:"shutdownTimeout,omitempty"`
}

// ReporterConfig configures the model comparison reporter.
type ReporterConfig struct {
	ModelsDir    string `mapstructure:"modelsDir" json:"modelsDir"`
	Extension    string `mapstructure:"extension" json:"extension"`
	TestFeatures string `mapstructure:"testFeatures" json:"testFeatures"`
	TestLabels   string `mapstructure:"testLabels" json:"testLabels"`
	Workers      int    `mapstructure:"workers" json:"workers,omitempty"`
}

// ClientConfig configures calls to a running inference service.
type ClientConfig struct {
	URL            string `mapstructure:"url" json:"url"`
	TimeoutSeconds int    `mapstructure:"timeout" json:"timeout,omitempty"`
}

// SetDefaults registers every default on v so that flags, file values and
// defaults merge in the usual viper order.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logFile", defaultLogFile)
	v.SetDefault("debug", false)
	v.SetDefault("server.host", defaultHost)
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.modelPath", defaultModelPath)
	v.SetDefault("server.readTimeout", int(defaultReadTimeout.Seconds()))
	v.SetDefault("server.writeTimeout", int(defaultWriteTimeout.Seconds()))
	v.SetDefault("server.shutdownTimeout", int(defaultShutdownTimeout.Seconds()))
	v.SetDefault("reporter.modelsDir", defaultModelsDir)
	v.SetDefault("reporter.extension", defaultExtension)
	v.SetDefault("reporter.testFeatures", defaultTestFeatures)
	v.SetDefault("reporter.testLabels", defaultTestLabels)
	v.SetDefault("reporter.workers", 0)
	v.SetDefault("client.url", defaultClientURL)
	v.SetDefault("client.timeout", int(defaultClientTimeout.Seconds()))
}

// Default returns the configuration produced by defaults alone.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range (1..65535)", c.Server.Port))
	}
	if strings.TrimSpace(c.Server.ModelPath) == "" {
		errs = append(errs, errors.New("server.modelPath is required"))
	}
	if c.Reporter.Workers < 0 {
		errs = append(errs, fmt.Errorf("reporter.workers must not be negative, got %d", c.Reporter.Workers))
	}
	if ext := c.Reporter.Extension; ext != "" && !strings.HasPrefix(ext, ".") {
		errs = append(errs, fmt.Errorf("reporter.extension %q must start with a dot", ext))
	}
	return errors.Join(errs...)
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return defaultLogFile
}

// Addr returns the listen address of the inference service.
func (c ServerConfig) Addr() string {
	host := c.Host
	if strings.TrimSpace(host) == "" {
		host = defaultHost
	}
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// ReadTimeout returns the request read timeout, falling back to the default if not specified.
func (c ServerConfig) ReadTimeout() time.Duration {
	return seconds(c.ReadTimeoutSeconds, defaultReadTimeout)
}

// WriteTimeout returns the response write timeout.
func (c ServerConfig) WriteTimeout() time.Duration {
	return seconds(c.WriteTimeoutSeconds, defaultWriteTimeout)
}

// ShutdownTimeout returns how long graceful shutdown may take.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return seconds(c.ShutdownTimeoutSeconds, defaultShutdownTimeout)
}

// ArtifactExt returns the artifact extension, defaulting to .model.
func (c ReporterConfig) ArtifactExt() string {
	if strings.TrimSpace(c.Extension) == "" {
		return defaultExtension
	}
	return c.Extension
}

// WorkerCount returns the number of artifacts evaluated in parallel.
func (c ReporterConfig) WorkerCount() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// Timeout returns the per-call timeout for the prediction client.
func (c ClientConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds, defaultClientTimeout)
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// Load reads the application configuration from path (YAML, JSON or TOML,
// chosen by extension) on top of the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("no configuration file found at %q", path)
		}
		return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %q: %w", path, err)
	}
	cfg.ConfigPath = path
	return cfg, nil
}
