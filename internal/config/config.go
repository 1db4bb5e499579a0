// =============================================================================
// FBDI Workflow - Configuration Module
// =============================================================================
//
// This module loads the client configuration. Values come from three layers,
// later layers winning:
//
//   1. Built-in defaults (setDefaults)
//   2. The YAML config file (config.yaml, or --config)
//   3. Environment variables prefixed with FBDI_, optionally from a .env file
//
// ENVIRONMENT NAMES:
//   Nested keys join with an underscore, so backend.base_url is read from
//   FBDI_BACKEND_BASE_URL and features.auto_process from
//   FBDI_FEATURES_AUTO_PROCESS.
//
// VARIANTS:
//   The feature flags select which workflow variant the client exposes:
//   the reconciliation source, automatic processing on arrival, the
//   stepwise Oracle operations and the stored-mapping commands.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "FBDI"

// Reconciliation sources.
const (
	ReconPredefined = "predefined"
	ReconUpload     = "upload"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the client configuration.
type Config struct {
	Backend  BackendConfig `mapstructure:"backend" yaml:"backend"`
	Process  ProcessConfig `mapstructure:"process" yaml:"process"`
	Recon    ReconConfig   `mapstructure:"recon" yaml:"recon"`
	Features Features      `mapstructure:"features" yaml:"features"`
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`

	// OutputDir receives downloaded archives, reports and run summaries.
	// Default: "./output"
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// LogFile is the rotated JSON log. Empty disables file logging.
	// Default: "./logs/fbdi.log"
	LogFile string `mapstructure:"log_file" yaml:"log_file"`

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// BackendConfig locates the FBDI backend.
type BackendConfig struct {
	// BaseURL is the absolute backend address.
	// Default: "http://localhost:5000"
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// RequestTimeout bounds each request. Zero means no client-side timeout;
	// Oracle jobs can run for minutes.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// ProcessConfig holds the processing defaults.
type ProcessConfig struct {
	BusinessUnit string `mapstructure:"business_unit" yaml:"business_unit"`
	BatchSource  string `mapstructure:"batch_source" yaml:"batch_source"`

	// ProgressMarks are the delays after submission at which the simulated
	// progress marks step 1, step 2, ... as completed.
	ProgressMarks []time.Duration `mapstructure:"progress_marks" yaml:"progress_marks"`

	// DocumentAccount and ESSParameters feed the stepwise operations.
	DocumentAccount string `mapstructure:"document_account" yaml:"document_account"`
	ESSParameters   string `mapstructure:"ess_parameters" yaml:"ess_parameters"`
}

// ReconConfig selects the reconciliation variant.
type ReconConfig struct {
	// Source is "predefined" (backend raw data, JSON request) or "upload"
	// (user workbook, multipart request).
	Source string `mapstructure:"source" yaml:"source"`

	// RequestID is used when no AutoInvoice job id is known.
	RequestID string `mapstructure:"request_id" yaml:"request_id"`

	// RawFile is the default workbook for the upload variant.
	RawFile string `mapstructure:"raw_file" yaml:"raw_file"`
}

// Features toggles optional parts of the workflow.
type Features struct {
	AutoProcess        bool `mapstructure:"auto_process" yaml:"auto_process"`
	StepwiseOperations bool `mapstructure:"stepwise_operations" yaml:"stepwise_operations"`
	MappingStore       bool `mapstructure:"mapping_store" yaml:"mapping_store"`
}

// ServerConfig configures the local console server.
type ServerConfig struct {
	Address    string        `mapstructure:"address" yaml:"address"`
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
}

// BusinessParams returns the configured processing parameters with the
// GL date set to the day of now.
func (c *Config) BusinessParams(now time.Time) types.BusinessParams {
	return types.BusinessParams{
		BusinessUnit: c.Process.BusinessUnit,
		BatchSource:  c.Process.BatchSource,
		GLDate:       types.Today(now),
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration. An empty path skips the config file and
// uses defaults and environment only. envFiles are loaded with godotenv
// before the environment is read; missing files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("backend.request_timeout", "0s")

	v.SetDefault("process.business_unit", "300000003170678")
	v.SetDefault("process.batch_source", "MILGARD EBS SPREADSHEET")
	v.SetDefault("process.progress_marks", []string{"2s", "4s"})
	v.SetDefault("process.document_account", "fin$/recievables$/import$")
	v.SetDefault("process.ess_parameters", "2,511142,N,N,N")

	v.SetDefault("recon.source", ReconPredefined)
	v.SetDefault("recon.request_id", "468083")
	v.SetDefault("recon.raw_file", "")

	v.SetDefault("features.auto_process", true)
	v.SetDefault("features.stepwise_operations", false)
	v.SetDefault("features.mapping_store", false)

	v.SetDefault("server.address", "127.0.0.1:8080")
	v.SetDefault("server.session_ttl", "2h")

	v.SetDefault("output_dir", "./output")
	v.SetDefault("log_file", "./logs/fbdi.log")
	v.SetDefault("log_level", "info")
}

// applyDefaults fills values a config file blanked out explicitly.
func applyDefaults(config *Config) {
	if config.Backend.BaseURL == "" {
		config.Backend.BaseURL = "http://localhost:5000"
	}
	config.Backend.BaseURL = strings.TrimRight(config.Backend.BaseURL, "/")
	if config.Recon.Source == "" {
		config.Recon.Source = ReconPredefined
	}
	config.Recon.Source = strings.ToLower(strings.TrimSpace(config.Recon.Source))
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.Server.SessionTTL == 0 {
		config.Server.SessionTTL = 2 * time.Hour
	}
}

func validate(config *Config) error {
	u, err := url.Parse(config.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url %q must be an absolute url", config.Backend.BaseURL)
	}
	if config.Backend.RequestTimeout < 0 {
		return errors.New("backend.request_timeout must not be negative")
	}

	switch config.Recon.Source {
	case ReconPredefined, ReconUpload:
	default:
		return fmt.Errorf("recon.source must be %q or %q, got %q", ReconPredefined, ReconUpload, config.Recon.Source)
	}

	for i, m := range config.Process.ProgressMarks {
		if m < 0 {
			return fmt.Errorf("process.progress_marks[%d] must not be negative", i)
		}
	}

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", config.LogLevel)
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", config.OutputDir, err)
	}
	return nil
}
