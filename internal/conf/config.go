// config.go: settings struct for freshness-go and the functions that load and save it.
package conf

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix prefixes every environment variable override, e.g. FRESHNESS_DETECTOR_THRESHOLD.
const EnvPrefix = "FRESHNESS"

// DetectorSettings describes the detector output the label decoder understands.
type DetectorSettings struct {
	Threshold float64  `yaml:"threshold"` // confidence gate, detections below are discarded
	Labels    []string `yaml:"labels"`    // ordered "<product>_<freshness>" label table
}

// LedgerSettings contains settings for the freshness ledger.
type LedgerSettings struct {
	Lifespans map[string]int `yaml:"lifespans"` // product to expected shelf life in days
	Timezone  string         `yaml:"timezone"`  // "Local", "UTC" or an IANA zone name
}

// CSVSettings configures the CSV file store.
type CSVSettings struct {
	Path string `yaml:"path"`
}

// XLSXSettings configures the Excel workbook store.
type XLSXSettings struct {
	Path string `yaml:"path"`
}

// SQLiteSettings configures the SQLite store.
type SQLiteSettings struct {
	Path string `yaml:"path"`
}

// MySQLSettings configures the MySQL store.
type MySQLSettings struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// OutputSettings selects and configures the durable store.
type OutputSettings struct {
	Type   string         `yaml:"type"` // csv, xlsx, sqlite or mysql
	CSV    CSVSettings    `yaml:"csv"`
	XLSX   XLSXSettings   `yaml:"xlsx"`
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// WebServerSettings contains settings for the HTTP adapter.
type WebServerSettings struct {
	Enabled         bool          `yaml:"enabled"`
	Listen          string        `yaml:"listen"`          // host:port
	BodyLimit       string        `yaml:"bodylimit"`       // echo body limit, e.g. "4M"
	ShutdownTimeout time.Duration `yaml:"shutdowntimeout"` // grace period for in-flight requests
}

// MQTTSettings contains settings for publishing batch results.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // e.g. tcp://localhost:1883
	Topic    string `yaml:"topic"`  // topic batch results are published on
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"clientid"` // generated when empty
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// Settings contains all configuration options for freshness-go.
type Settings struct {
	Debug bool `yaml:"debug"`

	Detector  DetectorSettings     `yaml:"detector"`
	Ledger    LedgerSettings       `yaml:"ledger"`
	Output    OutputSettings       `yaml:"output"`
	WebServer WebServerSettings    `yaml:"webserver"`
	MQTT      MQTTSettings         `yaml:"mqtt"`
	Logging   logger.LoggingConfig `yaml:"logging"`
}

// Location resolves Ledger.Timezone.
func (s *Settings) Location() (*time.Location, error) {
	return parseTimezone(s.Ledger.Timezone)
}

func parseTimezone(name string) (*time.Location, error) {
	switch name {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// Load reads the configuration into a new Settings. When configFile is
// empty the default config paths are searched and a default config file is
// created if none exists. Environment variables prefixed with EnvPrefix
// override file values.
func Load(configFile string) (*Settings, error) {
	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()
	bindEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(fmt.Errorf("error reading config file: %w", err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("path", configFile).
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to dir and reads it back.
func createDefaultConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config file: %w", err)
	}
	return data, nil
}

// WriteYAML marshals settings to w.
func WriteYAML(w io.Writer, settings *Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return enc.Close()
}

// SaveYAMLConfig writes settings to configPath, replacing the file atomically.
// Comments and ordering of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
