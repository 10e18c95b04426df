// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/tphakala/freshness-go/internal/labels"
)

// Supported output.type values.
const (
	OutputCSV    = "csv"
	OutputXLSX   = "xlsx"
	OutputSQLite = "sqlite"
	OutputMySQL  = "mysql"
)

var validLogLevels = []string{"trace", "debug", "info", "warn", "error"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateDetectorSettings,
		validateLedgerSettings,
		validateOutputSettings,
		validateWebServerSettings,
		validateMQTTSettings,
		validateLoggingSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDetectorSettings(settings *Settings) error {
	d := &settings.Detector
	if d.Threshold < 0 || d.Threshold > 1 {
		return fmt.Errorf("detector threshold must be between 0 and 1, got %v", d.Threshold)
	}
	if err := labels.NewTable(d.Labels, d.Threshold).Validate(); err != nil {
		return fmt.Errorf("detector labels: %w", err)
	}
	return nil
}

func validateLedgerSettings(settings *Settings) error {
	for product, days := range settings.Ledger.Lifespans {
		if days < 0 {
			return fmt.Errorf("ledger lifespan for %q must not be negative, got %d", product, days)
		}
	}
	if _, err := settings.Location(); err != nil {
		return fmt.Errorf("invalid ledger timezone %q: %w", settings.Ledger.Timezone, err)
	}
	return nil
}

func validateOutputSettings(settings *Settings) error {
	o := &settings.Output
	switch strings.ToLower(o.Type) {
	case OutputCSV:
		if o.CSV.Path == "" {
			return fmt.Errorf("output csv path is required")
		}
	case OutputXLSX:
		if o.XLSX.Path == "" {
			return fmt.Errorf("output xlsx path is required")
		}
	case OutputSQLite:
		if o.SQLite.Path == "" {
			return fmt.Errorf("output sqlite path is required")
		}
	case OutputMySQL:
		var missing []string
		if o.MySQL.Host == "" {
			missing = append(missing, "host")
		}
		if o.MySQL.Port == "" {
			missing = append(missing, "port")
		}
		if o.MySQL.Database == "" {
			missing = append(missing, "database")
		}
		if o.MySQL.Username == "" {
			missing = append(missing, "username")
		}
		if len(missing) > 0 {
			return fmt.Errorf("output mysql settings missing: %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unsupported output type %q, expected csv, xlsx, sqlite or mysql", o.Type)
	}
	return nil
}

func validateWebServerSettings(settings *Settings) error {
	w := &settings.WebServer
	if !w.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(w.Listen); err != nil {
		return fmt.Errorf("invalid webserver listen address %q: %w", w.Listen, err)
	}
	if w.ShutdownTimeout < 0 {
		return fmt.Errorf("webserver shutdown timeout must not be negative")
	}
	return nil
}

func validateMQTTSettings(settings *Settings) error {
	m := &settings.MQTT
	if !m.Enabled {
		return nil
	}

	u, err := url.Parse(m.Broker)
	if err != nil {
		return fmt.Errorf("invalid MQTT broker URL %q: %w", m.Broker, err)
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("unsupported MQTT broker scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("MQTT broker URL %q has no host", m.Broker)
	}

	if m.Topic == "" {
		return fmt.Errorf("MQTT topic is required when MQTT is enabled")
	}
	if strings.ContainsAny(m.Topic, "+#") {
		return fmt.Errorf("MQTT topic %q must not contain wildcards", m.Topic)
	}
	if m.QoS > 2 {
		return fmt.Errorf("MQTT QoS must be 0, 1 or 2, got %d", m.QoS)
	}
	return nil
}

func validateLoggingSettings(settings *Settings) error {
	l := &settings.Logging
	check := func(name, level string) error {
		if level == "" || slices.Contains(validLogLevels, strings.ToLower(level)) {
			return nil
		}
		return fmt.Errorf("invalid log level %q for %s", level, name)
	}

	if err := check("logging.default_level", l.DefaultLevel); err != nil {
		return err
	}
	if l.Console != nil {
		if err := check("logging.console.level", l.Console.Level); err != nil {
			return err
		}
	}
	if l.FileOutput != nil {
		if err := check("logging.file_output.level", l.FileOutput.Level); err != nil {
			return err
		}
	}
	for module, level := range l.ModuleLevels {
		if err := check("logging.module_levels."+module, level); err != nil {
			return err
		}
	}
	return nil
}
