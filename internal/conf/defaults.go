// conf/defaults.go default values for settings
package conf

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("detector.threshold", 0.5)
	viper.SetDefault("detector.labels", []string{
		"apple_fresh", "apple_stale",
		"onion_fresh", "onion_stale",
		"carrot_fresh", "carrot_stale",
		"tomato_fresh", "tomato_stale",
	})

	viper.SetDefault("ledger.lifespans", map[string]int{
		"apple":  7,
		"onion":  10,
		"carrot": 5,
		"tomato": 3,
	})
	viper.SetDefault("ledger.timezone", "Local")

	viper.SetDefault("output.type", "csv")
	viper.SetDefault("output.csv.path", "detection_fresh_count.csv")
	viper.SetDefault("output.xlsx.path", "detection_fresh_count.xlsx")
	viper.SetDefault("output.sqlite.path", "freshness.db")
	viper.SetDefault("output.mysql.username", "")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "freshness")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", "0.0.0.0:8080")
	viper.SetDefault("webserver.bodylimit", "4M")
	viper.SetDefault("webserver.shutdowntimeout", 10*time.Second)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "freshness/detections")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.clientid", "")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/freshness.log")
	viper.SetDefault("logging.file_output.level", "info")
}

// bindEnv lets FRESHNESS_<SECTION>_<KEY> override any key with a default.
func bindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
