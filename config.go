// SPDX-License-Identifier: GPL-2.0-only

package vestd

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/thirdspace-vest/vestd/integrations/filetail"
	"github.com/thirdspace-vest/vestd/lifecycle"
	"github.com/thirdspace-vest/vestd/vest"
)

const (
	logLevelAll   = "all"
	logLevelDebug = "debug"
	logLevelInfo  = "info"
	logLevelWarn  = "warn"
	logLevelError = "error"
	logLevelNone  = "none"
)

var availableLogLevels = strings.Join([]string{
	logLevelAll, logLevelDebug, logLevelInfo, logLevelWarn, logLevelError, logLevelNone,
}, ", ")

// BindFlags registers the daemon's flags on fs and matches initConfig's
// flag.String calls in the teacher's config.go, adapted from k8s device
// plugin paths to the daemon's own host/port/metrics surface.
func BindFlags(fs *flag.FlagSet) {
	fs.String("config", "", "Path to the config file.")
	fs.String("host", lifecycle.DefaultHost, "Host/address the daemon listens on.")
	fs.Int("port", lifecycle.DefaultPort, "Port the daemon listens on.")
	fs.String("metrics-listen", "127.0.0.1:9090", "The address at which to listen for health and metrics.")
	fs.String("log-level", logLevelInfo, fmt.Sprintf("Log level to use. Possible values: %s", availableLogLevels))
	fs.Bool("real-usb", false, "Use the real libusb-backed driver instead of mock-only mode.")
}

// LoadConfig reads the optional config file and environment overlay into
// viper exactly as initConfig does, then resolves the bound flags into a
// Config. fs must already have been parsed (flag.Parse) before calling this.
func LoadConfig(fs *flag.FlagSet) (Config, error) {
	if err := viper.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("failed to bind config: %w", err)
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/vestd/")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced.
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; ignore error.
	}

	cfg := Config{
		Host:        viper.GetString("host"),
		Port:        viper.GetInt("port"),
		MetricsAddr: viper.GetString("metrics-listen"),
		LogLevel:    viper.GetString("log-level"),
		UseRealUSB:  viper.GetBool("real-usb"),
	}

	if errs := validation.IsValidPortNum(cfg.Port); len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid port %d: %s", cfg.Port, strings.Join(errs, ", "))
	}
	switch cfg.LogLevel {
	case logLevelAll, logLevelDebug, logLevelInfo, logLevelWarn, logLevelError, logLevelNone:
	default:
		return Config{}, fmt.Errorf("log level %v unknown; possible values are: %s", cfg.LogLevel, availableLogLevels)
	}

	return cfg, nil
}

// loadEffects decodes an "effects" list from viper into vest.Effect
// structs, reusing getConfiguredDevices's mapstructure-decode-from-viper
// pattern (TagName "json" there, "mapstructure" here since vest.Effect is
// already tagged for this). Falls back to vest.DefaultEffects() when the
// config carries no effects table.
func loadEffects() ([]vest.Effect, error) {
	raw := viper.Get("effects")
	if raw == nil {
		return vest.DefaultEffects(), nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("failed to decode effects: unexpected type: %T", raw)
	}

	effects := make([]vest.Effect, len(list))
	for i, def := range list {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:  &effects[i],
			TagName: "mapstructure",
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(def); err != nil {
			return nil, fmt.Errorf("failed to decode effect %q: %w", def, err)
		}
	}
	return effects, nil
}

// loadFiletailMappings decodes a "filetail_mappings" table from viper into
// filetail.HapticMapping entries with the same decode pattern as
// loadEffects, falling back to filetail.DefaultMappings() when absent.
func loadFiletailMappings() (map[string]filetail.HapticMapping, error) {
	raw := viper.GetStringMap("filetail_mappings")
	if len(raw) == 0 {
		return filetail.DefaultMappings(), nil
	}

	mappings := make(map[string]filetail.HapticMapping, len(raw))
	for eventType, def := range raw {
		var m filetail.HapticMapping
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:  &m,
			TagName: "mapstructure",
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(def); err != nil {
			return nil, fmt.Errorf("failed to decode filetail mapping %q: %w", eventType, err)
		}
		mappings[eventType] = m
	}
	return mappings, nil
}
