package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/pkg/bytesize"
	"github.com/jmylchreest/mixarr/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing mixarr configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration in YAML format.

Without a --config flag this shows all available options with their
default values; redirect the output to a file to create a configuration
template:

  mixarr config show > config.yaml

Configuration can be set via:
  - Config file (config.yaml, .mixarr.yaml, /etc/mixarr/config.yaml)
  - Environment variables (MIXARR_DATABASE_DSN, MIXARR_CACHE_MAX_BYTES, etc.)
  - Command-line flags (for some options)

Environment variables use the MIXARR_ prefix and underscores for nesting.
Example: cache.max_bytes -> MIXARR_CACHE_MAX_BYTES`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration (honoring --config, environment variables, and
defaults) and report whether it is valid.`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

// toMap converts a struct to a map, formatting durations and sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Tag.Get("yaml")
		}
		if key == "" {
			key = strings.ToLower(fieldType.Name)
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(v)
		case config.ByteSize:
			result[key] = bytesize.Format(bytesize.Size(v.Bytes()))
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# mixarr Configuration File")
	fmt.Println("# ==========================")
	fmt.Println("#")
	fmt.Println("# Duration format: 30s, 5m, 1h, 30d")
	fmt.Println("# Size format: 5MB, 1GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   MIXARR_DATABASE_DRIVER, MIXARR_DATABASE_DSN")
	fmt.Println("#   MIXARR_STORAGE_BASE_DIR, MIXARR_CACHE_MAX_BYTES")
	fmt.Println("#   MIXARR_LOGGING_LEVEL, MIXARR_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Load runs Validate; reaching here means the configuration is usable.
	if _, err := loadConfig(); err != nil {
		return err
	}

	if cfgFile != "" {
		fmt.Printf("Configuration %s is valid\n", cfgFile)
	} else {
		fmt.Println("Configuration is valid")
	}
	return nil
}
