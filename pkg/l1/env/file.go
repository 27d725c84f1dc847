package env

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the env var providing the default -config value.
const ConfigFileEnv = "KATWALK_CONFIG"

var configFile = os.Getenv(ConfigFileEnv)

// SetupFlags registers the -config flag.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "YAML file with flag values, keyed by flag name.")
}

// ApplyFile loads a YAML mapping of flag names to values into fs.
// Flags already set on the command line keep their values.
func ApplyFile(fs *flag.FlagSet, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	for name, val := range values {
		if explicit[name] {
			continue
		}
		if fs.Lookup(name) == nil {
			return fmt.Errorf("%s: unknown option %q", path, name)
		}
		if err := fs.Set(name, fmt.Sprint(val)); err != nil {
			return fmt.Errorf("%s: option %q: %w", path, name, err)
		}
	}
	return nil
}

// ParseFlags parses the command line and applies the -config file.
func ParseFlags() error {
	flag.Parse()
	if configFile == "" {
		return nil
	}
	return ApplyFile(flag.CommandLine, configFile)
}
