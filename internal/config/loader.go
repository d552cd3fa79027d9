package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file read from the working directory.
const FileName = "config.yaml"

// requiredKeys are checked in this order; the first missing one is reported.
var requiredKeys = []string{
	"target_username",
	"target_host",
	"target_location",
	"target_command",
}

// optionalKeys may be omitted but, like the required keys, must be lowercase.
var optionalKeys = []string{"pre_command", "env_file", "split", "timeout"}

// Load reads config from the specified path.
// Only the first YAML document is considered. Keys are case-sensitive even
// though viper folds case: "TARGET_HOST" does not supply target_host.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if stderrors.As(err, &parseErr) {
			return nil, errors.WrapWithCode(err, errors.ErrConfigParse,
				fmt.Sprintf("%s isn't valid YAML", path),
				"Check the YAML syntax; the file must contain a single mapping.")
		}
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfigIO,
				fmt.Sprintf("Config file not found: %s", path),
				"Run 'rdeploy init' to create one in this directory.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfigIO,
			fmt.Sprintf("Couldn't read %s", path),
			"Check the file exists and is readable.")
	}

	keys, err := documentKeys(path)
	if err != nil {
		return nil, err
	}
	if err := checkKeyCase(keys, path); err != nil {
		return nil, err
	}

	cfg, err := parseConfig(v, path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg, path); err != nil {
		return nil, err
	}

	return cfg, nil
}

// documentKeys returns the top-level keys of the first YAML document as
// written, before viper lowercases them.
func documentKeys(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfigIO,
			fmt.Sprintf("Couldn't read %s", path),
			"Check the file exists and is readable.")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfigParse,
			fmt.Sprintf("%s isn't valid YAML", path),
			"Check the YAML syntax; the file must contain a single mapping.")
	}

	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}
	mapping := doc.Content[0].Content
	keys := make([]string, 0, len(mapping)/2)
	for i := 0; i+1 < len(mapping); i += 2 {
		keys = append(keys, mapping[i].Value)
	}
	return keys, nil
}

// checkKeyCase rejects known keys written in the wrong case. A required key
// is then reported missing; an optional one is a parse error.
func checkKeyCase(keys []string, path string) error {
	exact := make(map[string]bool, len(keys))
	for _, k := range keys {
		exact[k] = true
	}

	for _, written := range keys {
		want := strings.ToLower(written)
		if written == want || exact[want] {
			continue
		}
		hint := fmt.Sprintf("Keys are case-sensitive: rename '%s' to '%s'.", written, want)
		for _, key := range requiredKeys {
			if key == want {
				return errors.WrapWithCode(&errors.MissingFieldError{Field: key}, errors.ErrConfigMissing,
					fmt.Sprintf("'%s' is missing from %s", key, path), hint)
			}
		}
		for _, key := range optionalKeys {
			if key == want {
				return errors.New(errors.ErrConfigParse,
					fmt.Sprintf("Unknown key '%s' in %s", written, path), hint)
			}
		}
	}
	return nil
}

// parseConfig pulls typed values out of the raw document. Values are read
// raw so that a non-string required key is reported instead of coerced.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := &Config{}

	preCommands, err := stringList(v.Get("pre_command"), path)
	if err != nil {
		return nil, err
	}
	cfg.PreCommands = preCommands

	values := make(map[string]string, len(requiredKeys))
	for _, key := range requiredKeys {
		s, ok := v.Get(key).(string)
		if !ok {
			return nil, errors.NewMissingField(key, path)
		}
		values[key] = s
	}
	cfg.TargetUsername = values["target_username"]
	cfg.TargetHost = values["target_host"]
	cfg.TargetLocation = values["target_location"]
	cfg.TargetCommand = values["target_command"]

	cfg.EnvFile = v.GetString("env_file")
	cfg.Split = v.GetString("split")

	if raw := v.GetString("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfigParse,
				fmt.Sprintf("'%s' doesn't look like a valid timeout", raw),
				"Try something like 30s, 10m, or 1h.")
		}
		cfg.Timeout = d
	}

	return cfg, nil
}

// stringList converts the raw pre_command value into a list of strings.
// A missing or null key yields an empty list.
func stringList(raw interface{}, path string) ([]string, error) {
	if raw == nil {
		return []string{}, nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New(errors.ErrConfigParse,
			fmt.Sprintf("'pre_command' in %s must be a list", path),
			"Write each command as a list item, e.g.\n  pre_command:\n    - make build")
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, errors.New(errors.ErrConfigParse,
				fmt.Sprintf("'pre_command' entry %d in %s isn't a string", i+1, path),
				"Quote the command so YAML reads it as text.")
		}
		out = append(out, s)
	}
	return out, nil
}
