package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/rileyhilliard/rdeploy/internal/config"
	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/util"
)

// ConfigFileCheck verifies that the config file exists.
type ConfigFileCheck struct {
	Path string
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return "CONFIG" }

func (c *ConfigFileCheck) Run(context.Context) CheckResult {
	info, err := os.Stat(c.Path)
	if os.IsNotExist(err) {
		return fail(fmt.Sprintf("No %s in this directory", c.Path),
			"Run 'rdeploy init' to create one")
	}
	if err != nil {
		return fail(fmt.Sprintf("Can't read %s: %v", c.Path, err),
			"Check file permissions")
	}
	if info.IsDir() {
		return fail(fmt.Sprintf("%s is a directory", c.Path), "")
	}
	return pass(fmt.Sprintf("Config file: %s", c.Path))
}

// ConfigSchemaCheck verifies that the config file loads and validates.
type ConfigSchemaCheck struct {
	Path string
}

func (c *ConfigSchemaCheck) Name() string     { return "config_schema" }
func (c *ConfigSchemaCheck) Category() string { return "CONFIG" }

func (c *ConfigSchemaCheck) Run(context.Context) CheckResult {
	cfg, err := config.Load(c.Path)
	if err != nil {
		if rdErr, ok := errors.As(err); ok {
			return fail(rdErr.Message, rdErr.Suggestion)
		}
		return fail(err.Error(), "")
	}

	n := len(cfg.PreCommands)
	return pass(fmt.Sprintf("Deploys to %s, %d %s",
		cfg.Destination(), n, util.Pluralize(n, "pre-command", "pre-commands")))
}
