package main

import (
	"os"
	"strings"

	"releasewatch/internal/app"
	"releasewatch/internal/config"
)

type commandContext struct {
	configFlag *string
	getenv     func(string) string
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, getenv: os.Getenv}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil || strings.TrimSpace(*c.configFlag) == "" {
		return defaultConfigPath
	}
	return strings.TrimSpace(*c.configFlag)
}

// configOptional: only the default path may be absent; an explicit path
// must exist.
func (c *commandContext) configOptional() bool {
	return c.configPath() == defaultConfigPath
}

func (c *commandContext) appOptions() app.Options {
	return app.Options{
		ConfigPath:     c.configPath(),
		ConfigOptional: c.configOptional(),
		Getenv:         c.getenv,
	}
}

// parseConfig reads the config without validating it, for commands that
// never send anything.
func (c *commandContext) parseConfig() (*config.Config, error) {
	m := config.NewManager(c.configPath(), c.configOptional())
	m.SetEnv(c.getenv)
	return m.Parse()
}
