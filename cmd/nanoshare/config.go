package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetlink/nanoshare/retry"

	"github.com/BurntSushi/toml"
)

// storeConfig names one remote store and how to reach its API.
type storeConfig struct {
	Name   string `toml:"name"`
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// pollConfig overrides the propagation poll budget and delay schedule.
// Unset fields keep the workflow defaults.
type pollConfig struct {
	MaxAttempts   int    `toml:"max_attempts"`
	QuickAttempts int    `toml:"quick_attempts"`
	BaseDelay     string `toml:"base_delay"`
	MaxDelay      string `toml:"max_delay"`
}

// serverConfig is the TOML file configuration: the store pair the
// workflow runs between plus optional poll tuning.
type serverConfig struct {
	Source storeConfig `toml:"source"`
	Target storeConfig `toml:"target"`
	Poll   pollConfig  `toml:"poll"`

	pollSet bool
	poll    retry.Config
}

func (c *storeConfig) validate(which string) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%s store: missing name", which)
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%s store: missing url", which)
	}
	return nil
}

// poller returns a poller for the configured schedule, or nil if the
// config file did not tune polling.
func (c *serverConfig) poller() *retry.Poller {
	if !c.pollSet {
		return nil
	}
	return retry.New(retry.WithConfig(c.poll))
}

func loadConfig(path string) (*serverConfig, error) {
	config := new(serverConfig)
	meta, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err = config.Source.validate("source"); err != nil {
		return nil, err
	}
	if err = config.Target.validate("target"); err != nil {
		return nil, err
	}
	if config.Source.Name == config.Target.Name {
		return nil, errors.New("source and target stores must differ")
	}

	config.poll = retry.Config{
		MaxAttempts:   retry.DefaultMaxAttempts,
		QuickAttempts: retry.DefaultQuickAttempts,
		BaseDelay:     retry.DefaultBaseDelay,
		MaxDelay:      retry.DefaultMaxDelay,
	}
	if meta.IsDefined("poll", "max_attempts") {
		config.pollSet = true
		config.poll.MaxAttempts = config.Poll.MaxAttempts
	}
	if meta.IsDefined("poll", "quick_attempts") {
		config.pollSet = true
		config.poll.QuickAttempts = config.Poll.QuickAttempts
	}
	if meta.IsDefined("poll", "base_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(config.Poll.BaseDelay))
		if err != nil {
			return nil, fmt.Errorf("parse base_delay: %w", err)
		}
		config.pollSet = true
		config.poll.BaseDelay = d
	}
	if meta.IsDefined("poll", "max_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(config.Poll.MaxDelay))
		if err != nil {
			return nil, fmt.Errorf("parse max_delay: %w", err)
		}
		config.pollSet = true
		config.poll.MaxDelay = d
	}
	if config.poll.MaxAttempts < 1 {
		return nil, errors.New("poll: max_attempts must be positive")
	}

	return config, nil
}
