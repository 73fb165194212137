package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleetlink/nanoshare/retry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[source]
name = "fleet-us"
url = "https://us.example.com/api"
api_key = "key-us"

[target]
name = "fleet-eu"
url = "https://eu.example.com/api"
api_key = "key-eu"
`)

	config, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if have, want := config.Source.Name, "fleet-us"; have != want {
		t.Errorf("have: %v, want: %v", have, want)
	}
	if have, want := config.Target.URL, "https://eu.example.com/api"; have != want {
		t.Errorf("have: %v, want: %v", have, want)
	}
	if config.poller() != nil {
		t.Error("expected nil poller without poll tuning")
	}
}

func TestLoadConfigPollOverrides(t *testing.T) {
	path := writeConfig(t, `
[source]
name = "fleet-us"
url = "https://us.example.com/api"

[target]
name = "fleet-eu"
url = "https://eu.example.com/api"

[poll]
max_attempts = 20
base_delay = "100ms"
`)

	config, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	p := config.poller()
	if p == nil {
		t.Fatal("expected poller with poll tuning")
	}
	want := retry.Config{
		MaxAttempts:   20,
		QuickAttempts: retry.DefaultQuickAttempts,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      retry.DefaultMaxDelay,
	}
	if have := p.Config(); have != want {
		t.Errorf("have: %+v, want: %+v", have, want)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"missing source name": `
[source]
url = "https://us.example.com/api"
[target]
name = "fleet-eu"
url = "https://eu.example.com/api"
`,
		"missing target url": `
[source]
name = "fleet-us"
url = "https://us.example.com/api"
[target]
name = "fleet-eu"
`,
		"same store names": `
[source]
name = "fleet"
url = "https://us.example.com/api"
[target]
name = "fleet"
url = "https://eu.example.com/api"
`,
		"bad delay": `
[source]
name = "fleet-us"
url = "https://us.example.com/api"
[target]
name = "fleet-eu"
url = "https://eu.example.com/api"
[poll]
base_delay = "fast"
`,
		"zero attempts": `
[source]
name = "fleet-us"
url = "https://us.example.com/api"
[target]
name = "fleet-eu"
url = "https://eu.example.com/api"
[poll]
max_attempts = 0
`,
	} {
		if _, err := loadConfig(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
