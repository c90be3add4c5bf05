package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Settings holds engine tuning parameters. None of them affect correctness;
// they trade politeness against latency when talking to the service.
type Settings struct {
	// Timeout applies to each individual HTTP exchange, not to a whole
	// retrieval (jobs routinely run for hours server-side).
	Timeout time.Duration `koanf:"timeout"`

	// Limit is the page size for service messages (the limit query
	// parameter sent on every call).
	Limit int `koanf:"limit"`

	Poll     PollSettings     `koanf:"poll"`
	Transfer TransferSettings `koanf:"transfer"`
}

type PollSettings struct {
	Initial time.Duration `koanf:"initial"`
	Step    time.Duration `koanf:"step"`
	Cap     time.Duration `koanf:"cap"`
	Retries int           `koanf:"retries"`
}

type TransferSettings struct {
	// Attempts bounds the resume loop for an interrupted download.
	Attempts int           `koanf:"attempts"`
	Pause    time.Duration `koanf:"pause"`
}

// LoadSettings builds Settings from defaults overlaid with ECMWF_-prefixed
// env vars: ECMWF_POLL_CAP -> poll.cap.
func LoadSettings() (Settings, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"timeout": "60s",
		"limit":   500,

		"poll.initial": "5s",
		"poll.step":    "5s",
		"poll.cap":     "60s",
		"poll.retries": 10,

		"transfer.attempts": 10,
		"transfer.pause":    "60s",
	}
	for key, val := range defaults {
		k.Set(key, val)
	}

	// Only overlay env vars with non-empty values. ECMWF_API_* is the
	// credential namespace and is handled by Resolve, not here.
	if err := k.Load(env.ProviderWithValue("ECMWF_", ".", func(key, value string) (string, interface{}) {
		if value == "" || strings.HasPrefix(key, "ECMWF_API_") {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "ECMWF_")),
			"_", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
