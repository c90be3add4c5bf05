package config

import (
	"fmt"
	"path/filepath"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envKey    = "ECMWF_API_KEY"
	envURL    = "ECMWF_API_URL"
	envEmail  = "ECMWF_API_EMAIL"
	envRCFile = "ECMWF_API_RC_FILE"

	defaultRCName = ".ecmwfapirc"
)

// Anonymous is the fixed identity-less credential triple used when no user
// credentials are configured. It grants limited-quality access.
var Anonymous = Credentials{
	URL:   "https://api.ecmwf.int/v1",
	Key:   "anonymous",
	Email: "anonymous@ecmwf.int",
}

// Credentials is the immutable (url, key, email) triple attached to every
// outbound call. Built once per engine instance.
type Credentials struct {
	URL   string
	Key   string
	Email string
}

// ConfigError reports an explicitly-requested credential source that is
// present but malformed or incomplete. It is fatal and never retried.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("credentials from %s: %s", e.Source, e.Reason)
}

// Getenv looks up an environment variable, returning "" when unset.
type Getenv func(key string) string

// ReadFile reads a file's entire contents.
type ReadFile func(path string) ([]byte, error)

// Resolve determines the credentials to use, trying each source in priority
// order and stopping at the first fully-specified one:
//
//  1. ECMWF_API_KEY, ECMWF_API_URL, ECMWF_API_EMAIL — used only when all
//     three are set and non-empty; a partial set is a configuration error.
//  2. ECMWF_API_RC_FILE — a JSON credentials file at an explicit path; any
//     read or parse failure is a configuration error.
//  3. $HOME/.ecmwfapirc — same format, but absence or malformation falls
//     through to anonymous access instead of failing. The home directory
//     comes from the injected environment as well.
//  4. Anonymous.
//
// The environment and filesystem are injected so resolution is testable
// without mutating either; callers normally pass os.Getenv and os.ReadFile.
func Resolve(getenv Getenv, readFile ReadFile) (Credentials, error) {
	key, url, email := getenv(envKey), getenv(envURL), getenv(envEmail)
	if key != "" || url != "" || email != "" {
		if key == "" || url == "" || email == "" {
			return Credentials{}, &ConfigError{
				Source: "environment",
				Reason: fmt.Sprintf("incomplete API key: %s, %s and %s must all be set", envKey, envURL, envEmail),
			}
		}
		return Credentials{URL: url, Key: key, Email: email}, nil
	}

	if path := getenv(envRCFile); path != "" {
		creds, err := readRCFile(path, readFile)
		if err != nil {
			return Credentials{}, &ConfigError{Source: path, Reason: err.Error()}
		}
		return creds, nil
	}

	if home := getenv("HOME"); home != "" {
		path := filepath.Join(home, defaultRCName)
		if creds, err := readRCFile(path, readFile); err == nil {
			return creds, nil
		}
		// Opportunistic source: fall through on any failure.
	}

	return Anonymous, nil
}

func readRCFile(path string, readFile ReadFile) (Credentials, error) {
	raw, err := readFile(path)
	if err != nil {
		return Credentials{}, err
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), kjson.Parser()); err != nil {
		return Credentials{}, fmt.Errorf("malformed API key file: %w", err)
	}

	creds := Credentials{
		URL:   k.String("url"),
		Key:   k.String("key"),
		Email: k.String("email"),
	}
	if creds.URL == "" || creds.Key == "" || creds.Email == "" {
		return Credentials{}, fmt.Errorf("missing url, key or email in %s", path)
	}
	return creds, nil
}
