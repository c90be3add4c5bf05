package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func fakeEnv(vars map[string]string) Getenv {
	return func(key string) string { return vars[key] }
}

func fakeFiles(files map[string]string) ReadFile {
	return func(path string) ([]byte, error) {
		content, ok := files[path]
		if !ok {
			return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
		}
		return []byte(content), nil
	}
}

const validRC = `{"url": "https://example.int/v1", "key": "abc123", "email": "user@example.int"}`

func TestResolve_EnvTripleWins(t *testing.T) {
	env := fakeEnv(map[string]string{
		"ECMWF_API_KEY":     "envkey",
		"ECMWF_API_URL":     "https://env.example/v1",
		"ECMWF_API_EMAIL":   "env@example.int",
		"ECMWF_API_RC_FILE": "/etc/other.rc",
	})
	files := fakeFiles(map[string]string{"/etc/other.rc": validRC})

	creds, err := Resolve(env, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Key != "envkey" || creds.URL != "https://env.example/v1" || creds.Email != "env@example.int" {
		t.Errorf("expected env credentials, got %+v", creds)
	}
}

func TestResolve_PartialEnvIsError(t *testing.T) {
	env := fakeEnv(map[string]string{
		"ECMWF_API_KEY": "envkey",
		"ECMWF_API_URL": "https://env.example/v1",
	})

	_, err := Resolve(env, fakeFiles(nil))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestResolve_RCFileFromEnv(t *testing.T) {
	env := fakeEnv(map[string]string{"ECMWF_API_RC_FILE": "/home/u/my.rc"})
	files := fakeFiles(map[string]string{"/home/u/my.rc": validRC})

	creds, err := Resolve(env, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Key != "abc123" {
		t.Errorf("expected rc file key, got %q", creds.Key)
	}
}

func TestResolve_ExplicitRCFileMissingIsError(t *testing.T) {
	env := fakeEnv(map[string]string{"ECMWF_API_RC_FILE": "/nope.rc"})

	_, err := Resolve(env, fakeFiles(nil))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestResolve_ExplicitRCFileMalformedIsError(t *testing.T) {
	for name, content := range map[string]string{
		"bad json":    `{not json`,
		"missing key": `{"url": "https://example.int/v1", "email": "user@example.int"}`,
		"empty field": `{"url": "", "key": "k", "email": "e@example.int"}`,
	} {
		env := fakeEnv(map[string]string{"ECMWF_API_RC_FILE": "/my.rc"})
		files := fakeFiles(map[string]string{"/my.rc": content})

		_, err := Resolve(env, files)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("%s: expected ConfigError, got %v", name, err)
		}
	}
}

func TestResolve_DefaultRCFile(t *testing.T) {
	env := fakeEnv(map[string]string{"HOME": "/home/u"})
	files := fakeFiles(map[string]string{"/home/u/.ecmwfapirc": validRC})

	creds, err := Resolve(env, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Key != "abc123" {
		t.Errorf("expected default rc file key, got %q", creds.Key)
	}
}

// Resolution must not consult the process environment: the home directory
// comes from the injected Getenv like everything else.
func TestResolve_HomeFromInjectedEnvOnly(t *testing.T) {
	real := t.TempDir()
	t.Setenv("HOME", real)
	if err := os.WriteFile(filepath.Join(real, ".ecmwfapirc"), []byte(validRC), 0o600); err != nil {
		t.Fatal(err)
	}

	env := fakeEnv(map[string]string{"HOME": "/home/injected"})
	files := fakeFiles(map[string]string{
		"/home/injected/.ecmwfapirc": `{"url": "https://injected.int/v1", "key": "inj", "email": "inj@example.int"}`,
	})

	creds, err := Resolve(env, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Key != "inj" {
		t.Errorf("expected the injected home's credentials, got %+v", creds)
	}
}

func TestResolve_MalformedDefaultFallsThroughToAnonymous(t *testing.T) {
	env := fakeEnv(map[string]string{"HOME": "/home/u"})
	files := fakeFiles(map[string]string{"/home/u/.ecmwfapirc": `{broken`})

	creds, err := Resolve(env, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds != Anonymous {
		t.Errorf("expected anonymous fallback, got %+v", creds)
	}
}

func TestResolve_AnonymousFallback(t *testing.T) {
	creds, err := Resolve(fakeEnv(nil), fakeFiles(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds != Anonymous {
		t.Errorf("expected anonymous credentials, got %+v", creds)
	}
	if creds.Key != "anonymous" {
		t.Errorf("expected anonymous key, got %q", creds.Key)
	}
}
