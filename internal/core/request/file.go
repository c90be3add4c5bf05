package request

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	ktoml "github.com/knadh/koanf/parsers/toml"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadFile reads a request description from a JSON, TOML or YAML file,
// picking the parser from the extension. Field order inside the file is not
// recoverable through the parsers, so fields are loaded in sorted-name
// order; the service does not distinguish.
func LoadFile(path string) (Request, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = kjson.Parser()
	case ".toml":
		parser = ktoml.Parser()
	case ".yaml", ".yml":
		parser = kyaml.Parser()
	default:
		return Request{}, fmt.Errorf("unsupported request file type %q", filepath.Ext(path))
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return Request{}, fmt.Errorf("load request file: %w", err)
	}

	raw := k.Raw()
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	var r Request
	for _, name := range names {
		r.Set(name, raw[name])
	}
	if r.Len() == 0 {
		return Request{}, fmt.Errorf("request file %s is empty", path)
	}
	return r, nil
}
