// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"community-assistant/internal/common/validation"
)

//go:embed record_types.json
var defaultRegistryJSON []byte

//go:embed record_types.schema.json
var registrySchemaJSON []byte

var (
	defaultOnce sync.Once
	defaultReg  *RecordRegistry
	defaultErr  error
)

// Default returns the embedded registry. It is parsed once and never mutated.
func Default() (*RecordRegistry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Parse(defaultRegistryJSON)
	})
	return defaultReg, defaultErr
}

// LoadRegistry reads and validates a registry file.
func LoadRegistry(path string) (*RecordRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse validates data against the registry schema and indexes it.
func Parse(data []byte) (*RecordRegistry, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse record registry: %w", err)
	}
	if err := validation.ValidateCatalog("record_types", registrySchemaJSON, doc); err != nil {
		return nil, err
	}

	var reg RecordRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode record registry: %w", err)
	}

	reg.byName = make(map[string]*RecordType, len(reg.RecordTypes))
	for i := range reg.RecordTypes {
		rt := &reg.RecordTypes[i]
		if _, dup := reg.byName[rt.Name]; dup {
			return nil, fmt.Errorf("duplicate record type %q", rt.Name)
		}
		rt.byName = make(map[string]Field, len(rt.Fields))
		for _, f := range rt.Fields {
			if _, dup := rt.byName[f.Name]; dup {
				return nil, fmt.Errorf("record type %s: duplicate field %q", rt.Name, f.Name)
			}
			rt.byName[f.Name] = f
		}
		if rt.DefaultSort != "" {
			if _, ok := rt.byName[rt.DefaultSort]; !ok {
				return nil, fmt.Errorf("record type %s: default sort %q is not a field", rt.Name, rt.DefaultSort)
			}
		}
		reg.byName[rt.Name] = rt
	}
	return &reg, nil
}

// Lookup returns the whitelisted record type with the given name.
func (r *RecordRegistry) Lookup(name string) (*RecordType, bool) {
	rt, ok := r.byName[name]
	return rt, ok
}

// Names returns every whitelisted record type name, sorted.
func (r *RecordRegistry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
