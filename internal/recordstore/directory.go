// internal/recordstore/directory.go
package recordstore

import (
	"context"
	"strings"

	"community-assistant/internal/models"
)

// MemoryDirectory answers location lookups from a MemoryStore's Province and
// Municipality records.
type MemoryDirectory struct {
	provinces      map[string]string
	municipalities map[string]models.Municipality
}

func NewMemoryDirectory(store *MemoryStore) *MemoryDirectory {
	d := &MemoryDirectory{
		provinces:      make(map[string]string),
		municipalities: make(map[string]models.Municipality),
	}
	for _, r := range store.data["Province"] {
		name, _ := r["name"].(string)
		d.provinces[strings.ToLower(name)] = name
	}
	for _, r := range store.data["Municipality"] {
		m := models.Municipality{}
		m.Name, _ = r["name"].(string)
		m.Province, _ = r["province"].(string)
		m.Region, _ = r["region"].(string)
		key := strings.ToLower(m.Name)
		d.municipalities[key] = m
		if short := strings.TrimSuffix(key, " city"); short != key {
			if _, taken := d.municipalities[short]; !taken {
				d.municipalities[short] = m
			}
		}
	}
	return d
}

func (d *MemoryDirectory) FindProvince(_ context.Context, name string) (string, bool, error) {
	official, ok := d.provinces[strings.ToLower(strings.TrimSpace(name))]
	return official, ok, nil
}

func (d *MemoryDirectory) FindMunicipality(_ context.Context, phrase string) (models.Municipality, bool, error) {
	m, ok := d.municipalities[strings.ToLower(strings.TrimSpace(phrase))]
	return m, ok, nil
}
