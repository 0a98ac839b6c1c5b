// pkg/registry/schema.go
package registry

// Field types understood by the record stores.
const (
	FieldString  = "string"
	FieldInteger = "integer"
	FieldNumber  = "number"
	FieldDate    = "date"
	FieldBoolean = "boolean"
)

type RecordRegistry struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	RecordTypes []RecordType `json:"recordTypes"`

	byName map[string]*RecordType
}

// RecordType is one whitelisted, read-only record type.
type RecordType struct {
	Name        string   `json:"name"`
	Table       string   `json:"table"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Fields      []Field  `json:"fields"`
	Keywords    []string `json:"keywords"`
	DefaultSort string   `json:"defaultSort"`

	byName map[string]Field
}

type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Field looks up a declared field by name.
func (rt *RecordType) Field(name string) (Field, bool) {
	f, ok := rt.byName[name]
	return f, ok
}

// FieldNames returns field names in declaration order.
func (rt *RecordType) FieldNames() []string {
	out := make([]string, len(rt.Fields))
	for i, f := range rt.Fields {
		out[i] = f.Name
	}
	return out
}
