// Package validation checks embedded catalogs and request payloads against
// JSON schemas.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "community-assistant/internal/common/errors"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateDocument validates document (any JSON-compatible Go value) against
// a JSON schema given as raw bytes.
func ValidateDocument(schema []byte, document interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// ValidateCatalog validates a named catalog and returns a CATALOG_INVALID
// StandardError listing every violation.
func ValidateCatalog(name string, schema []byte, document interface{}) error {
	result, err := ValidateDocument(schema, document)
	if err != nil {
		return apperrors.NewCatalogInvalidError(name, err.Error())
	}
	if !result.Valid {
		return apperrors.NewCatalogInvalidError(name, strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

// ToDocument round-trips v through JSON so struct tags, not Go field names,
// are what the schema sees.
func ToDocument(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, e := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
