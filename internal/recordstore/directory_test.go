// internal/recordstore/directory_test.go
package recordstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"community-assistant/internal/models"
)

func TestMemoryDirectory(t *testing.T) {
	dir := NewMemoryDirectory(seededStore(t))
	ctx := context.Background()

	province, ok, err := dir.FindProvince(ctx, "  zamboanga SIBUGAY ")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Zamboanga Sibugay", province)

	_, ok, _ = dir.FindProvince(ctx, "Maguindanao")
	assert.False(t, ok)

	tests := []struct {
		phrase string
		want   models.Municipality
		found  bool
	}{
		{"iligan", models.Municipality{Name: "Iligan City", Province: "Lanao del Norte", Region: "Region X"}, true},
		{"Iligan City", models.Municipality{Name: "Iligan City", Province: "Lanao del Norte", Region: "Region X"}, true},
		{"cagayan de oro", models.Municipality{Name: "Cagayan de Oro City", Province: "Misamis Oriental", Region: "Region X"}, true},
		{"glan", models.Municipality{Name: "Glan", Province: "Sarangani", Region: "Region XII"}, true},
		{"cotabato city", models.Municipality{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			m, ok, err := dir.FindMunicipality(ctx, tt.phrase)
			assert.NoError(t, err)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, m)
		})
	}
}
