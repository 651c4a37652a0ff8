package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-lookup/internal/lookup"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lookup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	saved := C
	t.Cleanup(func() { C = saved })
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
lookup:
  debounce_ms: 150
  display_mode: showOnAddress
cache:
  ttl_hours: 2
`)

	require.NoError(t, Load(path))
	assert.Equal(t, 150, C.Lookup.DebounceMs)
	assert.Equal(t, 2*time.Hour, C.CacheTTL())
	assert.Equal(t, 30*time.Minute, C.SessionTTL())
	assert.Equal(t, 5*time.Second, C.APITimeout())

	cfg := C.SessionConfig()
	assert.Equal(t, 150*time.Millisecond, cfg.Debounce)
	assert.Equal(t, lookup.DisplayOnAddress, cfg.DisplayMode)
	assert.Equal(t, "NL", cfg.Locale.Name)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "lookup:\n  debounce_ms: 300\n")
	t.Setenv("LOOKUP_DEBOUNCE_MS", "50")
	t.Setenv("CONFIRM_ADDITIONS", "true")

	require.NoError(t, Load(path))
	assert.Equal(t, 50, C.Lookup.DebounceMs)
	assert.True(t, C.Lookup.ConfirmAdditions)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative debounce", "lookup:\n  debounce_ms: -1\n"},
		{"unknown display mode", "lookup:\n  display_mode: popup\n"},
		{"bad postcode pattern", "lookup:\n  locale:\n    postcode_pattern: '(\\d{4'\n"},
		{"no standard fields", "mapping:\n  standard_fields: []\n"},
		{"not yaml", "lookup: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := C
			path := writeConfig(t, tt.body)
			assert.Error(t, Load(path))
			assert.Equal(t, before, C, "failed load keeps the previous config")
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml")))
}
