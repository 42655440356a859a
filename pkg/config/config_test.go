package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitvanity/pkg/search"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNonce(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"1", 1, false},
		{"ff", 255, false},
		{"0xFF", 255, false},
		{" 1A2B ", 0x1a2b, false},
		{"ffffffffffffffff", 1<<64 - 1, false},
		{"10000000000000000", 0, true},
		{"xyz", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseNonce(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  prefix: "0000"
  threads: 3
journal:
  type: none
`), 0o644))
	t.Setenv("GITVANITY_SEARCH_MESSAGE", "cafe")

	require.NoError(t, Load(path))

	s, err := SearchSettings()
	require.NoError(t, err)
	assert.Equal(t, "0000", s.Prefix)
	assert.Equal(t, "cafe", s.Message, "environment reaches nested keys")
	assert.Equal(t, 3, s.Threads)
	assert.Equal(t, uint64(1), s.Start, "default starting nonce")
	assert.Equal(t, uint64(100), s.Batch)
	assert.Equal(t, 5*time.Second, s.ReportInterval)
	assert.Equal(t, "none", viper.GetString("journal.type"))
}

func TestSearchSettings_ThreadsUnset(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()

	s, err := SearchSettings()
	require.NoError(t, err)
	assert.Zero(t, s.Threads, "no thread count leaves the choice to the coordinator")
}

func TestLoad_BrokenFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unclosed"), 0o644))
	assert.Error(t, Load(path))
}

func TestSearchSettings_Invalid(t *testing.T) {
	tests := map[string]map[string]any{
		"bad nonce":    {"search.nonce": "zz"},
		"bad limit":    {"search.limit": "0xg"},
		"neg threads":  {"search.threads": -1},
		"zero threads": {"search.threads": 0},
		"bad threads":  {"search.threads": "many"},
		"zero batch":   {"search.batch": 0},
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			setDefaults()
			for k, v := range values {
				viper.Set(k, v)
			}
			_, err := SearchSettings()
			assert.ErrorIs(t, err, search.ErrConfiguration)
		})
	}
}
