package fusion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgfuse/cgfuse/pkg/errors"
)

func TestLoadConfigMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigName)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.Empty(t, cfg.Platform)
	assert.Empty(t, cfg.IncludeImplItems)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigName)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	cfg.Platform = PlatformOther
	cfg.SupportedCrates = []string{"serde"}
	cfg.RecordImplItem("Grid::reset", true)
	cfg.RecordImplItem("Grid::debug_dump", false)
	require.NoError(t, cfg.Save())

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, PlatformOther, loaded.Platform)
	assert.Equal(t, []string{"serde"}, loaded.SupportedCrates)
	assert.Equal(t, []string{"Grid::reset"}, loaded.IncludeImplItems)
	assert.Equal(t, []string{"Grid::debug_dump"}, loaded.ExcludeImplItems)
}

func TestLoadConfigRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigName)
	require.NoError(t, os.WriteFile(path, []byte("platform = [broken\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfig))
}

func TestConfigSaveWithoutPath(t *testing.T) {
	var cfg Config
	err := cfg.Save()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfig))
}

func TestConfigRecordImplItemKeepsFirstDecision(t *testing.T) {
	var cfg Config
	cfg.RecordImplItem("Grid::reset", false)
	cfg.RecordImplItem("Grid::reset", true)

	assert.Empty(t, cfg.IncludeImplItems)
	assert.Equal(t, []string{"Grid::reset"}, cfg.ExcludeImplItems)
}

func TestConfigIncludeWinsOverExclude(t *testing.T) {
	cfg := Config{
		IncludeImplItems: []string{"Grid::reset"},
		ExcludeImplItems: []string{"Grid::reset", "Grid::debug_dump"},
	}

	assert.True(t, cfg.IncludesImplItem("Grid::reset"))
	assert.False(t, cfg.ExcludesImplItem("Grid::reset"))
	assert.True(t, cfg.ExcludesImplItem("Grid::debug_dump"))
}

func TestConfigResolvePlatform(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{name: "default", cfg: Config{}, want: PlatformCodinGame},
		{name: "explicit codingame", cfg: Config{Platform: PlatformCodinGame}, want: PlatformCodinGame},
		{
			name: "other with crates",
			cfg:  Config{Platform: PlatformOther, SupportedCrates: []string{"serde"}},
			want: PlatformOther,
		},
		{name: "other without crates", cfg: Config{Platform: PlatformOther}, wantErr: true},
		{name: "unknown", cfg: Config{Platform: "leetcode"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.cfg.ResolvePlatform()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}
