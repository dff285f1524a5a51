package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		env       map[string]string
		validate  func(*testing.T, *Config)
		checkFile func(*testing.T, string)
		wantErr   string
	}{
		{
			name: "NewFile_Defaults",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, SourceTopoJSONURL, cfg.Geometry.Source)
				assert.Equal(t, []string{"010"}, cfg.Geometry.Exclude)
				assert.Equal(t, 250.0, cfg.Projection.Scale)
				assert.Equal(t, "#2196F3", cfg.Visits.DefaultColor)
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Contains(t, string(content), "source: topojson-url")
				assert.Contains(t, string(content), "# Options: topojson-url, topojson-file, geojson-file, shapefile")
				assert.Contains(t, string(content), "cache_max_age: 720h0m0s")
			},
		},
		{
			name:    "ExistingFile_Override",
			content: "geometry:\n  source: shapefile\n  path: ./data/countries.shp\nprojection:\n  scale: 180\n",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, SourceShapefile, cfg.Geometry.Source)
				assert.Equal(t, 180.0, cfg.Projection.Scale)
				assert.Equal(t, 1200.0, cfg.Projection.Width, "unset keys keep defaults")
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.NotContains(t, string(content), "# Wandermap Configuration", "existing file is not rewritten")
			},
		},
		{
			name: "Env_Override",
			env: map[string]string{
				"WANDERMAP_ADDRESS":      "0.0.0.0:9000",
				"WANDERMAP_GEOMETRY_URL": "http://mirror.local/countries.json",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address)
				assert.Equal(t, "http://mirror.local/countries.json", cfg.Geometry.URL)
			},
		},
		{
			name:    "Invalid_Source",
			content: "geometry:\n  source: carrier-pigeon\n",
			wantErr: "unknown geometry.source",
		},
		{
			name:    "Missing_Path",
			content: "geometry:\n  source: geojson-file\n",
			wantErr: "geometry.path is required",
		},
		{
			name:    "Invalid_Margin",
			content: "projection:\n  margin: 1.5\n",
			wantErr: "projection.margin",
		},
		{
			name:    "Malformed_YAML",
			content: "projection: [\n",
			wantErr: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "conf", "wandermap.yaml")
			if tt.content != "" {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t, path)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wandermap.yaml")
	require.NoError(t, GenerateDefault(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# Wandermap Configuration"))

	// Existing files are left alone
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: x\n"), 0o644))
	require.NoError(t, GenerateDefault(path))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "server:\n  address: x\n", string(content))
}

func TestValidate_Export(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Export.Scale = 8
	assert.Error(t, cfg.Validate())

	cfg.Export.Scale = 2
	assert.NoError(t, cfg.Validate())
}
