package blade

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseConfig_YAML(t *testing.T) {
	data := []byte(`
mode: development
views: ./views
extensions: [.blade.html, .html]
max_depth: 16
max_loop_iterations: 500
keep_compiled: true
globals:
  site: Example
`)
	cfg, err := ParseConfig(data, ConfigExtYAML)
	require.NoError(t, err)

	assert.Equal(t, string(ModeDevelopment), cfg.Mode)
	assert.Equal(t, "./views", cfg.Views)
	assert.Equal(t, []string{".blade.html", ".html"}, cfg.Extensions)
	assert.Equal(t, 16, cfg.MaxDepth)
	assert.Equal(t, 500, cfg.MaxLoopIterations)
	assert.True(t, cfg.KeepCompiled)
	assert.Equal(t, "Example", cfg.Globals["site"])
}

func TestParseConfig_TOML(t *testing.T) {
	data := []byte(`
mode = "production"
components_dir = "ui"
max_component_depth = 8
loader_cache = true

[globals]
site = "Example"
`)
	cfg, err := ParseConfig(data, ConfigExtTOML)
	require.NoError(t, err)

	assert.Equal(t, string(ModeProduction), cfg.Mode)
	assert.Equal(t, "ui", cfg.ComponentsDir)
	assert.Equal(t, 8, cfg.MaxComponentDepth)
	assert.True(t, cfg.LoaderCache)
	assert.Equal(t, "Example", cfg.Globals["site"])
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil, ConfigExtYML)
	require.NoError(t, err)
	assert.Empty(t, cfg.Mode)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
		msg  string
	}{
		{"unknown yaml field", "mdoe: development\n", ConfigExtYAML, ErrMsgConfigDecode},
		{"unknown toml field", "mdoe = \"development\"\n", ConfigExtTOML, ErrMsgConfigDecode},
		{"malformed yaml", "mode: [\n", ConfigExtYAML, ErrMsgConfigDecode},
		{"bad mode", "mode: staging\n", ConfigExtYAML, ErrMsgInvalidMode},
		{"negative depth", "max_depth: -1\n", ConfigExtYAML, ErrMsgNegativeLimit},
		{"negative loop limit", "max_loop_iterations = -5\n", ConfigExtTOML, ErrMsgNegativeLimit},
		{"unsupported format", "{}", ".json", ErrMsgConfigFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data), tt.ext)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blade.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: development\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, string(ModeDevelopment), cfg.Mode)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), ErrMsgConfigRead)
}

func TestConfig_Options(t *testing.T) {
	views := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(views, "partials"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(views, "home.blade.html"),
		[]byte("{{ $site }}: @include('partials.nav')"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(views, "partials", "nav.blade.html"),
		[]byte("nav"), 0o600))

	cacheDir := filepath.Join(t.TempDir(), "cache")
	cfg := &Config{
		Mode:              string(ModeDevelopment),
		Views:             views,
		MaxDepth:          4,
		MaxLoopIterations: 10,
		CacheDir:          cacheDir,
		LoaderCache:       true,
		Globals:           map[string]any{"site": "Example"},
	}

	opts, err := cfg.Options(zaptest.NewLogger(t))
	require.NoError(t, err)

	engine, err := New(opts...)
	require.NoError(t, err)
	assert.Equal(t, ModeDevelopment, engine.Mode())
	assert.IsType(t, &CachedLoader{}, engine.Loader())

	out, err := engine.Render(context.Background(), "home", nil)
	require.NoError(t, err)
	assert.Equal(t, "Example: nav", out)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestConfig_Options_ZeroValuesKeepDefaults(t *testing.T) {
	opts, err := (&Config{}).Options(nil)
	require.NoError(t, err)
	assert.Empty(t, opts)

	engine, err := New(opts...)
	require.NoError(t, err)
	assert.Equal(t, ModeProduction, engine.Mode())
	assert.Nil(t, engine.Loader())
}
