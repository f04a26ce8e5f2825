package blade

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the file form of an engine configuration.
//
//	mode: development
//	views: ./views
//	extensions: [.blade.html, .html]
//	max_depth: 16
//	cache_dir: /tmp/blade-cache
//	globals:
//	  site: Example
type Config struct {
	Mode              string         `yaml:"mode" toml:"mode"`
	Views             string         `yaml:"views" toml:"views"`
	ComponentsDir     string         `yaml:"components_dir" toml:"components_dir"`
	Extensions        []string       `yaml:"extensions" toml:"extensions"`
	MaxDepth          int            `yaml:"max_depth" toml:"max_depth"`
	MaxComponentDepth int            `yaml:"max_component_depth" toml:"max_component_depth"`
	MaxLoopIterations int            `yaml:"max_loop_iterations" toml:"max_loop_iterations"`
	CacheDir          string         `yaml:"cache_dir" toml:"cache_dir"`
	DumpDir           string         `yaml:"dump_dir" toml:"dump_dir"`
	KeepCompiled      bool           `yaml:"keep_compiled" toml:"keep_compiled"`
	LoaderCache       bool           `yaml:"loader_cache" toml:"loader_cache"`
	Globals           map[string]any `yaml:"globals" toml:"globals"`
}

// LoadConfig reads a .yaml, .yml or .toml configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigurationError(ErrMsgConfigRead, MetaKeyPath, err)
	}
	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig decodes configuration data in the format named by ext.
func ParseConfig(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(ext) {
	case ConfigExtYAML, ConfigExtYML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, NewConfigurationError(ErrMsgConfigDecode, ext, err)
		}
	case ConfigExtTOML:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, NewConfigurationError(ErrMsgConfigDecode, ext, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, NewConfigurationError(ErrMsgConfigDecode, undecoded[0].String(), nil)
		}
	default:
		return nil, NewConfigurationError(ErrMsgConfigFormat, ext, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the mode and limits.
func (c *Config) Validate() error {
	if c.Mode != "" && !Mode(c.Mode).Valid() {
		return NewConfigurationError(ErrMsgInvalidMode, "mode", nil)
	}
	if c.MaxDepth < 0 {
		return NewConfigurationError(ErrMsgNegativeLimit, "max_depth", nil)
	}
	if c.MaxComponentDepth < 0 {
		return NewConfigurationError(ErrMsgNegativeLimit, "max_component_depth", nil)
	}
	if c.MaxLoopIterations < 0 {
		return NewConfigurationError(ErrMsgNegativeLimit, "max_loop_iterations", nil)
	}
	return nil
}

// Options converts the configuration into engine options. Zero values keep
// the engine defaults. logger is used by the loaders and caches it creates.
func (c *Config) Options(logger *zap.Logger) ([]Option, error) {
	var opts []Option
	if c.Mode != "" {
		opts = append(opts, WithMode(Mode(c.Mode)))
	}
	if len(c.Extensions) > 0 {
		opts = append(opts, WithExtensions(c.Extensions...))
	}
	if c.ComponentsDir != "" {
		opts = append(opts, WithComponentsDir(c.ComponentsDir))
	}
	if c.MaxDepth > 0 {
		opts = append(opts, WithMaxDepth(c.MaxDepth))
	}
	if c.MaxComponentDepth > 0 {
		opts = append(opts, WithMaxComponentDepth(c.MaxComponentDepth))
	}
	if c.MaxLoopIterations > 0 {
		opts = append(opts, WithMaxLoopIterations(c.MaxLoopIterations))
	}
	if c.DumpDir != "" {
		opts = append(opts, WithCompiledDump(c.DumpDir), WithKeepCompiled(c.KeepCompiled))
	}
	if len(c.Globals) > 0 {
		opts = append(opts, WithGlobals(c.Globals))
	}

	if c.Views != "" {
		fsLoader, err := NewFilesystemLoader(c.Views, c.Extensions...)
		if err != nil {
			return nil, err
		}
		var loader Loader = fsLoader
		if c.LoaderCache {
			loader = NewCachedLoader(fsLoader, DefaultCacheConfig(), logger)
		}
		opts = append(opts, WithLoader(loader))
	}

	if c.CacheDir != "" {
		disk, err := NewDiskCache(c.CacheDir, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCompileCache(NewCompileCache(disk)))
	}
	return opts, nil
}
