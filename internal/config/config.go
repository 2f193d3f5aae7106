// Package config handles loading, validating, and managing site configuration
// for respimg.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// SiteConfig is the top-level configuration for a respimg site.
type SiteConfig struct {
	BaseURL     string         `yaml:"baseURL"     mapstructure:"baseURL"`
	BasePath    string         `yaml:"basePath"    mapstructure:"basePath"`
	Title       string         `yaml:"title"       mapstructure:"title"`
	Description string         `yaml:"description" mapstructure:"description"`
	Language    string         `yaml:"language"    mapstructure:"language"`
	Theme       string         `yaml:"theme"       mapstructure:"theme"`
	Build       BuildConfig    `yaml:"build"       mapstructure:"build"`
	Images      ImageConfig    `yaml:"images"      mapstructure:"images"`
	Cache       CacheConfig    `yaml:"cache"       mapstructure:"cache"`
	Params      map[string]any `yaml:"params"      mapstructure:"params"`
}

// BuildConfig controls the site build process.
type BuildConfig struct {
	Minify  bool `yaml:"minify"  mapstructure:"minify"`
	Workers int  `yaml:"workers" mapstructure:"workers"`
	// HighlightStyle is the chroma style written to css/syntax.css. Empty
	// disables the stylesheet.
	HighlightStyle string `yaml:"highlightStyle" mapstructure:"highlightStyle"`
}

// ImageConfig controls responsive image generation. The option fields are
// the plugin-wide defaults; zero values mean "not configured" and defer to
// the built-in fallbacks.
type ImageConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// AssetsDir is copied verbatim into the output. <img> references found in
	// rendered pages resolve relative to it.
	AssetsDir string `yaml:"assetsDir" mapstructure:"assetsDir"`
	// SourceDir is where inline [[image.jpg]] references resolve. Derivative
	// slugs are computed relative to it.
	SourceDir string `yaml:"sourceDir" mapstructure:"sourceDir"`
	// OutputDir receives the derivative files.
	OutputDir string `yaml:"outputDir" mapstructure:"outputDir"`

	MinWidth           int    `yaml:"minWidth"           mapstructure:"minWidth"`
	MaxWidth           int    `yaml:"maxWidth"           mapstructure:"maxWidth"`
	NumSteps           int    `yaml:"numSteps"           mapstructure:"numSteps"`
	HiDPI              bool   `yaml:"hidpi"              mapstructure:"hidpi"`
	Frame              string `yaml:"frame"              mapstructure:"frame"`
	Loading            string `yaml:"loading"            mapstructure:"loading"`
	BackgroundColor    string `yaml:"backgroundColor"    mapstructure:"backgroundColor"`
	CompressionQuality int    `yaml:"compressionQuality" mapstructure:"compressionQuality"`

	// Presets maps a preset name to option overrides, keyed by the same
	// option names used on <img> tags (e.g. "max-width", "frame").
	Presets map[string]map[string]any `yaml:"presets" mapstructure:"presets"`
}

// CacheConfig selects and sizes the build cache that memoizes rendered
// image markup across builds.
type CacheConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // "manifest", "sqlite" or "memory"
	Path    string `yaml:"path"    mapstructure:"path"`
	Size    int    `yaml:"size"    mapstructure:"size"`
}

// Cache backends.
const (
	CacheManifest = "manifest"
	CacheSQLite   = "sqlite"
	CacheMemory   = "memory"
)

// Default returns a SiteConfig populated with sensible default values.
func Default() *SiteConfig {
	return &SiteConfig{
		BasePath: "/",
		Language: "en",
		Theme:    "default",
		Build:    BuildConfig{HighlightStyle: "github"},
		Images: ImageConfig{
			Enabled:   true,
			AssetsDir: "assets",
			SourceDir: "assets/images",
			OutputDir: "assets/images/responsive_images",
			Presets:   map[string]map[string]any{},
		},
		Cache: CacheConfig{
			Backend: CacheManifest,
			Path:    ".respimg/cache",
			Size:    4096,
		},
		Params: map[string]any{},
	}
}

// Load reads a configuration file from configPath (YAML or TOML) and returns
// a SiteConfig with defaults applied first and file values overlaid on top.
func Load(configPath string) (*SiteConfig, error) {
	cfg := Default()

	v := viper.New()

	// Determine format from extension.
	ext := strings.TrimPrefix(filepath.Ext(configPath), ".")
	switch ext {
	case "yaml", "yml":
		v.SetConfigType("yaml")
	case "toml":
		v.SetConfigType("toml")
	default:
		// Default to yaml if unrecognised.
		v.SetConfigType("yaml")
	}

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the SiteConfig for common errors.
// It returns a descriptive error if:
//   - Title is empty
//   - BaseURL has a trailing slash
//   - an image directory is absolute or escapes the project root
//   - the image output directory is not inside the assets directory
//   - the cache backend is unknown
//   - an image frame is not "figure", "div" or empty
func (c *SiteConfig) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("config: title is required")
	}

	if c.BaseURL != "" && strings.HasSuffix(c.BaseURL, "/") {
		return fmt.Errorf("config: baseURL must not have a trailing slash (got %q)", c.BaseURL)
	}

	dirs := map[string]string{
		"images.assetsDir": c.Images.AssetsDir,
		"images.sourceDir": c.Images.SourceDir,
		"images.outputDir": c.Images.OutputDir,
	}
	for name, dir := range dirs {
		if dir == "" {
			return fmt.Errorf("config: %s is required", name)
		}
		if filepath.IsAbs(dir) || strings.HasPrefix(filepath.Clean(dir), "..") {
			return fmt.Errorf("config: %s must be relative to the project root (got %q)", name, dir)
		}
	}

	if !within(c.Images.AssetsDir, c.Images.OutputDir) {
		return fmt.Errorf("config: images.outputDir %q must be inside images.assetsDir %q",
			c.Images.OutputDir, c.Images.AssetsDir)
	}

	switch c.Cache.Backend {
	case CacheManifest, CacheSQLite, CacheMemory:
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Images.Frame {
	case "", "figure", "div":
	default:
		return fmt.Errorf("config: images.frame must be \"figure\", \"div\" or empty (got %q)", c.Images.Frame)
	}

	return nil
}

// within reports whether child is parent or a directory below it.
func within(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// WithOverrides applies CLI flag overrides to the config. Known keys are
// mapped to their corresponding struct fields. The modified config is returned
// for convenient chaining.
func (c *SiteConfig) WithOverrides(overrides map[string]any) *SiteConfig {
	for key, val := range overrides {
		switch key {
		case "baseURL":
			if s, ok := val.(string); ok {
				c.BaseURL = s
			}
		case "basePath":
			if s, ok := val.(string); ok {
				c.BasePath = s
			}
		case "title":
			if s, ok := val.(string); ok {
				c.Title = s
			}
		case "theme":
			if s, ok := val.(string); ok {
				c.Theme = s
			}
		case "minify":
			if b, ok := val.(bool); ok {
				c.Build.Minify = b
			}
		case "workers":
			if n, ok := val.(int); ok {
				c.Build.Workers = n
			}
		case "hidpi":
			if b, ok := val.(bool); ok {
				c.Images.HiDPI = b
			}
		case "cache":
			if s, ok := val.(string); ok {
				c.Cache.Backend = s
			}
		}
	}
	return c
}

// Options returns the configured plugin-wide image defaults keyed by their
// tag option names. Unset fields are omitted so that built-in fallbacks apply.
func (ic ImageConfig) Options() map[string]any {
	opts := make(map[string]any)
	if ic.MinWidth != 0 {
		opts["min-width"] = ic.MinWidth
	}
	if ic.MaxWidth != 0 {
		opts["max-width"] = ic.MaxWidth
	}
	if ic.NumSteps != 0 {
		opts["num-steps"] = ic.NumSteps
	}
	if ic.HiDPI {
		opts["hidpi"] = true
	}
	if ic.Frame != "" {
		opts["frame"] = ic.Frame
	}
	if ic.Loading != "" {
		opts["loading"] = ic.Loading
	}
	if ic.BackgroundColor != "" {
		opts["background-color"] = ic.BackgroundColor
	}
	if ic.CompressionQuality != 0 {
		opts["compression-quality"] = ic.CompressionQuality
	}
	return opts
}
