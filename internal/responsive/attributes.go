package responsive

import (
	"encoding/json"
	"fmt"
	"image/color"
	"log/slog"
	"strings"

	"github.com/aellingwood/respimg/internal/config"
	"github.com/spf13/cast"
)

// Recognized image options. Instance attributes, presets and the global
// configuration use the same names.
const (
	OptMinWidth           = "min-width"
	OptMaxWidth           = "max-width"
	OptNumSteps           = "num-steps"
	OptHiDPI              = "hidpi"
	OptFrame              = "frame"
	OptLoading            = "loading"
	OptBackgroundColor    = "background-color"
	OptCompressionQuality = "compression-quality"
	OptAlt                = "alt"
	OptPreset             = "preset"
)

var recognized = map[string]bool{
	OptMinWidth:           true,
	OptMaxWidth:           true,
	OptNumSteps:           true,
	OptHiDPI:              true,
	OptFrame:              true,
	OptLoading:            true,
	OptBackgroundColor:    true,
	OptCompressionQuality: true,
	OptAlt:                true,
	OptPreset:             true,
}

// IsOption reports whether name is a recognized image option.
func IsOption(name string) bool {
	return recognized[strings.ToLower(name)]
}

// Fallback values used when no layer sets an option.
const (
	DefaultMinWidth = 200
	DefaultNumSteps = 7
	DefaultLoading  = "lazy"
)

// PresetClassPrefix prefixes the class token added for an applied preset.
const PresetClassPrefix = "fn-responsive-preset-"

// RawAttributes are the attributes found at the point of use, before
// collation. Options holds recognized option names; HTML holds everything
// else, passed through to the rendered <img>.
type RawAttributes struct {
	Options map[string]string
	HTML    map[string]string
}

// Attributes is the effective attribute set of one image after collation.
type Attributes struct {
	MinWidth           int               `json:"min-width"`
	MaxWidth           int               `json:"max-width"`
	NumSteps           int               `json:"num-steps"`
	HiDPI              bool              `json:"hidpi"`
	Frame              string            `json:"frame"`
	Loading            string            `json:"loading"`
	BackgroundColor    string            `json:"background-color"`
	CompressionQuality int               `json:"compression-quality"`
	Alt                string            `json:"alt"`
	Preset             string            `json:"preset"`
	HTML               map[string]string `json:"attributes"`
}

// Key returns the deterministic serialization of a used in cache keys.
func (a Attributes) Key() string {
	b, err := json.Marshal(a)
	if err != nil {
		// Only strings, ints and bools; Marshal cannot fail.
		panic(fmt.Sprintf("responsive: marshalling attributes: %v", err))
	}
	return string(b)
}

// Background returns the parsed background colour, if one is set.
func (a Attributes) Background() (color.Color, bool) {
	if a.BackgroundColor == "" {
		return nil, false
	}
	c, err := ParseHexColor(a.BackgroundColor)
	if err != nil {
		return nil, false
	}
	return c, true
}

// Quality returns the compression quality for f.
func (a Attributes) Quality(f Format) int {
	if a.CompressionQuality > 0 {
		return a.CompressionQuality
	}
	return f.DefaultQuality()
}

// Collator merges instance attributes, named presets, the global image
// configuration and the built-in fallbacks into effective attributes.
type Collator struct {
	defaults map[string]any
	presets  map[string]map[string]any
	logger   *slog.Logger
}

// NewCollator creates a Collator for the given image configuration. Preset
// names and option keys are matched case-insensitively.
func NewCollator(cfg config.ImageConfig, logger *slog.Logger) *Collator {
	if logger == nil {
		logger = slog.Default()
	}
	presets := make(map[string]map[string]any, len(cfg.Presets))
	for name, opts := range cfg.Presets {
		presets[strings.ToLower(name)] = lowerKeys(opts)
	}
	return &Collator{
		defaults: cfg.Options(),
		presets:  presets,
		logger:   logger,
	}
}

// Presets returns the configured preset names and their options.
func (c *Collator) Presets() map[string]map[string]any {
	return c.presets
}

type layer struct {
	name   string
	values map[string]any
}

var fallbackLayer = layer{
	name: "fallback",
	values: map[string]any{
		OptLoading:  DefaultLoading,
		OptMinWidth: DefaultMinWidth,
		OptNumSteps: DefaultNumSteps,
		OptHiDPI:    false,
	},
}

// Collate computes the effective attributes for one image. For every
// recognized option the first layer that sets a valid value wins: instance,
// preset, configuration, fallback. Invalid values are logged and skipped.
func (c *Collator) Collate(raw RawAttributes) Attributes {
	instance := make(map[string]any, len(raw.Options))
	for k, v := range raw.Options {
		k = strings.ToLower(k)
		if !recognized[k] {
			c.logger.Warn("ignoring unknown image option", "option", k, "value", v)
			continue
		}
		instance[k] = v
	}

	layers := []layer{{name: "instance", values: instance}}

	var preset string
	if name := strings.ToLower(strings.TrimSpace(cast.ToString(instance[OptPreset]))); name != "" {
		if values, ok := c.presets[name]; ok {
			preset = name
			layers = append(layers, layer{name: "preset " + name, values: values})
		} else {
			c.logger.Warn("preset is not configured", "preset", name)
		}
	}
	layers = append(layers, layer{name: "config", values: c.defaults}, fallbackLayer)

	attrs := Attributes{
		MinWidth:           resolve(c.logger, layers, OptMinWidth, cast.ToIntE, positive),
		MaxWidth:           resolve(c.logger, layers, OptMaxWidth, cast.ToIntE, positive),
		NumSteps:           resolve(c.logger, layers, OptNumSteps, cast.ToIntE, nonNegative),
		HiDPI:              resolve(c.logger, layers, OptHiDPI, toBool, nil),
		Frame:              resolve(c.logger, layers, OptFrame, toLowerString, validFrame),
		Loading:            resolve(c.logger, layers, OptLoading, toLowerString, validLoading),
		BackgroundColor:    resolve(c.logger, layers, OptBackgroundColor, toLowerString, validColor),
		CompressionQuality: resolve(c.logger, layers, OptCompressionQuality, cast.ToIntE, validQuality),
		Alt:                resolve(c.logger, layers, OptAlt, cast.ToStringE, nil),
		Preset:             preset,
		HTML:               make(map[string]string, len(raw.HTML)+1),
	}
	if attrs.Frame == "none" {
		attrs.Frame = ""
	}

	for k, v := range raw.HTML {
		attrs.HTML[strings.ToLower(k)] = v
	}
	if preset != "" {
		attrs.HTML["class"] = strings.TrimSpace(attrs.HTML["class"] + " " + PresetClassPrefix + preset)
	}
	return attrs
}

// resolve returns the value of key from the first layer holding a valid one.
func resolve[T any](logger *slog.Logger, layers []layer, key string, conv func(any) (T, error), check func(T) error) T {
	for _, l := range layers {
		raw, ok := l.values[key]
		if !ok {
			continue
		}
		v, err := conv(raw)
		if err == nil && check != nil {
			err = check(v)
		}
		if err != nil {
			logger.Warn("ignoring invalid image option", "option", key, "value", raw, "layer", l.name, "err", err)
			continue
		}
		return v
	}
	var zero T
	return zero
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// toBool treats an empty string as true so that a bare HTML attribute such as
// fn-responsive-hidpi enables the option.
func toBool(v any) (bool, error) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return true, nil
	}
	return cast.ToBoolE(v)
}

func toLowerString(v any) (string, error) {
	s, err := cast.ToStringE(v)
	return strings.ToLower(strings.TrimSpace(s)), err
}

func positive(n int) error {
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func nonNegative(n int) error {
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

func validQuality(n int) error {
	if n < 1 || n > 100 {
		return fmt.Errorf("must be between 1 and 100, got %d", n)
	}
	return nil
}

func validFrame(s string) error {
	switch s {
	case "figure", "div", "none", "":
		return nil
	}
	return fmt.Errorf("must be figure, div or none, got %q", s)
}

func validLoading(s string) error {
	switch s {
	case "lazy", "eager", "auto":
		return nil
	}
	return fmt.Errorf("must be lazy, eager or auto, got %q", s)
}

func validColor(s string) error {
	_, err := ParseHexColor(s)
	return err
}
