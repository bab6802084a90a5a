// Package styles holds the preset index and the additive field merge rule.
package styles

import (
	"sort"
	"strings"
)

// DefaultPresetName is the preset every index starts with.
const DefaultPresetName = "none"

// Preset is a named pair of default field values.
type Preset struct {
	Artist string `yaml:"artist" json:"artist"`
	Style  string `yaml:"style" json:"style"`
}

// Index maps preset names to presets. An Index is never modified after
// Build returns, so it may be shared between goroutines.
type Index struct {
	presets map[string]Preset
	names   []string
}

// Defaults returns the built-in preset mapping.
func Defaults() map[string]Preset {
	return map[string]Preset{
		DefaultPresetName: {},
	}
}

// Build merges overrides over defaults. An override with the same name
// replaces the default entry whole; fields are not merged.
func Build(defaults, overrides map[string]Preset) *Index {
	presets := make(map[string]Preset, len(defaults)+len(overrides))
	for name, p := range defaults {
		presets[name] = p
	}
	for name, p := range overrides {
		presets[name] = p
	}

	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Index{presets: presets, names: names}
}

// Lookup returns the named preset, or the zero Preset when name is unknown.
func (x *Index) Lookup(name string) Preset {
	if x == nil {
		return Preset{}
	}
	return x.presets[name]
}

// Has reports whether name is a known preset.
func (x *Index) Has(name string) bool {
	if x == nil {
		return false
	}
	_, ok := x.presets[name]
	return ok
}

// Names returns the preset names in sorted order.
func (x *Index) Names() []string {
	if x == nil {
		return nil
	}
	out := make([]string, len(x.names))
	copy(out, x.names)
	return out
}

// Len returns the number of presets.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.presets)
}

// Combine merges a caller-supplied value with a preset value. Both are
// trimmed; when both are non-empty the additive value comes first,
// separated by ", ".
func Combine(additive, preset string) string {
	additive = strings.TrimSpace(additive)
	preset = strings.TrimSpace(preset)
	switch {
	case additive != "" && preset != "":
		return additive + ", " + preset
	case additive != "":
		return additive
	default:
		return preset
	}
}
