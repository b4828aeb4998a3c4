// Package config provides configuration loading and access for eventcore.
//
// Configuration can come from YAML or JSON files, or be constructed
// programmatically from maps. The Config type offers type-safe accessors
// with sensible defaults for missing or mistyped values; SettingsFrom
// narrows a Config to the typed knobs the dispatcher understands.
package config
