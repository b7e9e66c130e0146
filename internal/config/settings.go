package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// fileSettings mirrors the optional TOML settings file. Environment variables win over it.
//
//	[chat]
//	greeting = "..."
//	apology = "..."
//	export_prefix = "gemini_chat"
//	system_prompt = ""
//	show_diagnostics = true
//
//	[defaults]
//	model = "gemini-2.0-flash"
//	temperature = 0.7
type fileSettings struct {
	Chat struct {
		Greeting        string `toml:"greeting"`
		Apology         string `toml:"apology"`
		ExportPrefix    string `toml:"export_prefix"`
		SystemPrompt    string `toml:"system_prompt"`
		ShowDiagnostics *bool  `toml:"show_diagnostics"`
	} `toml:"chat"`
	Defaults struct {
		Model       string   `toml:"model"`
		Temperature *float64 `toml:"temperature"`
	} `toml:"defaults"`
}

func loadSettingsFile(path string) (fileSettings, error) {
	var settings fileSettings
	if path == "" {
		return settings, nil
	}

	meta, err := toml.DecodeFile(path, &settings)
	if err != nil {
		return fileSettings{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fileSettings{}, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}
	return settings, nil
}
