package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	FollowUpChanged bool
	NewFollowUp     FollowUpConfig

	PromptsChanged bool
	NewPromptsFile string

	// RestartRequired lists the sections that changed but only take effect
	// after a restart.
	RestartRequired []string
}

// Empty reports whether d carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.FollowUpChanged && !d.PromptsChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Interview.FollowUp.MinAnswerRunes != new.Interview.FollowUp.MinAnswerRunes ||
		!slices.Equal(old.Interview.FollowUp.HedgeMarkers, new.Interview.FollowUp.HedgeMarkers) {
		d.FollowUpChanged = true
		d.NewFollowUp = new.Interview.FollowUp
	}

	if old.Prompts.File != new.Prompts.File {
		d.PromptsChanged = true
		d.NewPromptsFile = new.Prompts.File
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !equalServer(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	oldIv, newIv := old.Interview, new.Interview
	oldIv.FollowUp, newIv.FollowUp = FollowUpConfig{}, FollowUpConfig{}
	if !reflect.DeepEqual(oldIv, newIv) {
		d.RestartRequired = append(d.RestartRequired, "interview")
	}
	if old.LLM != new.LLM {
		d.RestartRequired = append(d.RestartRequired, "llm")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if old.Events != new.Events {
		d.RestartRequired = append(d.RestartRequired, "events")
	}
	if old.Transport.InsecureSkipVerify != new.Transport.InsecureSkipVerify ||
		!slices.Equal(old.Transport.OriginPatterns, new.Transport.OriginPatterns) {
		d.RestartRequired = append(d.RestartRequired, "transport")
	}

	return d
}

func equalServer(a, b ServerConfig) bool {
	if a.ListenAddr != b.ListenAddr || a.LogFormat != b.LogFormat || a.ShutdownTimeout != b.ShutdownTimeout {
		return false
	}
	switch {
	case a.TLS == nil && b.TLS == nil:
		return true
	case a.TLS == nil || b.TLS == nil:
		return false
	}
	return *a.TLS == *b.TLS
}
