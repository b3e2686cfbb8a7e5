package config

import "time"

// ConfigDiff describes what changed between two configs.
// Live-applicable changes are reported per field; the rest only set
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// StreamChanged is set when turn_timeout or chunk_delay changed.
	StreamChanged  bool
	NewTurnTimeout time.Duration
	NewChunkDelay  time.Duration

	// DefaultProviderChanged is set when the default provider id changed.
	DefaultProviderChanged bool
	NewDefaultProvider     string

	// OriginChanged is set when the CORS origin changed. It applies to the
	// next request.
	OriginChanged    bool
	NewAllowedOrigin string

	// CredentialsChanged lists provider ids whose key, base URL or model changed,
	// including added and removed entries.
	CredentialsChanged []string

	// RestartRequired is set for changes that cannot be applied live, such as
	// the listen address or TLS files.
	RestartRequired bool
}

// IsEmpty reports whether nothing changed.
func (d ConfigDiff) IsEmpty() bool {
	return !d.LogLevelChanged && !d.StreamChanged && !d.DefaultProviderChanged &&
		!d.OriginChanged && len(d.CredentialsChanged) == 0 && !d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Stream != new.Stream {
		d.StreamChanged = true
		d.NewTurnTimeout = new.Stream.TurnTimeout
		d.NewChunkDelay = new.Stream.ChunkDelay
	}
	if old.Providers.Default != new.Providers.Default {
		d.DefaultProviderChanged = true
		d.NewDefaultProvider = new.Providers.Default
	}

	for id, o := range old.Providers.LLM {
		n, ok := new.Providers.LLM[id]
		if !ok || entryChanged(o, n) {
			d.CredentialsChanged = append(d.CredentialsChanged, id)
		}
	}
	for id := range new.Providers.LLM {
		if _, ok := old.Providers.LLM[id]; !ok {
			d.CredentialsChanged = append(d.CredentialsChanged, id)
		}
	}

	if old.Server.AllowedOrigin != new.Server.AllowedOrigin {
		d.OriginChanged = true
		d.NewAllowedOrigin = new.Server.AllowedOrigin
	}
	if old.Server.ListenAddr != new.Server.ListenAddr ||
		!sameTLS(old.Server.TLS, new.Server.TLS) ||
		entryChanged(old.Providers.TTS, new.Providers.TTS) {
		d.RestartRequired = true
	}
	return d
}

func entryChanged(a, b ProviderEntry) bool {
	return a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model
}

func sameTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
