package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrWong99/intervue/internal/config"
)

// envPrefix namespaces every environment override, e.g.
// INTERVUE_PROVIDERS_LLM_API_KEY.
const envPrefix = "INTERVUE"

const (
	keyListenAddr  = "server.listen_addr"
	keyLogLevel    = "server.log_level"
	keyLogFormat   = "server.log_format"
	keyLLMAPIKey   = "providers.llm.api_key"
	keySTTAPIKey   = "providers.stt.api_key"
	keyPostgresDSN = "storage.postgres_dsn"
	keySQLitePath  = "storage.sqlite_path"
	keyNATSURL     = "events.nats_url"
)

// bindOverrides registers the environment variables and persistent flags
// that may override values from the config file. Secrets are only accepted
// from the environment.
func bindOverrides(v *viper.Viper, root *cobra.Command) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{
		keyListenAddr, keyLogLevel, keyLogFormat,
		keyLLMAPIKey, keySTTAPIKey,
		keyPostgresDSN, keySQLitePath, keyNATSURL,
	} {
		_ = v.BindEnv(key)
	}
	_ = v.BindPFlag(keyLogLevel, root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag(keyLogFormat, root.PersistentFlags().Lookup("log-format"))
}

// applyOverrides copies every override that is set onto cfg.
func applyOverrides(v *viper.Viper, cfg *config.Config) {
	set := func(key string, dst *string) {
		if v.IsSet(key) {
			if s := v.GetString(key); s != "" {
				*dst = s
			}
		}
	}

	set(keyListenAddr, &cfg.Server.ListenAddr)
	set(keyLLMAPIKey, &cfg.Providers.LLM.APIKey)
	set(keySTTAPIKey, &cfg.Providers.STT.APIKey)
	set(keyPostgresDSN, &cfg.Storage.PostgresDSN)
	set(keySQLitePath, &cfg.Storage.SQLitePath)
	set(keyNATSURL, &cfg.Events.NATSURL)

	var level, format string
	set(keyLogLevel, &level)
	set(keyLogFormat, &format)
	if level != "" {
		cfg.Server.LogLevel = config.LogLevel(level)
	}
	if format != "" {
		cfg.Server.LogFormat = config.LogFormat(format)
	}
}
