package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by "***".
// Use this when logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Server.APIKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy. RPC URLs often embed provider keys.
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	if cfg.Chain.AltRPCURLs != nil {
		out.Chain.AltRPCURLs = make(map[string]string, len(cfg.Chain.AltRPCURLs))
		for k := range cfg.Chain.AltRPCURLs {
			out.Chain.AltRPCURLs[k] = redacted
		}
	}

	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
