package notify

import (
	"net/http"

	"bmsengine/internal/config"
)

// Argument keys and their environment fallbacks.
const (
	ArgRecipientEmail    = "recipient_email"
	ArgAPIBaseURL        = "api_base_url"
	ArgSlackWebhookURL   = "slack_webhook_url"
	ArgDiscordWebhookURL = "discord_webhook_url"
	ArgAlertsDB          = "alerts_db"

	EnvRecipient      = "DEFAULT_RECIPIENT"
	EnvBridgeURL      = "NEXT_PUBLIC_BRIDGE_URL"
	EnvSlackWebhook   = "SLACK_WEBHOOK_URL"
	EnvDiscordWebhook = "DISCORD_WEBHOOK_URL"
)

// Settings are the per-invocation notification targets.
type Settings struct {
	RecipientEmail    string
	APIBaseURL        string
	SlackWebhookURL   string
	DiscordWebhookURL string
	AlertsDB          string
}

// ResolveSettings reads each setting from args, then the environment, then its default.
func ResolveSettings(args config.Args) Settings {
	return Settings{
		RecipientEmail:    args.Resolve(ArgRecipientEmail, EnvRecipient, ""),
		APIBaseURL:        args.Resolve(ArgAPIBaseURL, EnvBridgeURL, DefaultAPIBaseURL),
		SlackWebhookURL:   args.Resolve(ArgSlackWebhookURL, EnvSlackWebhook, ""),
		DiscordWebhookURL: args.Resolve(ArgDiscordWebhookURL, EnvDiscordWebhook, ""),
		AlertsDB:          args.Resolve(ArgAlertsDB, "", ""),
	}
}

// Builder turns settings into channels. Channels without a target are left out.
type Builder struct {
	cfg    config.NotifyConfig
	client *http.Client
}

func NewBuilder(cfg config.NotifyConfig, client *http.Client) *Builder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Builder{cfg: cfg, client: client}
}

func (b *Builder) Channels(s Settings) []Channel {
	var out []Channel
	if s.RecipientEmail != "" {
		out = append(out, NewAPIChannel(s.APIBaseURL, s.RecipientEmail, APIOptions{
			Timeout:  b.cfg.APITimeout,
			Attempts: b.cfg.RetryAttempts,
			Backoff:  b.cfg.RetryBackoff,
			Client:   b.client,
		}))
	}

	webhook := WebhookOptions{Timeout: b.cfg.WebhookTimeout, Client: b.client}
	if s.SlackWebhookURL != "" {
		out = append(out, NewSlackChannel(s.SlackWebhookURL, webhook))
	}
	if s.DiscordWebhookURL != "" {
		out = append(out, NewDiscordChannel(s.DiscordWebhookURL, webhook))
	}
	return out
}
