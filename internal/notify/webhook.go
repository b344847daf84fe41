package notify

import (
	"context"
	"net/http"
	"time"

	"bmsengine/internal/logger"
	"bmsengine/internal/models"
)

// WebhookOptions tune the chat webhook channels.
type WebhookOptions struct {
	Timeout time.Duration
	Client  *http.Client
	Now     func() time.Time
}

func (o *WebhookOptions) defaults() {
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// subjectField names the identifier shown in chat messages.
func subjectField(c *models.Candidate) (string, string) {
	if id := c.EquipmentID(); id != "" {
		return "Equipment ID", id
	}
	return "Location ID", orDefault(c.LocationID(), "Unknown")
}

// SlackChannel posts an attachment to an incoming webhook. Success is 200.
type SlackChannel struct {
	url  string
	opts WebhookOptions
}

func NewSlackChannel(url string, opts WebhookOptions) *SlackChannel {
	opts.defaults()
	return &SlackChannel{url: url, opts: opts}
}

func (s *SlackChannel) Name() string { return "slack" }

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	TS     int64        `json:"ts"`
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

func (s *SlackChannel) payload(c *models.Candidate) slackPayload {
	color := "warning"
	if c.Severity == models.SeverityCritical {
		color = "danger"
	}
	label, value := subjectField(c)

	return slackPayload{Attachments: []slackAttachment{{
		Color: color,
		Title: string(c.Severity) + " Alert - " + TitleCase(c.Kind),
		Text:  c.Message,
		Fields: []slackField{
			{Title: label, Value: value, Short: true},
			{Title: "Timestamp", Value: c.Timestamp.Format(time.RFC3339), Short: true},
			{Title: "Source", Value: TitleCase(string(c.Source())), Short: true},
		},
		Footer: footer,
		TS:     s.opts.Now().Unix(),
	}}}
}

func (s *SlackChannel) Send(ctx context.Context, c *models.Candidate) Result {
	return sendWebhook(ctx, s.Name(), s.url, s.opts, s.payload(c), http.StatusOK)
}

// DiscordChannel posts an embed to a Discord webhook. Success is 204.
type DiscordChannel struct {
	url  string
	opts WebhookOptions
}

func NewDiscordChannel(url string, opts WebhookOptions) *DiscordChannel {
	opts.defaults()
	return &DiscordChannel{url: url, opts: opts}
}

func (d *DiscordChannel) Name() string { return "discord" }

const (
	discordRed    = 0xff0000
	discordOrange = 0xffa500
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Footer      discordFooter  `json:"footer"`
	Timestamp   string         `json:"timestamp"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (d *DiscordChannel) payload(c *models.Candidate) discordPayload {
	color := discordOrange
	if c.Severity == models.SeverityCritical {
		color = discordRed
	}
	label, value := subjectField(c)

	return discordPayload{Embeds: []discordEmbed{{
		Title:       string(c.Severity) + " Alert",
		Description: c.Message,
		Color:       color,
		Fields: []discordField{
			{Name: label, Value: value, Inline: true},
			{Name: "Alert Type", Value: TitleCase(c.Kind), Inline: true},
			{Name: "Source", Value: TitleCase(string(c.Source())), Inline: true},
		},
		Footer:    discordFooter{Text: footer},
		Timestamp: c.Timestamp.Format(time.RFC3339),
	}}}
}

func (d *DiscordChannel) Send(ctx context.Context, c *models.Candidate) Result {
	return sendWebhook(ctx, d.Name(), d.url, d.opts, d.payload(c), http.StatusNoContent)
}

func sendWebhook(ctx context.Context, name, url string, opts WebhookOptions, payload any, want int) Result {
	log := logger.WithComponent("notify_" + name)

	status, body, err := postJSON(ctx, opts.Client, url, opts.Timeout, payload, nil)
	if err == nil && status != want {
		err = statusError(status, body)
	}
	if err != nil {
		log.Error().Err(err).Msg("Webhook notification failed")
		return Result{Attempts: 1, Err: err}
	}

	log.Info().Msg("Webhook notification sent")
	return Result{Success: true, Attempts: 1}
}
