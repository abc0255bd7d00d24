package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends run reports to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. A nil client gets a 5s timeout.
func NewNotifier(botToken, chatID string, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  defaultAPIBase,
		client:   client,
	}
}

// WithBaseURL points the notifier at another bot API host.
func (n *Notifier) WithBaseURL(base string) *Notifier {
	n.baseURL = strings.TrimRight(base, "/")
	return n
}

// Configured reports whether both token and chat are set.
func (n *Notifier) Configured() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

// PublishOutcome posts a Markdown report of one run.
func (n *Notifier) PublishOutcome(ctx context.Context, outcome domain.RunOutcome) error {
	return n.send(ctx, FormatOutcome(outcome))
}

// FormatOutcome renders the message body for a run.
func FormatOutcome(o domain.RunOutcome) string {
	var b strings.Builder
	title := o.JobKey
	if title == "" {
		title = o.Source
	}
	fmt.Fprintf(&b, "*MediaTrend* `%s`\n", title)
	fmt.Fprintf(&b, "%s -> %s (%s)\n", o.Source, o.Target, o.Kind)
	fmt.Fprintf(&b, "scraped %d, matched %d, unmatched %d\n", o.Scraped, o.Matched, o.Unmatched)
	fmt.Fprintf(&b, "added %d, skipped %d, failed %d", o.Added, o.Skipped, o.Failed)
	if o.Duration > 0 {
		fmt.Fprintf(&b, "\ntook %s", o.Duration.Round(time.Second))
	}
	if o.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", o.Error)
	}
	return b.String()
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if !n.Configured() || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}
