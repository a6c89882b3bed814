package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
	"github.com/pulsewatch/pulsewatch/monitor/internal/config"
)

// deliver sends note to all configured targets and combines their errors.
// Targets whose URL environment variable is empty are skipped.
func (n *Notifier) deliver(ctx context.Context, webhooks []config.WebhookConfig, note *Notification) error {
	var errs error
	for _, wh := range webhooks {
		target := wh.URL()
		if target == "" {
			slog.Warn("notify: webhook url not set, skipping", "type", wh.Type, "url_env", wh.URLEnv)
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(ctx, target, note)
		case "teams":
			err = n.sendTeams(ctx, target, note)
		case "dingtalk":
			err = n.sendDingTalk(ctx, target, wh.Secret(), note)
		case "http":
			err = n.sendHTTP(ctx, target, note)
		default:
			err = fmt.Errorf("unknown webhook type %q", wh.Type)
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed",
				"type", wh.Type,
				"source", note.SourceID,
				"err", err,
			)
			errs = multierr.Append(errs, fmt.Errorf("notify: %s: %w", wh.Type, err))
			continue
		}
		slog.Debug("notify: webhook delivered",
			"type", wh.Type,
			"source", note.SourceID,
			"transition", note.Transition,
		)
	}
	return errs
}

func (n *Notifier) sendSlack(ctx context.Context, target string, note *Notification) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s\n%s", bannerLabel(note), headline(note), alertLines(note, "• ")),
	})
	return n.post(ctx, target, body)
}

func (n *Notifier) sendTeams(ctx context.Context, target string, note *Notification) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": strings.TrimPrefix(note.Tier.Color, "#"),
		"summary":    headline(note),
		"title":      fmt.Sprintf("pulsewatch: %s %s", note.SourceID, note.Transition),
		"text":       alertLines(note, "- "),
	}
	body, _ := json.Marshal(payload)
	return n.post(ctx, target, body)
}

func (n *Notifier) sendDingTalk(ctx context.Context, target, secret string, note *Notification) error {
	title := fmt.Sprintf("pulsewatch: %s %s", note.SourceID, note.Transition)
	text := fmt.Sprintf("### %s %s\n\n%s", bannerLabel(note), headline(note), alertLines(note, "- "))
	body, _ := json.Marshal(map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	})
	if secret != "" {
		var err error
		target, err = signDingTalk(target, secret, n.now())
		if err != nil {
			return err
		}
	}
	return n.post(ctx, target, body)
}

func (n *Notifier) sendHTTP(ctx context.Context, target string, note *Notification) error {
	body, _ := json.Marshal(note)
	return n.post(ctx, target, body)
}

// signDingTalk appends the timestamp and sign query parameters required by
// DingTalk robots with signing enabled: base64(HMAC-SHA256(secret,
// timestamp + "\n" + secret)) with the timestamp in milliseconds.
func signDingTalk(target, secret string, at time.Time) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse dingtalk url: %w", err)
	}
	ts := strconv.FormatInt(at.UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "\n" + secret))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	q := u.Query()
	q.Set("timestamp", ts)
	q.Set("sign", sign)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (n *Notifier) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func bannerLabel(note *Notification) string {
	switch note.Banner {
	case compute.SeverityError:
		return "[ERROR]"
	case compute.SeverityWarning:
		return "[WARNING]"
	default:
		return "[RESOLVED]"
	}
}

func headline(note *Notification) string {
	return fmt.Sprintf("%s %s: health score %.1f (%s)",
		note.SourceID, note.Transition, note.Score, note.Tier.Label)
}

func alertLines(note *Notification, bullet string) string {
	if len(note.Alerts) == 0 {
		return "No active alerts."
	}
	var b strings.Builder
	for i, a := range note.Alerts {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(bullet)
		b.WriteString(a.Message)
	}
	return b.String()
}
