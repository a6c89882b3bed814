package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
	"github.com/pulsewatch/pulsewatch/monitor/internal/config"
)

const deliveryTimeout = 10 * time.Second

// Transition names the kind of banner change a Notification reports.
type Transition string

const (
	TransitionFiring     Transition = "firing"     // none -> warning or error
	TransitionEscalated  Transition = "escalated"  // warning -> error
	TransitionDowngraded Transition = "downgraded" // error -> warning
	TransitionResolved   Transition = "resolved"   // warning or error -> none
)

// transitionOf returns the transition from prev to cur. Callers guarantee
// prev != cur.
func transitionOf(prev, cur compute.Severity) Transition {
	switch {
	case cur == compute.SeverityNone:
		return TransitionResolved
	case prev == compute.SeverityNone:
		return TransitionFiring
	case cur == compute.SeverityError:
		return TransitionEscalated
	default:
		return TransitionDowngraded
	}
}

// Notification is one banner change of one source.
type Notification struct {
	ID         string           `json:"id"`
	SourceID   string           `json:"source_id"`
	Transition Transition       `json:"transition"`
	Banner     compute.Severity `json:"banner"`
	Score      float64          `json:"score"`
	Tier       compute.Tier     `json:"tier"`
	Alerts     []compute.Alert  `json:"alerts"`
	At         time.Time        `json:"at"`
}

// Notifier tracks the banner of every source and delivers webhook
// notifications when it changes.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	mu       sync.Mutex
	webhooks []config.WebhookConfig
	cooldown time.Duration
	banners  map[string]compute.Severity // last delivered banner per source
	recent   *cache.Cache                // "source:banner" keys delivered within cooldown

	client *http.Client
	now    func() time.Time // injectable for deterministic tests
}

// New creates a Notifier from the notify configuration.
// A Notifier without webhooks still tracks banners; it just delivers nowhere.
func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		webhooks: cfg.Webhooks,
		cooldown: cfg.Cooldown,
		banners:  make(map[string]compute.Severity),
		recent:   cache.New(cache.NoExpiration, time.Minute),
		client:   &http.Client{Timeout: deliveryTimeout},
		now:      time.Now,
	}
}

// Reconfigure replaces the webhook targets and cooldown. Banner state and
// cooldown history are kept so a reload does not re-announce known banners.
func (n *Notifier) Reconfigure(cfg config.NotifyConfig) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.webhooks = cfg.Webhooks
	n.cooldown = cfg.Cooldown
}

// Forget drops the banner state of sourceID.
func (n *Notifier) Forget(sourceID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.banners, sourceID)
}

// Observe compares the banner of r with the last banner delivered for
// sourceID.
// When it changed, and the same banner was not already announced for the
// source within the cooldown, a Notification is built and delivered to
// every webhook before Observe returns.
//
// Observe returns nil, nil when nothing was sent. Delivery failures do not
// stop delivery to the remaining targets; they are combined into the
// returned error alongside the Notification that was attempted.
// Reports computed from a reused snapshot must not be passed to Observe.
func (n *Notifier) Observe(ctx context.Context, sourceID string, r compute.Report) (*Notification, error) {
	n.mu.Lock()
	prev := n.banners[sourceID]
	cur := r.Banner
	if prev == cur {
		n.mu.Unlock()
		return nil, nil
	}

	// A suppressed change leaves the delivered banner untouched, so the
	// change is announced once the cooldown for cur has expired.
	key := sourceID + ":" + string(cur)
	if n.cooldown > 0 {
		if _, found := n.recent.Get(key); found {
			n.mu.Unlock()
			slog.Debug("notify: suppressed by cooldown",
				"source", sourceID, "banner", cur, "delivered", prev)
			return nil, nil
		}
		n.recent.Set(key, struct{}{}, n.cooldown)
	}
	n.banners[sourceID] = cur
	webhooks := n.webhooks
	n.mu.Unlock()

	note := &Notification{
		ID:         uuid.NewString(),
		SourceID:   sourceID,
		Transition: transitionOf(prev, cur),
		Banner:     cur,
		Score:      r.Score,
		Tier:       r.Tier,
		Alerts:     r.Alerts,
		At:         n.now().UTC(),
	}

	slog.Info("notify: banner changed",
		"source", sourceID,
		"transition", note.Transition,
		"banner", cur,
		"score", r.Score,
	)
	return note, n.deliver(ctx, webhooks, note)
}
