package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pairwise/internal/config"
	"pairwise/internal/domain"
	"pairwise/internal/engine"
	"pairwise/internal/logging"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

type webhookDispatcher struct {
	engine   engine.Engine
	service  string
	webhooks []config.WebhookConfig
	client   *http.Client
	log      *zap.Logger
	interval time.Duration
	mu       sync.Mutex
	cursors  map[int]int64
}

// RunWebhooks delivers new events to the configured webhooks until ctx is
// done. It returns immediately when no webhook is configured.
func RunWebhooks(ctx context.Context, e engine.Engine, logger *zap.Logger) error {
	d := newWebhookDispatcher(e, logger)
	if d == nil {
		return nil
	}
	d.run(ctx)
	return nil
}

func newWebhookDispatcher(e engine.Engine, logger *zap.Logger) *webhookDispatcher {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return nil
	}
	return &webhookDispatcher{
		engine:   e,
		service:  e.Config.Service.ID,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      logging.OrNop(logger).Named("webhooks"),
		interval: defaultWebhookInterval,
		cursors:  make(map[int]int64),
	}
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if !hook.WebhookEnabled() {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	events, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, cursor, "")
	if err != nil {
		d.log.Warn("fetch events failed", zap.Error(err))
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.Type) {
			d.setCursor(idx, evt.ID)
			continue
		}
		if err := d.postEvent(ctx, hook, evt); err != nil {
			d.log.Warn("delivery failed", zap.String("url", hook.URL), zap.Int64("event", evt.ID), zap.Error(err))
			return
		}
		d.setCursor(idx, evt.ID)
	}
}

// cursorFor starts each hook at the current end of the log so a restart does
// not replay history.
func (d *webhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(ctx, "")
	if err != nil {
		d.log.Warn("init cursor failed", zap.Error(err))
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	GroupToken string          `json:"group_token,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func (d *webhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	payload := json.RawMessage([]byte("{}"))
	var raw string
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			payload = json.RawMessage([]byte(evt.Payload))
		} else {
			raw = evt.Payload
		}
	}
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		GroupToken: evt.GroupToken,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
		PayloadRaw: raw,
	})
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pairwise-Event", evt.Type)
	req.Header.Set("X-Pairwise-Delivery", uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s|%s|%d", d.service, hook.URL, evt.ID))).String())
	req.Header.Set("X-Pairwise-Service", d.service)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Pairwise-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
