package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"trackline/internal/config"
	"trackline/internal/domain"
	"trackline/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookDispatcher tails the activity log and POSTs new entries to each
// configured hook. Every hook keeps its own cursor so a slow endpoint does
// not hold back the others.
type webhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	mu       sync.Mutex
	cursors  map[int]int64
}

// StartWebhookDispatcher begins delivering activity records to the configured
// webhooks. It is a no-op when none are configured.
func StartWebhookDispatcher(e engine.Engine) {
	if e.Config == nil || len(e.Config.Server.Webhooks) == 0 {
		return
	}
	d := &webhookDispatcher{
		engine:   e,
		webhooks: e.Config.Server.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		cursors:  make(map[int]int64),
	}
	go d.run()
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll()
		<-ticker.C
	}
}

func (d *webhookDispatcher) dispatchAll() {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(idx int, hook config.WebhookConfig) {
	ctx := context.Background()
	cursor := d.cursorFor(idx)
	activities, err := d.engine.Repo.ActivitiesAfter(ctx, defaultWebhookBatch, cursor, "")
	if err != nil {
		log.Printf("webhook: fetch activities failed: %v", err)
		return
	}
	for _, a := range activities {
		if err := d.postActivity(ctx, hook, a); err != nil {
			log.Printf("webhook: deliver to %s failed: %v", hook.URL, err)
			return
		}
		d.setCursor(idx, a.ID)
	}
}

func (d *webhookDispatcher) cursorFor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	// Start at the tip; history before startup is not replayed.
	cur, err := d.engine.Repo.LatestActivityID(context.Background())
	if err != nil {
		log.Printf("webhook: init cursor failed: %v", err)
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

type webhookActivity struct {
	ID          int64           `json:"id"`
	TS          string          `json:"ts"`
	Action      string          `json:"action"`
	TargetID    string          `json:"target_id,omitempty"`
	ActorID     string          `json:"actor_id"`
	WorkspaceID string          `json:"workspace_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (d *webhookDispatcher) postActivity(ctx context.Context, hook config.WebhookConfig, a domain.Activity) error {
	meta := json.RawMessage([]byte("{}"))
	if a.Metadata != "" && json.Valid([]byte(a.Metadata)) {
		meta = json.RawMessage([]byte(a.Metadata))
	}
	body := webhookActivity{
		ID:          a.ID,
		TS:          a.TS,
		Action:      a.Action,
		TargetID:    a.TargetID,
		ActorID:     a.ActorID,
		WorkspaceID: a.WorkspaceID,
		Metadata:    meta,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trackline-Action", a.Action)
	req.Header.Set("X-Trackline-Delivery", fmt.Sprintf("%d", a.ID))
	res, err := d.client.Do(req)
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
