package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/IntentMarket/internal/adapter/ws"
	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/negotiation"
	"github.com/Strob0t/IntentMarket/internal/port/broadcast"
	"github.com/Strob0t/IntentMarket/internal/port/cache"
	"github.com/Strob0t/IntentMarket/internal/port/database"
	"github.com/Strob0t/IntentMarket/internal/port/messagequeue"
	"github.com/Strob0t/IntentMarket/internal/secrets"
)

// fallbackTTL bounds how long a last-known-good listing is kept for
// degraded reads.
const fallbackTTL = time.Hour

// Sealer encrypts and decrypts private intent payloads.
type Sealer interface {
	Enabled() bool
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// IntentService handles intent creation, listing with redaction and
// intent status transitions.
type IntentService struct {
	store  database.Store
	queue  messagequeue.Queue
	hub    broadcast.Broadcaster
	cache  cache.Cache
	sealer Sealer
}

// NewIntentService creates a new IntentService. cache may be nil, which
// disables degraded reads.
func NewIntentService(store database.Store, queue messagequeue.Queue, hub broadcast.Broadcaster, c cache.Cache, sealer Sealer) *IntentService {
	return &IntentService{store: store, queue: queue, hub: hub, cache: c, sealer: sealer}
}

// Create validates req and stores a new open intent. Private intents have
// their title, description and budget sealed; the returned intent is the
// poster's own revealed view.
func (s *IntentService) Create(ctx context.Context, req intent.CreateRequest) (*intent.Intent, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	in := &intent.Intent{
		PosterKey:      req.PosterKey,
		PosterName:     req.PosterName,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Urgency:        req.Urgency,
		Budget:         req.Budget,
		Requirements:   req.Requirements,
		IsPrivate:      req.IsPrivate,
		SourcePlatform: req.SourcePlatform,
		SourceURL:      req.SourceURL,
	}

	fields := intent.SealedFields{Title: req.Title, Description: req.Description, Budget: req.Budget}
	if req.IsPrivate {
		if err := s.seal(in, fields); err != nil {
			return nil, err
		}
	}

	created, err := s.store.CreateIntent(ctx, in)
	if err != nil {
		return nil, err
	}

	slog.Info("intent created",
		"intent_id", created.ID,
		"category", created.Category,
		"private", created.IsPrivate,
		"source", created.SourcePlatform,
	)

	s.publish(ctx, messagequeue.SubjectIntentCreated, messagequeue.IntentCreatedPayload{
		IntentID:       created.ID,
		Category:       created.Category,
		SourcePlatform: created.SourcePlatform,
	})
	ev := ws.IntentCreatedEvent{IntentID: created.ID, Category: created.Category, SourcePlatform: created.SourcePlatform}
	if !created.IsPrivate {
		ev.Title = created.Title
	}
	s.hub.BroadcastEvent(ctx, ws.EventIntentCreated, ev)

	view := created.Revealed(fields)
	return &view, nil
}

func (s *IntentService) seal(in *intent.Intent, fields intent.SealedFields) error {
	if s.sealer == nil || !s.sealer.Enabled() {
		return fmt.Errorf("private intents are not available: %w", domain.ErrValidation)
	}
	plain, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode private fields: %w", err)
	}
	sealed, err := s.sealer.Seal(plain)
	if err != nil {
		return fmt.Errorf("seal private fields: %w", err)
	}
	in.Title = intent.RedactedTitle
	in.Description = intent.RedactedDescription
	in.Budget = ""
	in.EncryptedData = sealed
	in.EncryptionMethod = secrets.SealMethod
	return nil
}

// present returns the view of in that viewerKey is allowed to see.
func (s *IntentService) present(in *intent.Intent, viewerKey string) intent.Intent {
	if !in.IsPrivate || !in.VisibleTo(viewerKey) || in.EncryptedData == "" || s.sealer == nil {
		return in.Redacted()
	}
	plain, err := s.sealer.Open(in.EncryptedData)
	if err != nil {
		slog.Warn("private intent cannot be unsealed", "intent_id", in.ID, "error", err)
		return in.Redacted()
	}
	var fields intent.SealedFields
	if err := json.Unmarshal(plain, &fields); err != nil {
		slog.Warn("private intent payload is malformed", "intent_id", in.ID, "error", err)
		return in.Redacted()
	}
	return in.Revealed(fields)
}

// Get returns an intent as seen by viewerKey.
func (s *IntentService) Get(ctx context.Context, id, viewerKey string) (*intent.Intent, error) {
	in, err := s.store.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.present(in, viewerKey)
	return &view, nil
}

// List returns intents matching filter as seen by viewerKey. When the
// store is unreachable the last good listing for the same filter is
// served and stale is true; with nothing cached an empty list is served.
func (s *IntentService) List(ctx context.Context, filter intent.ListFilter, viewerKey string) (items []intent.Intent, stale bool, err error) {
	key := fmt.Sprintf("intents:%s:%s:%s:%d", filter.Status, filter.Category, filter.PosterKey, filter.Limit)

	rows, err := s.store.ListIntents(ctx, filter)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			return nil, false, err
		}
		slog.Warn("intent store unavailable, serving fallback", "error", err)
		return s.fallback(ctx, key), true, nil
	}

	out := make([]intent.Intent, len(rows))
	shared := make([]intent.Intent, len(rows))
	for i := range rows {
		out[i] = s.present(&rows[i], viewerKey)
		shared[i] = rows[i].Redacted()
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, shared, fallbackTTL); err != nil {
			slog.Debug("intent list cache write failed", "error", err)
		}
	}
	return out, false, nil
}

func (s *IntentService) fallback(ctx context.Context, key string) []intent.Intent {
	if s.cache == nil {
		return []intent.Intent{}
	}
	items, ok, err := cache.GetJSON[[]intent.Intent](ctx, s.cache, key)
	if err != nil || !ok || items == nil {
		return []intent.Intent{}
	}
	return items
}

// UpdateStatus moves an intent to status. Unknown targets fail with
// domain.ErrInvalidStatus and leave the row untouched.
func (s *IntentService) UpdateStatus(ctx context.Context, id string, status intent.Status, viewerKey string) (*intent.Intent, error) {
	cur, err := s.store.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := intent.Transition(cur, status)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateIntentStatus(ctx, id, next.Status)
	if err != nil {
		return nil, err
	}

	slog.Info("intent status changed", "intent_id", id, "from", cur.Status, "to", updated.Status)
	s.publish(ctx, messagequeue.SubjectIntentStatus, messagequeue.IntentStatusPayload{
		IntentID: id,
		Status:   string(updated.Status),
	})
	s.hub.BroadcastEvent(ctx, ws.EventIntentStatus, ws.IntentStatusEvent{IntentID: id, Status: string(updated.Status)})

	view := s.present(updated, viewerKey)
	return &view, nil
}

// NegotiationLog returns the ordered transcript of an intent's matches.
func (s *IntentService) NegotiationLog(ctx context.Context, id, viewerKey string) ([]negotiation.Entry, error) {
	in, err := s.store.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.ListMatchesByIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.present(in, viewerKey)
	return negotiation.Build(&view, matches), nil
}

// publish sends an event on the queue. Publish failures are logged; the
// triggering write has already succeeded.
func (s *IntentService) publish(ctx context.Context, subject string, payload any) {
	publishJSON(ctx, s.queue, subject, payload)
}

func publishJSON(ctx context.Context, q messagequeue.Queue, subject string, payload any) {
	if q == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event", "subject", subject, "error", err)
		return
	}
	if err := q.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish event failed", "subject", subject, "error", err)
	}
}
