package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

// ProviderWhatsApp namespaces WhatsApp Cloud message ids in processed_events.
const ProviderWhatsApp = "whatsapp"

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProcessedStore claims inbound message ids so a webhook redelivery is not
// turned into a second order. Claims are kept for a retention window and
// pruned afterwards.
type ProcessedStore struct {
	db  execer
	now func() time.Time
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newProcessedStore(pool)
}

func newProcessedStore(db execer) *ProcessedStore {
	if db == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{db: db, now: time.Now}
}

// MarkProcessed claims eventID for provider. It returns false when the id was
// claimed before. Messages without an id are always fresh.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return true, nil
	}
	ct, err := s.db.Exec(ctx, `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed %s/%s: %w", provider, eventID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// Prune drops claims older than keep and reports how many were removed.
func (s *ProcessedStore) Prune(ctx context.Context, keep time.Duration) (int64, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("events: prune window must be positive, got %s", keep)
	}
	cutoff := s.now().Add(-keep).UTC()
	ct, err := s.db.Exec(ctx, `DELETE FROM processed_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("events: prune processed: %w", err)
	}
	return ct.RowsAffected(), nil
}

// RunRetention prunes every interval until ctx is done.
func (s *ProcessedStore) RunRetention(ctx context.Context, interval, keep time.Duration, logger *logging.Logger) {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 || keep <= 0 {
		logger.Warn("processed event retention disabled", "interval", interval.String(), "keep", keep.String())
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx, keep)
			if err != nil {
				logger.Warn("failed to prune processed events", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned processed events", "rows", n)
			}
		}
	}
}
