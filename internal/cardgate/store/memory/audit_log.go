package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cardgate/cardgate/internal/cardgate/store"
)

const defaultQueryLimit = 100

// AuditLog is an in-memory append-only decision log for tests and dev
// environments.
type AuditLog struct {
	mu        sync.Mutex
	decisions []store.Decision
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (l *AuditLog) Record(_ context.Context, d store.Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decisions = append(l.decisions, d)
	return nil
}

func (l *AuditLog) ListDecisions(_ context.Context, q store.DecisionQuery) ([]store.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []store.Decision
	for _, d := range l.decisions {
		if q.CardID != "" && d.CardID != q.CardID {
			continue
		}
		if q.AccessPointID != "" && d.AccessPointID != q.AccessPointID {
			continue
		}
		if !q.From.IsZero() && d.OccurredAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !d.OccurredAt.Before(q.To) {
			continue
		}
		matched = append(matched, d)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]store.Decision, len(matched))
	copy(out, matched)
	return out, nil
}

// Decisions returns a copy of everything recorded. Test-only helper.
func (l *AuditLog) Decisions() []store.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]store.Decision, len(l.decisions))
	copy(out, l.decisions)
	return out
}
