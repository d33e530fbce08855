package notification

import (
	"sort"
	"sync"

	"rainout-go/internal/domain"
)

// StatusBoard holds the latest in-app status per state key. Upserts with an
// older UpdatedAt than the stored entry are ignored.
type StatusBoard struct {
	mu       sync.RWMutex
	statuses map[string]*domain.InAppStatus
}

// NewStatusBoard creates an empty board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{statuses: make(map[string]*domain.InAppStatus)}
}

// Upsert stores status unless a newer one is already present.
func (b *StatusBoard) Upsert(status *domain.InAppStatus) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.statuses[status.StateKey]; ok && current.UpdatedAt > status.UpdatedAt {
		return false
	}
	statusCopy := *status
	b.statuses[status.StateKey] = &statusCopy
	return true
}

// List returns the statuses of a tenant (all tenants when empty), ordered by
// zip then state key.
func (b *StatusBoard) List(tenantID string) []domain.InAppStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := []domain.InAppStatus{}
	for _, s := range b.statuses {
		if tenantID != "" && s.TenantID != tenantID {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Zip != out[j].Zip {
			return out[i].Zip < out[j].Zip
		}
		return out[i].StateKey < out[j].StateKey
	})
	return out
}
