package memory

import (
	"context"
	"sync"

	"rainout-go/internal/domain"
)

// AuditLogRepository is an in-memory implementation of store.AuditLogRepository.
type AuditLogRepository struct {
	mu      sync.RWMutex
	records []*domain.AuditRecord
}

// NewAuditLogRepository creates a new in-memory audit log.
func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

// Write appends an audit record.
func (r *AuditLogRepository) Write(ctx context.Context, record *domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recordCopy := *record
	r.records = append(r.records, &recordCopy)
	return nil
}

// List retrieves audit records matching the filter, newest first.
func (r *AuditLogRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := []*domain.AuditRecord{}
	for i := len(r.records) - 1; i >= 0; i-- {
		record := r.records[i]
		if filter.TenantID != "" && record.TenantID != filter.TenantID {
			continue
		}
		if filter.RunID != "" && record.RunID != filter.RunID {
			continue
		}
		recordCopy := *record
		results = append(results, &recordCopy)
		if filter.Limit > 0 && len(results) == filter.Limit {
			break
		}
	}
	return results, nil
}
