package stores

import "context"

const auditInsertBatch = 100

// CreateAuditLogs inserts entries in batches of at most auditInsertBatch rows.
func (s *Store) CreateAuditLogs(ctx context.Context, entries []*AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if len(entry.Metadata) == 0 {
			entry.Metadata = []byte("{}")
		}
	}
	return translate(s.db.WithContext(ctx).CreateInBatches(entries, auditInsertBatch).Error)
}

// CountAuditLogs reports how many audit rows record action.
func (s *Store) CountAuditLogs(ctx context.Context, action string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&AuditLog{}).Where("action = ?", action).Count(&n).Error
	return n, translate(err)
}
