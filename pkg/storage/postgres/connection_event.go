package postgres

import (
	"context"
	"fmt"
	"time"
)

func (p *PostgresClient) InsertConnectionEvent(ctx context.Context, record *ConnectionEventRecord) error {
	if err := p.DB.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("insert connection event: %w", err)
	}
	return nil
}

// ListRecentConnectionEvents returns up to limit events for source, newest first.
// An empty source matches every source.
func (p *PostgresClient) ListRecentConnectionEvents(ctx context.Context, source string, limit int) ([]ConnectionEventRecord, error) {
	q := p.DB.WithContext(ctx).Order("occurred_at DESC, id DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}

	var events []ConnectionEventRecord
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list connection events: %w", err)
	}
	return events, nil
}

// DeleteConnectionEventsBefore applies retention and reports how many rows went.
func (p *PostgresClient) DeleteConnectionEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("occurred_at < ?", before).
		Delete(&ConnectionEventRecord{})
	if tx.Error != nil {
		return 0, fmt.Errorf("delete connection events: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}
