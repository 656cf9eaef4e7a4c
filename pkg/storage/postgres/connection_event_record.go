package postgres

import "time"

// ConnectionEventRecord is one upstream connectivity transition.
type ConnectionEventRecord struct {
	ID uint `gorm:"primaryKey"`

	Source    string `gorm:"type:varchar(16);not null;index:idx_event_source_at"`
	FromState string `gorm:"type:varchar(16);not null"`
	ToState   string `gorm:"type:varchar(16);not null"`
	Error     string `gorm:"type:text"`

	OccurredAt time.Time `gorm:"not null;index:idx_event_source_at;index:idx_event_occurred_at"`
	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (ConnectionEventRecord) TableName() string {
	return "connection_event"
}
