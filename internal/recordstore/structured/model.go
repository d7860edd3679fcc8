package structured

import (
	"time"

	"gorm.io/datatypes"
)

// RecordRow is one document in the shared records table.
type RecordRow struct {
	Collection string         `gorm:"primaryKey;type:varchar(128)"`
	ID         string         `gorm:"primaryKey;type:varchar(64)"`
	Data       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

func (RecordRow) TableName() string { return "records" }
