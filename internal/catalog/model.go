package catalog

import (
	"time"

	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
)

// RoomModel is the GORM model for the party_rooms table.
type RoomModel struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	Link      string    `gorm:"type:text"`
	CreatedBy string    `gorm:"type:varchar(64);index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "party_rooms"
}

// ToDomain converts RoomModel to a catalog entry.
func (m *RoomModel) ToDomain() domain.CatalogEntry {
	return domain.CatalogEntry{
		RoomID:    m.RoomID,
		Link:      m.Link,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}
}
