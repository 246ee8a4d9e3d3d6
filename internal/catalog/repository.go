package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/pkg/database"
	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
)

var (
	ErrNotFound  = errors.New("catalog entry not found")
	ErrDuplicate = errors.New("catalog entry already exists")
)

// Repository persists catalog entries.
type Repository interface {
	Record(ctx context.Context, entry *domain.CatalogEntry) error
	Get(ctx context.Context, roomID string) (*domain.CatalogEntry, error)
	ListByCreator(ctx context.Context, userID string) ([]domain.CatalogEntry, error)
}

// GormRepository implements Repository using GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based catalog repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the catalog table.
func Migrate(db *gorm.DB) error {
	return database.AutoMigrate(db, &RoomModel{})
}

// Record stores entry and fills in its creation time.
func (r *GormRepository) Record(ctx context.Context, entry *domain.CatalogEntry) error {
	l := log.Ctx(ctx)

	var count int64
	if err := r.db.WithContext(ctx).Model(&RoomModel{}).Where("room_id = ?", entry.RoomID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}

	model := &RoomModel{
		RoomID:    entry.RoomID,
		Link:      entry.Link,
		CreatedBy: entry.CreatedBy,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, entry.RoomID).Msg("failed to record room in catalog")
		return err
	}

	entry.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldRoomID, entry.RoomID).Msg("room recorded in catalog")
	return nil
}

// Get retrieves the entry for roomID.
func (r *GormRepository) Get(ctx context.Context, roomID string) (*domain.CatalogEntry, error) {
	var model RoomModel
	result := r.db.WithContext(ctx).First(&model, "room_id = ?", roomID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	entry := model.ToDomain()
	return &entry, nil
}

// ListByCreator returns the rooms created by userID, newest first.
func (r *GormRepository) ListByCreator(ctx context.Context, userID string) ([]domain.CatalogEntry, error) {
	var models []RoomModel
	if err := r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]domain.CatalogEntry, 0, len(models))
	for i := range models {
		entries = append(entries, models[i].ToDomain())
	}
	return entries, nil
}
