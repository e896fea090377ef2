package repository

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/lostfound/internal/domain"
	"github.com/totegamma/lostfound/internal/infra/database/models"
)

// MirrorRepository copies registry records into a SQL table for reporting.
// The registry file stays the source of truth.
type MirrorRepository struct {
	db *gorm.DB
}

func NewMirrorRepository(db *gorm.DB) *MirrorRepository {
	return &MirrorRepository{db: db}
}

func (m *MirrorRepository) Insert(ctx context.Context, office string, rec domain.Record, sourceID string) error {
	row := models.ItemRecord{
		ID:           rec.ID,
		Office:       office,
		Category:     rec.Category,
		Subcategory:  rec.Subcategory,
		Name:         rec.Name,
		Description:  rec.Description,
		Color:        rec.Attributes.Color,
		Brand:        rec.Attributes.Brand,
		Condition:    rec.Attributes.Condition,
		FoundDate:    rec.FoundDate,
		LocationText: rec.LocationText,
		Lat:          parseCoord(rec.Lat),
		Lon:          parseCoord(rec.Lon),
		Returned:     rec.Returned,
		SourceID:     sourceID,
	}

	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&row).Error
}

func (m *MirrorRepository) SetReturned(ctx context.Context, id string, returned bool) error {
	return m.db.WithContext(ctx).
		Model(&models.ItemRecord{}).
		Where("id = ?", id).
		Update("returned", returned).Error
}

func (m *MirrorRepository) Get(ctx context.Context, id string) (models.ItemRecord, error) {
	var row models.ItemRecord
	err := m.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, domain.NotFoundError{Resource: "mirror row"}
	}
	return row, err
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
