package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tariel-x/gopresence/internal/models"
)

var (
	ErrRecordNotFound = errors.New("availability record not found")
	ErrAlreadyJoined  = errors.New("participant already joined the session")
)

// OpenDatabase opens the sqlite database at path and migrates the schema.
func OpenDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// sqlite allows a single writer.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.AvailabilityRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}

// Repository persists availability records.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, sessionID, participantID string) (models.AvailabilityRecord, error) {
	var rec models.AvailabilityRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND participant_id = ?", sessionID, participantID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AvailabilityRecord{}, ErrRecordNotFound
		}
		return models.AvailabilityRecord{}, err
	}
	return rec, nil
}

func (r *Repository) Create(ctx context.Context, rec *models.AvailabilityRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.AvailabilityRecord{}).
			Where("session_id = ? AND participant_id = ?", rec.SessionID, rec.ParticipantID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyJoined
		}
		return tx.Create(rec).Error
	})
}

// SetAvailability stores the availability flag and returns the updated record.
func (r *Repository) SetAvailability(ctx context.Context, sessionID, participantID string, value bool, now time.Time) (models.AvailabilityRecord, error) {
	return r.update(ctx, sessionID, participantID, map[string]interface{}{
		"is_available_for_call": value,
		"updated_at":            now,
	})
}

// SetConversationState stores the conversation state and returns the updated
// record. The availability flag is left untouched.
func (r *Repository) SetConversationState(ctx context.Context, sessionID, participantID string, state models.ConversationState, now time.Time) (models.AvailabilityRecord, error) {
	return r.update(ctx, sessionID, participantID, map[string]interface{}{
		"conversation_state": state,
		"updated_at":         now,
	})
}

func (r *Repository) update(ctx context.Context, sessionID, participantID string, fields map[string]interface{}) (models.AvailabilityRecord, error) {
	var rec models.AvailabilityRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AvailabilityRecord{}).
			Where("session_id = ? AND participant_id = ?", sessionID, participantID).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return tx.Where("session_id = ? AND participant_id = ?", sessionID, participantID).First(&rec).Error
	})
	if err != nil {
		return models.AvailabilityRecord{}, err
	}
	return rec, nil
}

func (r *Repository) Delete(ctx context.Context, sessionID, participantID string) error {
	res := r.db.WithContext(ctx).
		Where("session_id = ? AND participant_id = ?", sessionID, participantID).
		Delete(&models.AvailabilityRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListBySession returns the session's records ordered by join time. With
// networkableOnly set, only available participants outside a conversation are
// returned.
func (r *Repository) ListBySession(ctx context.Context, sessionID string, networkableOnly bool) ([]models.AvailabilityRecord, error) {
	query := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if networkableOnly {
		query = query.Where("is_available_for_call = ? AND conversation_state <> ?", true, models.ConversationActive)
	}

	var recs []models.AvailabilityRecord
	if err := query.Order("created_at ASC, participant_id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
