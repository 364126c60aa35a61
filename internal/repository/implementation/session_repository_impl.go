package implementation

import (
	"context"
	"errors"
	"fmt"

	"cc-intelligence-be/internal/model"
	"cc-intelligence-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepositoryImpl struct {
	db              *gorm.DB
	maxPayloadBytes int
}

// NewSessionRepository creates the durable session repository. Payloads over
// maxPayloadBytes are rejected with contract.ErrCapacityExceeded so the store
// can retry with a truncated transcript. Zero disables the cap.
func NewSessionRepository(db *gorm.DB, maxPayloadBytes int) contract.ISessionRepository {
	return &SessionRepositoryImpl{
		db:              db,
		maxPayloadBytes: maxPayloadBytes,
	}
}

func (r *SessionRepositoryImpl) Load(ctx context.Context, company string) (*model.ResearchSessionRecord, error) {
	var record model.ResearchSessionRecord
	err := r.db.WithContext(ctx).First(&record, "company = ?", company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *SessionRepositoryImpl) Save(ctx context.Context, record *model.ResearchSessionRecord) error {
	if r.maxPayloadBytes > 0 && len(record.Payload) > r.maxPayloadBytes {
		return fmt.Errorf("payload is %d bytes: %w", len(record.Payload), contract.ErrCapacityExceeded)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(record).Error
}

func (r *SessionRepositoryImpl) Delete(ctx context.Context, company string) error {
	return r.db.WithContext(ctx).Delete(&model.ResearchSessionRecord{}, "company = ?", company).Error
}

func (r *SessionRepositoryImpl) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.ResearchSessionRecord{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.SessionAuxRecord{}).Error
}

func (r *SessionRepositoryImpl) SaveAux(ctx context.Context, record *model.SessionAuxRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company"}, {Name: "aux_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(record).Error
}

func (r *SessionRepositoryImpl) LoadAux(ctx context.Context, company, key string) (*model.SessionAuxRecord, error) {
	var record model.SessionAuxRecord
	err := r.db.WithContext(ctx).First(&record, "company = ? AND aux_key = ?", company, key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *SessionRepositoryImpl) DeleteAux(ctx context.Context, company string) error {
	return r.db.WithContext(ctx).Delete(&model.SessionAuxRecord{}, "company = ?", company).Error
}
