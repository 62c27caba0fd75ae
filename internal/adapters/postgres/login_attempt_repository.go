package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/clearpay/portal/internal/domain"
	"github.com/clearpay/portal/internal/ports"
)

type loginAttemptRepository struct {
	db *gorm.DB
}

// NewLoginAttemptRepository returns the Postgres-backed audit trail.
func NewLoginAttemptRepository(db *gorm.DB) ports.LoginAttemptRepository {
	return &loginAttemptRepository{db: db}
}

func (r *loginAttemptRepository) Insert(ctx context.Context, attempt domain.LoginAttempt) error {
	rec := loginAttemptModel{
		PrincipalID:   attempt.PrincipalID,
		Kind:          string(attempt.Kind),
		Email:         attempt.Email,
		AttemptAt:     attempt.AttemptAt,
		IPAddress:     nullableString(attempt.IPAddress),
		UserAgent:     attempt.UserAgent,
		Fingerprint:   attempt.Fingerprint,
		Status:        attempt.Status,
		FailureReason: attempt.FailureReason,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *loginAttemptRepository) ListRecent(ctx context.Context, limit int, since *time.Time) ([]domain.LoginAttempt, error) {
	query := r.db.WithContext(ctx).Model(&loginAttemptModel{})
	if since != nil {
		query = query.Where("attempt_at >= ?", *since)
	}

	var rows []loginAttemptModel
	if err := query.Order("attempt_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.LoginAttempt, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainLoginAttempt(row))
	}
	return result, nil
}
