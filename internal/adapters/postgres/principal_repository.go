package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearpay/portal/internal/domain"
	"github.com/clearpay/portal/internal/ports"
)

type principalRepository struct {
	db *gorm.DB
}

// NewPrincipalRepository returns the Postgres-backed principal lookup.
func NewPrincipalRepository(db *gorm.DB) ports.PrincipalRepository {
	return &principalRepository{db: db}
}

func (r *principalRepository) FindByEmail(ctx context.Context, email string, kind domain.PrincipalKind) (domain.Principal, error) {
	var rec principalModel
	err := r.db.WithContext(ctx).
		Where("email = ? AND kind = ?", email, string(kind)).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Principal{}, domain.ErrNotFound
		}
		return domain.Principal{}, err
	}
	return toDomainPrincipal(rec), nil
}

func (r *principalRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.Principal, error) {
	var rec principalModel
	if err := r.db.WithContext(ctx).Where("principal_id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Principal{}, domain.ErrNotFound
		}
		return domain.Principal{}, err
	}
	return toDomainPrincipal(rec), nil
}

func (r *principalRepository) Create(ctx context.Context, principal domain.Principal) (domain.Principal, error) {
	rec := toPrincipalModel(principal)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Principal{}, domain.ErrConflict
		}
		return domain.Principal{}, err
	}
	return toDomainPrincipal(rec), nil
}

func (r *principalRepository) UpdateLoginBookkeeping(ctx context.Context, id uuid.UUID, lastLoginAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&principalModel{}).
		Where("principal_id = ?", id).
		Updates(map[string]any{
			"last_login_at": lastLoginAt,
			"updated_at":    lastLoginAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
