package postgres

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/clearpay/portal/internal/domain"
)

func toDomainPrincipal(row principalModel) domain.Principal {
	return domain.Principal{
		ID:            row.PrincipalID,
		Kind:          domain.PrincipalKind(row.Kind),
		Email:         row.Email,
		FullName:      row.FullName,
		PasswordHash:  row.PasswordHash,
		Status:        domain.PrincipalStatus(row.Status),
		AccountNumber: derefString(row.AccountNo),
		EmployeeID:    derefString(row.EmployeeID),
		Department:    derefString(row.Department),
		Permissions:   splitPermissions(row.Permissions),
		LastLoginAt:   row.LastLoginAt,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func toPrincipalModel(p domain.Principal) principalModel {
	return principalModel{
		PrincipalID:  p.ID,
		Kind:         string(p.Kind),
		Email:        p.Email,
		FullName:     p.FullName,
		PasswordHash: p.PasswordHash,
		Status:       string(p.Status),
		AccountNo:    nullableString(p.AccountNumber),
		EmployeeID:   nullableString(p.EmployeeID),
		Department:   nullableString(p.Department),
		Permissions:  joinPermissions(p.Permissions),
		LastLoginAt:  p.LastLoginAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toDomainLoginAttempt(row loginAttemptModel) domain.LoginAttempt {
	return domain.LoginAttempt{
		ID:            row.ID,
		PrincipalID:   row.PrincipalID,
		Kind:          domain.PrincipalKind(row.Kind),
		Email:         row.Email,
		AttemptAt:     row.AttemptAt,
		IPAddress:     derefString(row.IPAddress),
		UserAgent:     row.UserAgent,
		Fingerprint:   row.Fingerprint,
		Status:        row.Status,
		FailureReason: row.FailureReason,
	}
}

// splitPermissions stores the permission set as a comma-joined column; the
// set is small and read-only at authentication time.
func splitPermissions(raw *string) []string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	parts := strings.Split(*raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinPermissions(perms []string) *string {
	if len(perms) == 0 {
		return nil
	}
	joined := strings.Join(perms, ",")
	return &joined
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
