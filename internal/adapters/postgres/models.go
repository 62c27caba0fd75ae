package postgres

import (
	"time"

	"github.com/google/uuid"
)

type principalModel struct {
	PrincipalID  uuid.UUID  `gorm:"column:principal_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind         string     `gorm:"column:kind"`
	Email        string     `gorm:"column:email"`
	FullName     string     `gorm:"column:full_name"`
	PasswordHash string     `gorm:"column:password_hash"`
	Status       string     `gorm:"column:status"`
	AccountNo    *string    `gorm:"column:account_number"`
	EmployeeID   *string    `gorm:"column:employee_id"`
	Department   *string    `gorm:"column:department"`
	Permissions  *string    `gorm:"column:permissions"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (principalModel) TableName() string { return "principals" }

type loginAttemptModel struct {
	ID            int64      `gorm:"column:id;primaryKey"`
	PrincipalID   *uuid.UUID `gorm:"column:principal_id"`
	Kind          string     `gorm:"column:kind"`
	Email         string     `gorm:"column:email"`
	AttemptAt     time.Time  `gorm:"column:attempt_at"`
	IPAddress     *string    `gorm:"column:ip_address"`
	UserAgent     string     `gorm:"column:user_agent"`
	Fingerprint   string     `gorm:"column:fingerprint"`
	Status        string     `gorm:"column:status"`
	FailureReason string     `gorm:"column:failure_reason"`
}

func (loginAttemptModel) TableName() string { return "login_attempts" }
