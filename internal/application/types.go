package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/clearpay/portal/internal/domain"
)

// RegisterCustomerRequest is the self-registration input. Employees are
// pre-provisioned; their self-registration is a rejected operation.
type RegisterCustomerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FullName  string `json:"fullName"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// PrincipalSummary is the caller-visible projection of a principal. It never
// carries the password hash.
type PrincipalSummary struct {
	ID            uuid.UUID            `json:"id"`
	Kind          domain.PrincipalKind `json:"kind"`
	Email         string               `json:"email"`
	FullName      string               `json:"fullName,omitempty"`
	Status        string               `json:"status"`
	AccountNumber string               `json:"accountNumber,omitempty"`
	EmployeeID    string               `json:"employeeId,omitempty"`
	Department    string               `json:"department,omitempty"`
}

func summarize(p domain.Principal) PrincipalSummary {
	return PrincipalSummary{
		ID:            p.ID,
		Kind:          p.Kind,
		Email:         p.Email,
		FullName:      p.FullName,
		Status:        string(p.Status),
		AccountNumber: p.AccountNumber,
		EmployeeID:    p.EmployeeID,
		Department:    p.Department,
	}
}

// CredentialPair is a freshly minted access/refresh token set with the cookie
// lifetimes the transport needs.
type CredentialPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type LoginResult struct {
	Principal   PrincipalSummary
	Credentials CredentialPair
}

// CSRFCheck is everything the guard needs from a state-changing request.
type CSRFCheck struct {
	Method        string
	CookieToken   string
	HeaderToken   string
	ContentType   string
	RequestedWith string
	Origin        string
	Referer       string
	Fingerprint   string
}

// RequestSurface is the concatenated textual surface the threat classifier
// scans: body, query, path, user-agent, referer.
type RequestSurface struct {
	Method      string
	Path        string
	Query       string
	Body        string
	UserAgent   string
	Referer     string
	Fingerprint string
}

// LockedStatus reports lockout state for an identity.
type LockedStatus struct {
	Locked    bool          `json:"locked"`
	Remaining time.Duration `json:"-"`
}
