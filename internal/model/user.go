package model

import "time"

const (
	ProviderLocal    = "local"
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// User is a principal. Secrets are excluded from its JSON form so the record
// can be returned to clients as is.
type User struct {
	ID                    string     `json:"id"`
	Handle                string     `json:"handle"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullname"`
	Phone                 string     `json:"phone,omitempty"`
	Address               string     `json:"address,omitempty"`
	Avatar                string     `json:"avatar,omitempty"`
	PasswordHash          string     `json:"-"`
	RoleID                string     `json:"role,omitempty"`
	Verified              bool       `json:"verified"`
	VerificationCode      string     `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	RefreshToken          string     `json:"-"`
	Provider              string     `json:"provider"`
	ProviderID            string     `json:"-"`
	IsActive              bool       `json:"isActive"`
	IsDeleted             bool       `json:"isDeleted"`
	CreatedBy             string     `json:"createdBy,omitempty"`
	UpdatedBy             string     `json:"updatedBy,omitempty"`
	DeletedBy             string     `json:"deletedBy,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	DeletedAt             *time.Time `json:"deletedAt,omitempty"`
}

// Usable reports whether the principal may authenticate.
func (u User) Usable() bool {
	return u.IsActive && !u.IsDeleted
}

// SetVerificationCode stores a fresh one-time code that stops validating at expiresAt.
func (u *User) SetVerificationCode(code string, expiresAt time.Time) {
	u.VerificationCode = code
	u.VerificationExpiresAt = &expiresAt
}

func (u *User) ClearVerificationCode() {
	u.VerificationCode = ""
	u.VerificationExpiresAt = nil
}

type AuthClaims struct {
	UserID    string    `json:"id"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	Handle    string    `json:"handle"`
	Type      string    `json:"typ"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// FederatedProfile is the normalised identity returned by an external provider.
type FederatedProfile struct {
	Provider      string
	ProviderID    string
	Email         string
	DisplayName   string
	EmailVerified bool
}
