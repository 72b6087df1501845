// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access/refresh tokens (refresh optional).
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. The password is only ever
// stored as an encoded Argon2id hash.
type User struct {
	ID           uuid.UUID // PK
	Username     string    // unique
	PasswordHash string    // $argon2id$v=19$m=..,t=..,p=..$salt$hash
	MACKey       []byte    // per-user HMAC-SHA256 key for SignMessage/VerifyMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
