package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the database row for a registered account.
// reset_code and reset_expiry are set together during an active password
// reset flow and cleared together when the code is consumed.
type Account struct {
	bun.BaseModel `bun:"table:accounts"`

	ID           uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email        string     `bun:"email,notnull,unique"`
	PasswordHash string     `bun:"password_hash,notnull"`
	ResetCode    *string    `bun:"reset_code"`
	ResetExpiry  *time.Time `bun:"reset_expiry"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:now()"`
}
