package entities

import "time"

// User is the account record. Email is stored lowercased so the unique index
// is case-insensitive.
type User struct {
	UserID      string
	Email       string
	DisplayName string
	Timezone    string
	Currency    string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
