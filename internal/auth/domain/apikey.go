package domain

import "time"

// APIKey is the stored machine-to-machine credential. The key is the public
// lookup identifier; the secret is a server-generated high-entropy value
// with no relation to the key. Records are immutable after creation.
type APIKey struct {
	ID          string
	Name        string
	Key         string
	Secret      string
	UserID      string   // owner
	Permissions []string // granted permission names
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// APIKeyListing is the administrative listing projection, with permission
// names and the owner's display name resolved. It is kept separate from
// APIKey so the listing shape can be hardened (e.g. dropping the secret)
// without touching the validation path.
type APIKeyListing struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Secret      string    `json:"secret"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Permissions []string  `json:"permissions"`
	User        string    `json:"user"`
}
