package domain

import "time"

// Permission is a flat capability label (e.g. "user-read") granted to API
// keys. No hierarchy, no wildcards.
type Permission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
