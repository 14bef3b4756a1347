package model

import (
	"time"
)

// Project is a tenant: one embeddable widget configuration with its own API
// key and origin allow-list. The ingestion pipeline only reads projects.
type Project struct {
	ID             string     `db:"id"`
	OrganizationID string     `db:"organization_id"`
	Name           string     `db:"name"`
	APIKey         string     `db:"api_key"`
	AllowedOrigins StringList `db:"allowed_origins"` // Exact hosts or "*.suffix" wildcards; empty = open
	NotifyEmail    *string    `db:"notify_email"`
	Active         bool       `db:"active"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (p *Project) IsOpen() bool {
	return len(p.AllowedOrigins) == 0
}
