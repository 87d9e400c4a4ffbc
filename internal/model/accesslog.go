package model

import "time"

// AccessLogEntry records one admitted resolution. Entries are append-only
// and best-effort: a dropped entry is tolerable, a lost counter increment
// is not.
type AccessLogEntry struct {
	ID        string    `json:"id"`
	ShortKey  string    `json:"short_key"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}
