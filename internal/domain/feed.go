package domain

import "time"

// Feed is a named aggregator subscription. Topic is the unique human key.
type Feed struct {
	ID              string     `db:"id"                json:"id"`
	Topic           string     `db:"topic"             json:"topic"`
	URL             string     `db:"url"               json:"url"`
	ResultLimit     int        `db:"result_limit"      json:"result_limit"`
	Enabled         bool       `db:"enabled"           json:"enabled"`
	LastProcessedAt *time.Time `db:"last_processed_at" json:"last_processed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"        json:"updated_at"`
}

// APIKey authorizes calls to the processing endpoints.
type APIKey struct {
	ID         string     `db:"id"           json:"id"`
	Name       string     `db:"name"         json:"name"`
	KeyValue   string     `db:"key_value"    json:"-"`
	Enabled    bool       `db:"enabled"      json:"enabled"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
}
