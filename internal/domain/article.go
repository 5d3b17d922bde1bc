// Package domain contains the records shared by the ingestion pipeline and the publisher.
package domain

import (
	"database/sql/driver"
	"errors"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicate is returned when an insert violates the final URL uniqueness constraint.
	ErrDuplicate = errors.New("duplicate final url")
)

// ArticleStatus is the processing state of an article record.
type ArticleStatus string

const (
	ArticleStatusPending ArticleStatus = "pending"
	ArticleStatusSuccess ArticleStatus = "success"
	ArticleStatusFailed  ArticleStatus = "failed"
)

// Valid reports whether s is a known status.
func (s ArticleStatus) Valid() bool {
	switch s {
	case ArticleStatusPending, ArticleStatusSuccess, ArticleStatusFailed:
		return true
	}
	return false
}

// Categories is a text[] column.
type Categories []string

// Scan implements sql.Scanner.
func (c *Categories) Scan(src any) error {
	return pq.Array((*[]string)(c)).Scan(src)
}

// Value implements driver.Valuer.
func (c Categories) Value() (driver.Value, error) {
	if c == nil {
		return pq.Array([]string{}).Value()
	}
	return pq.Array([]string(c)).Value()
}

// ArticleMetadata is what the extractor derives from the destination page.
type ArticleMetadata struct {
	OGTitle        string     `db:"og_title"        json:"og_title"`
	OGDescription  string     `db:"og_description"  json:"og_description"`
	OGImage        string     `db:"og_image"        json:"og_image"`
	OGURL          string     `db:"og_url"          json:"og_url"`
	OGSiteName     string     `db:"og_site_name"    json:"og_site_name"`
	TwitterImage   string     `db:"twitter_image"   json:"twitter_image"`
	Author         string     `db:"author"          json:"author"`
	PageTitle      string     `db:"page_title"      json:"page_title"`
	ArticleContent string     `db:"article_content" json:"article_content"`
	WordCount      int        `db:"word_count"      json:"word_count"`
	Categories     Categories `db:"categories"      json:"categories"`
}

// Image returns the featured image: og:image, else twitter:image.
func (m *ArticleMetadata) Image() string {
	if m.OGImage != "" {
		return m.OGImage
	}
	return m.TwitterImage
}

// Article is one ingested item. FinalURL is its durable identity once resolved.
type Article struct {
	ID                string        `db:"id"                  json:"id"`
	FeedID            string        `db:"feed_id"             json:"feed_id"`
	SourceLink        string        `db:"source_link"         json:"source_link"`
	SourceTitle       string        `db:"source_title"        json:"source_title"`
	SourceDescription string        `db:"source_description"  json:"source_description"`
	SourceName        string        `db:"source_name"         json:"source_name"`
	SourcePublishedAt *time.Time    `db:"source_published_at" json:"source_published_at,omitempty"`
	FinalURL          *string       `db:"final_url"           json:"final_url,omitempty"`
	Status            ArticleStatus `db:"status"              json:"status"`
	RetryCount        int           `db:"retry_count"         json:"retry_count"`
	NextRetryAt       *time.Time    `db:"next_retry_at"       json:"next_retry_at,omitempty"`
	LastError         *string       `db:"last_error"          json:"last_error,omitempty"`
	ProcessedAt       *time.Time    `db:"processed_at"        json:"processed_at,omitempty"`
	CreatedAt         time.Time     `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"          json:"updated_at"`

	ArticleMetadata

	// Topic is populated by queries that join feeds.
	Topic string `db:"topic" json:"topic,omitempty"`
}

// URL returns the resolved final URL or "" when unresolved.
func (a *Article) URL() string {
	if a.FinalURL == nil {
		return ""
	}
	return *a.FinalURL
}

// DisplayTitle prefers og:title, then the page title, then the source feed title.
func (a *Article) DisplayTitle() string {
	switch {
	case a.OGTitle != "":
		return a.OGTitle
	case a.PageTitle != "":
		return a.PageTitle
	default:
		return a.SourceTitle
	}
}

// DisplayDescription prefers og:description, then the source feed description.
func (a *Article) DisplayDescription() string {
	if a.OGDescription != "" {
		return a.OGDescription
	}
	return a.SourceDescription
}

// ArticleUpdate carries the mutable fields written after a processing attempt.
// Status, RetryCount, NextRetryAt and LastError are always written, so nil
// clears the column. FinalURL, ProcessedAt and Metadata are left untouched when nil.
type ArticleUpdate struct {
	FinalURL    *string
	Status      ArticleStatus
	RetryCount  int
	NextRetryAt *time.Time
	LastError   *string
	ProcessedAt *time.Time
	Metadata    *ArticleMetadata
}

// ArticleFilter selects articles for the publisher.
type ArticleFilter struct {
	Topic  string
	FeedID string
	// Status is empty to match every status.
	Status ArticleStatus
	Limit  int
	Offset int
}
