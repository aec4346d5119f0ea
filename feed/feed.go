// Package feed implements the feed registry: persisted job-feed
// configuration plus the cumulative import aggregates that completed
// import sessions write back.
package feed

import (
	"time"

	"github.com/google/uuid"
)

// Feed is one configured job feed.
type Feed struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	URL               string     `json:"url"`
	Category          string     `json:"category,omitempty"`
	JobTypes          string     `json:"jobTypes,omitempty"`
	Region            string     `json:"region,omitempty"`
	IsActive          bool       `json:"isActive"`
	LastImportAt      *time.Time `json:"lastImportAt,omitempty"`
	TotalJobsImported int        `json:"totalJobsImported"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// New creates a feed with a fresh id and timestamps. Name and URL are the
// only required fields; the feed starts active with zeroed aggregates.
func New(name, url string) *Feed {
	now := time.Now().UTC()
	return &Feed{
		ID:        uuid.NewString(),
		Name:      name,
		URL:       url,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
