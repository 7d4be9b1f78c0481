package models

import (
	"errors"
	"time"
)

// Campaign is the metadata the analytics engine needs about a campaign.
// Creation and editing happen elsewhere; this is a read-only view.
type Campaign struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Artist    string    `json:"artist,omitempty"`
	Song      string    `json:"song,omitempty"`
	MinViews  *int64    `json:"minViews,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Report is a shareable, filtered projection over one or more campaigns.
type Report struct {
	ID             string    `json:"id"`
	PublicShareID  string    `json:"publicShareId"`
	Name           string    `json:"name"`
	CampaignIDs    []string  `json:"campaignIds"`
	HiddenVideoIDs []string  `json:"hiddenVideoIds"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Validate checks that required fields are present.
func (r *Report) Validate() error {
	if r == nil {
		return errors.New("report is nil")
	}
	if len(r.CampaignIDs) == 0 {
		return errors.New("at least one campaign id is required")
	}
	for _, id := range r.CampaignIDs {
		if id == "" {
			return errors.New("campaign ids must not be empty")
		}
	}
	return nil
}

// HiddenSet returns the hidden video ids as a lookup set.
func (r *Report) HiddenSet() map[string]struct{} {
	return ToSet(r.HiddenVideoIDs)
}

// ToSet builds a lookup set from ids, skipping empty values.
func ToSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
