package models

import "sort"

// PostSourceKind identifies which ledger family a posting came from.
type PostSourceKind string

const (
	SourceBundle   PostSourceKind = "bundle"
	SourceLate     PostSourceKind = "late"
	SourceAirtable PostSourceKind = "airtable"
	SourceManual   PostSourceKind = "manual"
)

// sourcePrecedence orders sources when the same post is registered twice.
var sourcePrecedence = map[PostSourceKind]int{
	SourceBundle:   0,
	SourceLate:     1,
	SourceAirtable: 2,
	SourceManual:   3,
}

// PostingRecord is the canonical ledger entry that ties a post to a campaign.
// Records are never hard-deleted; failures are carried in ErrorState.
type PostingRecord struct {
	CampaignID      string         `json:"campaignId"`
	PostID          string         `json:"postId"`
	Caption         *string        `json:"caption,omitempty"`
	ErrorState      *string        `json:"errorState,omitempty"`
	IsManual        bool           `json:"isManual"`
	PlatformVideoID *string        `json:"platformVideoId,omitempty"`
	FolderName      string         `json:"folderName,omitempty"`
	OverlayStyle    string         `json:"overlayStyle,omitempty"`
	Source          PostSourceKind `json:"source"`
}

// HasError reports whether the ledger marked this post as failed.
func (p PostingRecord) HasError() bool {
	return p.ErrorState != nil && *p.ErrorState != ""
}

// PostSource is one of the ledger record shapes. The set of variants is closed:
// BundlePost, LatePost, AirtablePost and ManualPost.
type PostSource interface {
	Kind() PostSourceKind
	Normalize() PostingRecord
}

// BundlePost is a post generated and scheduled as part of a video bundle.
type BundlePost struct {
	CampaignID   string
	PostID       string
	Caption      string
	FolderName   string
	OverlayStyle string
	Error        string
	VideoID      string
}

func (BundlePost) Kind() PostSourceKind { return SourceBundle }

func (b BundlePost) Normalize() PostingRecord {
	return PostingRecord{
		CampaignID:      b.CampaignID,
		PostID:          b.PostID,
		Caption:         optional(b.Caption),
		ErrorState:      optional(b.Error),
		PlatformVideoID: optional(b.VideoID),
		FolderName:      b.FolderName,
		OverlayStyle:    b.OverlayStyle,
		Source:          SourceBundle,
	}
}

// LatePost is a post mirrored from the third-party posting API.
type LatePost struct {
	CampaignID     string
	LatePostID     string
	Content        string
	Status         string
	FailureReason  string
	PlatformPostID string
}

func (LatePost) Kind() PostSourceKind { return SourceLate }

func (l LatePost) Normalize() PostingRecord {
	errState := l.FailureReason
	if errState == "" && l.Status == "failed" {
		errState = "failed"
	}
	return PostingRecord{
		CampaignID:      l.CampaignID,
		PostID:          l.LatePostID,
		Caption:         optional(l.Content),
		ErrorState:      optional(errState),
		PlatformVideoID: optional(l.PlatformPostID),
		Source:          SourceLate,
	}
}

// AirtablePost is a row from the spreadsheet-sourced content ledger.
type AirtablePost struct {
	CampaignID string
	RecordID   string
	PostID     string
	Caption    string
	Folder     string
}

func (AirtablePost) Kind() PostSourceKind { return SourceAirtable }

func (a AirtablePost) Normalize() PostingRecord {
	id := a.PostID
	if id == "" {
		id = a.RecordID
	}
	return PostingRecord{
		CampaignID: a.CampaignID,
		PostID:     id,
		Caption:    optional(a.Caption),
		FolderName: a.Folder,
		Source:     SourceAirtable,
	}
}

// ManualPost is a late-registered post entered by an operator.
type ManualPost struct {
	CampaignID string
	PostID     string
	Caption    string
	VideoURL   string
}

func (ManualPost) Kind() PostSourceKind { return SourceManual }

func (m ManualPost) Normalize() PostingRecord {
	return PostingRecord{
		CampaignID: m.CampaignID,
		PostID:     m.PostID,
		Caption:    optional(m.Caption),
		IsManual:   true,
		Source:     SourceManual,
	}
}

// NormalizePostings converts ledger sources into one PostingRecord per post id.
// A record without an error marker replaces an errored one; otherwise the
// higher-precedence source wins (bundle, late, airtable, manual), then the
// first seen. Output is sorted by post id.
func NormalizePostings(sources []PostSource) []PostingRecord {
	byID := make(map[string]PostingRecord, len(sources))
	for _, src := range sources {
		if src == nil {
			continue
		}
		rec := src.Normalize()
		if rec.PostID == "" {
			continue
		}
		existing, ok := byID[rec.PostID]
		if !ok || supersedes(rec, existing) {
			byID[rec.PostID] = rec
		}
	}

	out := make([]PostingRecord, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostID < out[j].PostID })
	return out
}

func supersedes(candidate, existing PostingRecord) bool {
	if existing.HasError() != candidate.HasError() {
		return existing.HasError()
	}
	return sourcePrecedence[candidate.Source] < sourcePrecedence[existing.Source]
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
