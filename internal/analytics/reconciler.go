package analytics

import (
	"sort"

	"github.com/radiusdt/vidpulse/internal/models"
)

// Post is a member of the canonical post set: a platform stat row joined with
// the ledger record that claims it for the campaign.
type Post struct {
	models.PlatformStat
	Posting models.PostingRecord
}

// PostSet is the reconciled view of one campaign's sources. It is the only
// place the ledger/stat join is computed.
type PostSet struct {
	CampaignID string

	// Posts is the visible canonical set, sorted by post id then platform.
	Posts []Post

	// Excluded holds joined posts below the campaign's minimum-views floor.
	Excluded              []Post
	MinViewsExcludedStats models.Totals

	// Unmatched counts stat rows dropped for lack of a ledger record.
	Unmatched int
	// Hidden counts posts dropped by the hidden-video list.
	Hidden int

	// Snapshots are the interval snapshots whose subject maps to a visible
	// post, plus campaign-level platform subjects.
	Snapshots []models.IntervalSnapshot
}

// ReconcileOptions carries the post-join filters.
type ReconcileOptions struct {
	HiddenVideoIDs map[string]struct{}
	MinViews       *int64
}

// Reconcile inner-joins platform stats with the posting ledger on post id,
// then applies hidden-video exclusion and the minimum-views threshold.
// Ledger records with an error marker do not take part in the join.
func Reconcile(campaignID string, postings []models.PostingRecord, stats []models.PlatformStat, snapshots []models.IntervalSnapshot, opts ReconcileOptions) PostSet {
	ledger := make(map[string]models.PostingRecord, len(postings))
	for _, rec := range postings {
		if rec.HasError() {
			continue
		}
		ledger[rec.PostID] = rec
	}

	set := PostSet{CampaignID: campaignID}
	visible := make(map[string]struct{})

	for _, st := range DedupPlatformStats(stats) {
		rec, ok := ledger[st.PostID]
		if !ok {
			set.Unmatched++
			continue
		}
		if isHidden(st, rec, opts.HiddenVideoIDs) {
			set.Hidden++
			continue
		}

		post := Post{PlatformStat: st, Posting: rec}
		if opts.MinViews != nil && st.Views < *opts.MinViews {
			set.Excluded = append(set.Excluded, post)
			set.MinViewsExcludedStats.AddPost(st.Metrics)
			continue
		}
		set.Posts = append(set.Posts, post)
		visible[st.PostID] = struct{}{}
	}

	for _, sn := range snapshots {
		switch sn.SubjectKind {
		case models.SubjectCampaignPlatform:
			set.Snapshots = append(set.Snapshots, sn)
		default:
			postID := sn.PostID
			if postID == "" {
				postID = sn.SubjectID
			}
			if _, ok := visible[postID]; ok {
				set.Snapshots = append(set.Snapshots, sn)
			}
		}
	}

	return set
}

// DedupPlatformStats keeps one row per (platform, postId). Counters are
// cumulative, so the row with the most views is the freshest; ties keep the
// first seen. Output is sorted by post id then platform.
func DedupPlatformStats(stats []models.PlatformStat) []models.PlatformStat {
	byKey := make(map[string]models.PlatformStat, len(stats))
	for _, st := range stats {
		if st.PostID == "" {
			continue
		}
		k := st.Key()
		if existing, ok := byKey[k]; ok && existing.Views >= st.Views {
			continue
		}
		byKey[k] = st
	}

	out := make([]models.PlatformStat, 0, len(byKey))
	for _, st := range byKey {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PostID != out[j].PostID {
			return out[i].PostID < out[j].PostID
		}
		return out[i].Platform < out[j].Platform
	})
	return out
}

func isHidden(st models.PlatformStat, rec models.PostingRecord, hidden map[string]struct{}) bool {
	if len(hidden) == 0 {
		return false
	}
	if _, ok := hidden[st.PostID]; ok {
		return true
	}
	if rec.PlatformVideoID != nil {
		if _, ok := hidden[*rec.PlatformVideoID]; ok {
			return true
		}
	}
	return false
}
