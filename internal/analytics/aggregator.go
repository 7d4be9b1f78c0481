package analytics

import (
	"fmt"
	"sort"

	"github.com/radiusdt/vidpulse/internal/models"
)

// DailyBucket holds the posts published on one UTC date.
type DailyBucket struct {
	Date       string                   `json:"date"`
	Totals     models.Totals            `json:"totals"`
	ByPlatform map[string]models.Totals `json:"byPlatform"`
}

// Aggregation is the aggregator's output over a canonical post set.
type Aggregation struct {
	Totals           models.Totals
	Daily            []DailyBucket
	TopVideos        []models.TopVideo
	PostCountsByDate []models.DateCount
}

// Aggregate computes totals, daily buckets and the top-N ranking.
func Aggregate(posts []Post, topN int) Aggregation {
	var agg Aggregation
	for _, p := range posts {
		agg.Totals.AddPost(p.Metrics)
	}
	agg.Daily = DailyBuckets(posts)
	agg.PostCountsByDate = make([]models.DateCount, 0, len(agg.Daily))
	for _, b := range agg.Daily {
		agg.PostCountsByDate = append(agg.PostCountsByDate, models.DateCount{Date: b.Date, Count: b.Totals.Posts})
	}
	agg.TopVideos = TopVideos(posts, topN)
	return agg
}

// DailyBuckets groups posts by the UTC date of PostedAt, sorted by date.
func DailyBuckets(posts []Post) []DailyBucket {
	byDate := make(map[string]*DailyBucket)
	for _, p := range posts {
		date := p.DateKey()
		b, ok := byDate[date]
		if !ok {
			b = &DailyBucket{Date: date, ByPlatform: make(map[string]models.Totals)}
			byDate[date] = b
		}
		b.Totals.AddPost(p.Metrics)
		pt := b.ByPlatform[p.Platform]
		pt.AddPost(p.Metrics)
		b.ByPlatform[p.Platform] = pt
	}

	out := make([]DailyBucket, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// TopVideos ranks posts by views descending, breaking ties by post id then
// platform, and returns at most n projections.
func TopVideos(posts []Post, n int) []models.TopVideo {
	ranked := append([]Post(nil), posts...)
	sort.SliceStable(ranked, func(i, j int) bool { return rankLess(ranked[i], ranked[j]) })
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]models.TopVideo, 0, len(ranked))
	for _, p := range ranked {
		out = append(out, models.TopVideo{
			VideoID:  p.PostID,
			Platform: p.Platform,
			PostedAt: p.PostedAt,
			VideoURL: p.VideoURL,
			MediaURL: p.MediaURL,
			Metrics:  p.Metrics,
		})
	}
	return out
}

func rankLess(a, b Post) bool {
	if a.Views != b.Views {
		return a.Views > b.Views
	}
	if a.PostID != b.PostID {
		return a.PostID < b.PostID
	}
	return a.Platform < b.Platform
}

// =============================================
// Dimensional stats
// =============================================

// Dimension is a post attribute used to group stats.
type Dimension string

const (
	DimensionCaption Dimension = "caption"
	DimensionFolder  Dimension = "folder"
	DimensionOverlay Dimension = "overlay"
)

// noDimensionValue groups posts that carry no value for the dimension.
const noDimensionValue = "(none)"

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case DimensionCaption, DimensionFolder, DimensionOverlay:
		return d, nil
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// DimensionStat is the per-group rollup for one dimension value.
type DimensionStat struct {
	Key      string         `json:"key"`
	Count    int64          `json:"count"`
	Totals   models.Metrics `json:"totals"`
	AvgViews float64        `json:"avgViews"`
	AvgLikes float64        `json:"avgLikes"`
}

// DimensionStats groups posts by dim and computes per-group totals and
// averages, sorted by total views descending then key.
func DimensionStats(posts []Post, dim Dimension) []DimensionStat {
	groups := make(map[string]*DimensionStat)
	for _, p := range posts {
		key := dimensionValue(p, dim)
		g, ok := groups[key]
		if !ok {
			g = &DimensionStat{Key: key}
			groups[key] = g
		}
		g.Count++
		g.Totals = g.Totals.Add(p.Metrics)
	}

	out := make([]DimensionStat, 0, len(groups))
	for _, g := range groups {
		// groups only exist once a post was added, so Count > 0
		g.AvgViews = float64(g.Totals.Views) / float64(g.Count)
		g.AvgLikes = float64(g.Totals.Likes) / float64(g.Count)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Totals.Views != out[j].Totals.Views {
			return out[i].Totals.Views > out[j].Totals.Views
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func dimensionValue(p Post, dim Dimension) string {
	var v string
	switch dim {
	case DimensionCaption:
		if p.Posting.Caption != nil {
			v = *p.Posting.Caption
		}
	case DimensionFolder:
		v = p.Posting.FolderName
	case DimensionOverlay:
		v = p.Posting.OverlayStyle
	}
	if v == "" {
		return noDimensionValue
	}
	return v
}
