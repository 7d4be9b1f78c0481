package analytics

import (
	"fmt"
	"sort"

	"github.com/radiusdt/vidpulse/internal/models"
)

// IntervalDelta is the change of a subject's counters over one interval.
// Net keeps the signed difference; Gained clamps negative metrics to zero.
type IntervalDelta struct {
	IntervalID string         `json:"intervalId"`
	SnapshotAt int64          `json:"snapshotAt"`
	Hour       int            `json:"hour"`
	Cumulative models.Metrics `json:"cumulative"`
	Net        models.Metrics `json:"net"`
	Gained     models.Metrics `json:"gained"`
}

// SubjectSeries is the ordered delta series of one snapshot subject.
type SubjectSeries struct {
	SubjectID string             `json:"subjectId"`
	Kind      models.SubjectKind `json:"kind"`
	Platform  string             `json:"platform"`
	PostID    string             `json:"postId,omitempty"`
	Intervals []IntervalDelta    `json:"intervals"`
}

// NegativeDelta flags a cumulative counter that went down between two
// consecutive checkpoints (platform correction or removed content).
type NegativeDelta struct {
	SubjectID  string `json:"subjectId"`
	IntervalID string `json:"intervalId"`
	SnapshotAt int64  `json:"snapshotAt"`
	Metric     string `json:"metric"`
	Delta      int64  `json:"delta"`
}

// DiffResult is the differ's output for one campaign.
type DiffResult struct {
	Series         []SubjectSeries `json:"series"`
	NegativeDeltas []NegativeDelta `json:"negativeDeltas"`
}

// HourlyPoint is the gained total across subjects for one checkpoint.
type HourlyPoint struct {
	Bucket     string         `json:"bucket"` // YYYY-MM-DD HH
	SnapshotAt int64          `json:"snapshotAt"`
	Gained     models.Metrics `json:"gained"`
}

// DiffSnapshots turns cumulative hourly readings into per-interval deltas.
// Rows are grouped by subject, deduplicated by interval id (first wins) and
// ordered by checkpoint. The first reading's delta is its own value. A
// decrease is kept in Net, clamped to zero in Gained and reported in
// NegativeDeltas.
func DiffSnapshots(snapshots []models.IntervalSnapshot) DiffResult {
	bySubject := make(map[string][]models.IntervalSnapshot)
	seen := make(map[string]struct{}, len(snapshots))
	for _, sn := range snapshots {
		id := sn.IntervalID
		if id == "" {
			id = models.IntervalID(sn.SubjectID, sn.SnapshotAt)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sn.IntervalID = id
		bySubject[sn.SubjectID] = append(bySubject[sn.SubjectID], sn)
	}

	subjects := make([]string, 0, len(bySubject))
	for id := range bySubject {
		subjects = append(subjects, id)
	}
	sort.Strings(subjects)

	res := DiffResult{
		Series:         make([]SubjectSeries, 0, len(subjects)),
		NegativeDeltas: []NegativeDelta{},
	}
	for _, id := range subjects {
		rows := bySubject[id]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].SnapshotAt < rows[j].SnapshotAt })

		series := SubjectSeries{
			SubjectID: id,
			Kind:      rows[0].SubjectKind,
			Platform:  rows[0].Platform,
			PostID:    rows[0].PostID,
			Intervals: make([]IntervalDelta, 0, len(rows)),
		}

		var prev models.Metrics
		for _, row := range rows {
			net := row.Metrics.Sub(prev)
			gained := net
			for _, metric := range models.CounterMetrics {
				if d := net.Get(metric); d < 0 {
					res.NegativeDeltas = append(res.NegativeDeltas, NegativeDelta{
						SubjectID:  id,
						IntervalID: row.IntervalID,
						SnapshotAt: row.SnapshotAt,
						Metric:     metric,
						Delta:      d,
					})
					gained = clampMetric(gained, metric)
				}
			}
			series.Intervals = append(series.Intervals, IntervalDelta{
				IntervalID: row.IntervalID,
				SnapshotAt: row.SnapshotAt,
				Hour:       row.Hour,
				Cumulative: row.Metrics,
				Net:        net,
				Gained:     gained,
			})
			prev = row.Metrics
		}
		res.Series = append(res.Series, series)
	}
	return res
}

func clampMetric(m models.Metrics, metric string) models.Metrics {
	switch metric {
	case models.MetricViews:
		m.Views = 0
	case models.MetricLikes:
		m.Likes = 0
	case models.MetricComments:
		m.Comments = 0
	case models.MetricShares:
		m.Shares = 0
	case models.MetricSaves:
		m.Saves = 0
	}
	return m
}

// HourlyGained sums Gained across the included subjects per checkpoint,
// sorted by checkpoint.
func (d DiffResult) HourlyGained() []HourlyPoint {
	byHour := make(map[int64]models.Metrics)
	for _, s := range d.included() {
		for _, iv := range s.Intervals {
			byHour[iv.SnapshotAt] = byHour[iv.SnapshotAt].Add(iv.Gained)
		}
	}

	out := make([]HourlyPoint, 0, len(byHour))
	for at, m := range byHour {
		out = append(out, HourlyPoint{
			Bucket:     fmt.Sprintf("%s %02d", models.SnapshotDateKey(at), at%100),
			SnapshotAt: at,
			Gained:     m,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotAt < out[j].SnapshotAt })
	return out
}

// DailyTotalSnapshots builds per-day aggregates: for every day that has a
// reading, the sum over subjects of each one's latest cumulative reading at
// or before that day, split by platform, plus the counters gained that day.
func (d DiffResult) DailyTotalSnapshots() map[string]models.DaySnapshot {
	series := d.included()

	dateSet := make(map[string]struct{})
	for _, s := range series {
		for _, iv := range s.Intervals {
			dateSet[models.SnapshotDateKey(iv.SnapshotAt)] = struct{}{}
		}
	}
	dates := make([]string, 0, len(dateSet))
	for date := range dateSet {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make(map[string]models.DaySnapshot, len(dates))
	cursor := make([]int, len(series))
	latest := make([]*models.Metrics, len(series))

	for _, date := range dates {
		day := models.DaySnapshot{ByPlatform: make(map[string]models.Metrics)}
		for i, s := range series {
			for cursor[i] < len(s.Intervals) && models.SnapshotDateKey(s.Intervals[cursor[i]].SnapshotAt) <= date {
				iv := s.Intervals[cursor[i]]
				cum := iv.Cumulative
				latest[i] = &cum
				day.Gained = day.Gained.Add(iv.Gained)
				cursor[i]++
			}
			if latest[i] == nil {
				continue
			}
			day.Totals = day.Totals.Add(*latest[i])
			day.ByPlatform[s.Platform] = day.ByPlatform[s.Platform].Add(*latest[i])
		}
		out[date] = day
	}
	return out
}

// included returns the series that feed campaign-level aggregates. Video
// subjects are used where present; campaign/platform subjects only fill in
// for platforms that have no video-level readings, so nothing is counted
// twice.
func (d DiffResult) included() []SubjectSeries {
	videoPlatforms := make(map[string]struct{})
	for _, s := range d.Series {
		if s.Kind != models.SubjectCampaignPlatform {
			videoPlatforms[s.Platform] = struct{}{}
		}
	}

	out := make([]SubjectSeries, 0, len(d.Series))
	for _, s := range d.Series {
		if s.Kind == models.SubjectCampaignPlatform {
			if _, ok := videoPlatforms[s.Platform]; ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// GainedTotal sums Gained over every included interval.
func (d DiffResult) GainedTotal() models.Metrics {
	var total models.Metrics
	for _, s := range d.included() {
		for _, iv := range s.Intervals {
			total = total.Add(iv.Gained)
		}
	}
	return total
}
