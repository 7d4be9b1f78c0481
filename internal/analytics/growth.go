package analytics

import (
	"math"

	"github.com/radiusdt/vidpulse/internal/models"
)

// DailyPoint is one day of a campaign's daily series.
type DailyPoint struct {
	Date  string `json:"date"`
	Posts int64  `json:"posts"`
	models.Metrics
}

// Growth is a signed percentage change: Value is the magnitude rounded to
// one decimal place.
type Growth struct {
	Value      float64 `json:"value"`
	IsPositive bool    `json:"isPositive"`
}

// GrowthMetrics lists the metrics reported by CalculateAllGrowth.
var GrowthMetrics = []string{
	models.MetricViews,
	models.MetricLikes,
	models.MetricComments,
	models.MetricShares,
	models.MetricSaves,
	models.MetricPosts,
	models.MetricEngagement,
}

// CalculateGrowth compares the first floor(N/2) days of series with the
// remaining days. Counters are summed per half; engagement is a per-day rate
// and is averaged per half instead.
func CalculateGrowth(series []DailyPoint, metric string) Growth {
	if len(series) < 2 {
		return Growth{Value: 0, IsPositive: true}
	}

	mid := len(series) / 2
	first, second := series[:mid], series[mid:]

	var a, b float64
	if metric == models.MetricEngagement {
		a, b = averageEngagement(first), averageEngagement(second)
	} else {
		a, b = sumMetric(first, metric), sumMetric(second, metric)
	}
	return growthBetween(a, b)
}

// CalculateAllGrowth runs CalculateGrowth for every metric in GrowthMetrics.
func CalculateAllGrowth(series []DailyPoint) map[string]Growth {
	out := make(map[string]Growth, len(GrowthMetrics))
	for _, m := range GrowthMetrics {
		out[m] = CalculateGrowth(series, m)
	}
	return out
}

func growthBetween(first, second float64) Growth {
	if first == 0 {
		if second > 0 {
			return Growth{Value: 100, IsPositive: true}
		}
		return Growth{Value: 0, IsPositive: true}
	}
	pct := (second - first) / first * 100
	return Growth{
		Value:      math.Round(math.Abs(pct)*10) / 10,
		IsPositive: pct >= 0,
	}
}

func sumMetric(days []DailyPoint, metric string) float64 {
	var total int64
	for _, d := range days {
		if metric == models.MetricPosts {
			total += d.Posts
			continue
		}
		total += d.Get(metric)
	}
	return float64(total)
}

func averageEngagement(days []DailyPoint) float64 {
	if len(days) == 0 {
		return 0
	}
	var sum float64
	for _, d := range days {
		sum += EngagementRate(d.Metrics)
	}
	return sum / float64(len(days))
}

// EngagementRate is (likes+comments+shares) / max(views, 1) * 100.
func EngagementRate(m models.Metrics) float64 {
	views := m.Views
	if views < 1 {
		views = 1
	}
	return float64(m.Likes+m.Comments+m.Shares) / float64(views) * 100
}
