package models

// Metric names used for per-metric reporting (growth, negative delta flags).
const (
	MetricViews      = "views"
	MetricLikes      = "likes"
	MetricComments   = "comments"
	MetricShares     = "shares"
	MetricSaves      = "saves"
	MetricPosts      = "posts"
	MetricEngagement = "engagement"
)

// CounterMetrics lists the five engagement counters in reporting order.
var CounterMetrics = []string{MetricViews, MetricLikes, MetricComments, MetricShares, MetricSaves}

// Metrics is the set of engagement counters tracked for a social video.
// Depending on context the values are cumulative (as scraped) or deltas.
type Metrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Saves    int64 `json:"saves"`
}

// Add returns the element-wise sum of m and o.
func (m Metrics) Add(o Metrics) Metrics {
	return Metrics{
		Views:    m.Views + o.Views,
		Likes:    m.Likes + o.Likes,
		Comments: m.Comments + o.Comments,
		Shares:   m.Shares + o.Shares,
		Saves:    m.Saves + o.Saves,
	}
}

// Sub returns the element-wise difference m - o.
func (m Metrics) Sub(o Metrics) Metrics {
	return Metrics{
		Views:    m.Views - o.Views,
		Likes:    m.Likes - o.Likes,
		Comments: m.Comments - o.Comments,
		Shares:   m.Shares - o.Shares,
		Saves:    m.Saves - o.Saves,
	}
}

// Get returns the counter with the given metric name, or 0 for unknown names.
func (m Metrics) Get(name string) int64 {
	switch name {
	case MetricViews:
		return m.Views
	case MetricLikes:
		return m.Likes
	case MetricComments:
		return m.Comments
	case MetricShares:
		return m.Shares
	case MetricSaves:
		return m.Saves
	}
	return 0
}

// IsZero reports whether every counter is zero.
func (m Metrics) IsZero() bool {
	return m == Metrics{}
}

// Totals is a post count together with summed metrics.
type Totals struct {
	Posts int64 `json:"posts"`
	Metrics
}

// AddPost folds one post's metrics into the totals.
func (t *Totals) AddPost(m Metrics) {
	t.Posts++
	t.Metrics = t.Metrics.Add(m)
}
