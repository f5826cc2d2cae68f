package services

import (
	"sort"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// counter counts string occurrences and remembers first-seen order,
// so the mode breaks ties by first encounter.
type counter struct {
	counts map[string]int
	order  []string
	total  int
}

func newCounter() *counter {
	return &counter{counts: map[string]int{}}
}

// Add counts v. Empty values are ignored.
func (c *counter) Add(v string) {
	if v == "" {
		return
	}
	if _, seen := c.counts[v]; !seen {
		c.order = append(c.order, v)
	}
	c.counts[v]++
	c.total++
}

// Total returns the number of non-empty observations.
func (c *counter) Total() int { return c.total }

// Mode returns the most frequent value; ties go to the value seen first.
func (c *counter) Mode() (string, int, bool) {
	best, bestCount := "", 0
	for _, v := range c.order {
		if n := c.counts[v]; n > bestCount {
			best, bestCount = v, n
		}
	}
	return best, bestCount, bestCount > 0
}

// Top returns up to k values by descending count, ties by first encounter.
// k <= 0 returns all.
func (c *counter) Top(k int) []domain.TopicCount {
	out := make([]domain.TopicCount, 0, len(c.order))
	for _, v := range c.order {
		out = append(out, domain.TopicCount{Topic: v, Count: c.counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Frequencies returns a copy of the raw counts.
func (c *counter) Frequencies() map[string]int {
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// mean accumulates a running sum over present observations only.
type mean struct {
	sum float64
	n   int
}

func (m *mean) Add(v float64) {
	m.sum += v
	m.n++
}

// Metric returns the rounded mean, or an absent metric with no observations.
func (m mean) Metric() domain.Metric {
	if m.n == 0 {
		return domain.Metric{}
	}
	return domain.Some(domain.Round3(m.sum / float64(m.n)))
}

// mapMean averages a ScoreMap per key, each key over the records containing it.
type mapMean map[string]*mean

func (mm mapMean) Add(s domain.ScoreMap) {
	for k, v := range s {
		acc, ok := mm[k]
		if !ok {
			acc = &mean{}
			mm[k] = acc
		}
		acc.Add(v)
	}
}

// ScoreMap returns the per-key means, or nil when no key was observed.
func (mm mapMean) ScoreMap() domain.ScoreMap {
	if len(mm) == 0 {
		return nil
	}
	out := make(domain.ScoreMap, len(mm))
	for k, acc := range mm {
		out[k] = acc.Metric().Value
	}
	return out
}
