package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
)

// Ensure ProfileStore and LineStore implement the interfaces.
var (
	_ driven.ProfileStore = (*ProfileStore)(nil)
	_ driven.LineStore    = (*LineStore)(nil)
)

// ProfileStore is an in-memory implementation of driven.ProfileStore.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.EntityProfile
}

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.EntityProfile)}
}

// Replace stores the profile, discarding any previous one.
func (s *ProfileStore) Replace(_ context.Context, profile *domain.EntityProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.EntityID] = cloneProfile(profile)
	return nil
}

// Get retrieves a profile.
func (s *ProfileStore) Get(_ context.Context, entityID string) (*domain.EntityProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[entityID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := cloneProfile(&p)
	return &c, nil
}

// List returns every profile ordered by entity id.
func (s *ProfileStore) List(_ context.Context) ([]domain.EntityProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EntityProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, cloneProfile(&p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

// ReferencedVectorPaths returns every non-empty vector path.
func (s *ProfileStore) ReferencedVectorPaths(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, p := range s.profiles {
		if p.VectorPath != "" {
			out = append(out, p.VectorPath)
		}
	}
	sort.Strings(out)
	return out, nil
}

// SetVectorPath updates the vector location of an existing profile.
func (s *ProfileStore) SetVectorPath(_ context.Context, entityID, path, manifestVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[entityID]
	if !ok {
		return domain.ErrNotFound
	}
	p.VectorPath = path
	p.ManifestVersion = manifestVersion
	s.profiles[entityID] = p
	return nil
}

// Search matches term against entity ids, labels and topics, case-insensitively.
func (s *ProfileStore) Search(ctx context.Context, term string, limit int) ([]domain.EntityProfile, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	out := []domain.EntityProfile{}
	for _, p := range all {
		if matches(&p, term) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func matches(p *domain.EntityProfile, term string) bool {
	if strings.Contains(strings.ToLower(p.EntityID), term) {
		return true
	}
	for _, name := range domain.JudicialLabels {
		if strings.Contains(strings.ToLower(string(p.Judicial.Label(name))), term) {
			return true
		}
	}
	for _, tc := range p.RecurringTopics {
		if strings.Contains(tc.Topic, term) {
			return true
		}
	}
	return false
}

func (s *ProfileStore) applySummary(entityID string, summary domain.LineSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[entityID]
	if !ok {
		return
	}
	p.ApplyLineSummary(summary)
	s.profiles[entityID] = cloneProfile(&p)
}

// LineStore is an in-memory implementation of driven.LineStore.
// It writes line summaries onto the profiles held by its ProfileStore.
type LineStore struct {
	mu       sync.RWMutex
	lines    map[string][]domain.JurisprudentialLine
	profiles *ProfileStore
}

// NewLineStore creates a new in-memory line store.
func NewLineStore(profiles *ProfileStore) *LineStore {
	return &LineStore{lines: make(map[string][]domain.JurisprudentialLine), profiles: profiles}
}

// ReplaceForEntity replaces the entity's lines and profile summary.
func (s *LineStore) ReplaceForEntity(
	_ context.Context, entityID string, lines []domain.JurisprudentialLine, summary domain.LineSummary,
) error {
	s.mu.Lock()
	copied := make([]domain.JurisprudentialLine, len(lines))
	copy(copied, lines)
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].Topic < copied[j].Topic })
	s.lines[entityID] = copied
	s.mu.Unlock()

	if s.profiles != nil {
		s.profiles.applySummary(entityID, summary)
	}
	return nil
}

// ListByEntity returns the entity's lines ordered by topic.
func (s *LineStore) ListByEntity(_ context.Context, entityID string) ([]domain.JurisprudentialLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.JurisprudentialLine, len(s.lines[entityID]))
	copy(out, s.lines[entityID])
	return out, nil
}

func cloneProfile(p *domain.EntityProfile) domain.EntityProfile {
	c := *p
	c.CategoricalFrequency = make(map[string]map[string]int, len(p.CategoricalFrequency))
	for k, v := range p.CategoricalFrequency {
		inner := make(map[string]int, len(v))
		for vk, vv := range v {
			inner[vk] = vv
		}
		c.CategoricalFrequency[k] = inner
	}
	for _, name := range domain.JudicialMaps {
		c.Judicial.SetMap(name, cloneScores(p.Judicial.Map(name)))
	}
	for _, name := range domain.CognitiveSections {
		m, _ := p.Cognition.Section(name)
		c.Cognition.SetSection(name, cloneScores(m))
	}
	c.RecurringTopics = append([]domain.TopicCount(nil), p.RecurringTopics...)
	if p.ConsolidatedLines != nil {
		c.ConsolidatedLines = make(map[string]float64, len(p.ConsolidatedLines))
		for k, v := range p.ConsolidatedLines {
			c.ConsolidatedLines[k] = v
		}
	}
	c.InconsistentLines = append([]string(nil), p.InconsistentLines...)
	c.EmergingLines = append([]string(nil), p.EmergingLines...)
	return c
}

func cloneScores(m domain.ScoreMap) domain.ScoreMap {
	if m == nil {
		return nil
	}
	out := make(domain.ScoreMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
