package submission

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type ListOpts struct {
	FormCode string
	Status   Status // empty matches any
	Limit    int
}

type Store interface {
	Create(ctx context.Context, s Submission) error
	Get(ctx context.Context, id string) (Submission, error)
	UpdateDemographics(ctx context.Context, id string, d Demographics) (Submission, error)
	// SaveAnswers upserts answers by question code; drafts only.
	SaveAnswers(ctx context.Context, id string, answers []Answer) error
	Answers(ctx context.Context, id string) ([]Answer, error)
	ScaleScores(ctx context.Context, id string) ([]ScaleScore, error)
	List(ctx context.Context, opts ListOpts) ([]Submission, error)
	// ApplyOutcome replaces the scale rows and totals in one step. finalize
	// moves a draft to FINAL; otherwise the submission must already be final.
	// It fails with ErrStale when the submission's revision no longer matches
	// o.Revision.
	ApplyOutcome(ctx context.Context, id string, o Outcome, finalize bool) (Submission, error)
}

type memoryStore struct {
	mu      sync.RWMutex
	subs    map[string]Submission
	answers map[string]map[string]Answer
	scales  map[string][]ScaleScore
	now     func() time.Time
}

func NewInMemoryStore() Store {
	return &memoryStore{
		subs:    map[string]Submission{},
		answers: map[string]map[string]Answer{},
		scales:  map[string][]ScaleScore{},
		now:     time.Now,
	}
}

func (m *memoryStore) Create(_ context.Context, s Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.ID] = s
	m.answers[s.ID] = map[string]Answer{}
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) UpdateDemographics(_ context.Context, id string, d Demographics) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	if s.Status == StatusFinal {
		return Submission{}, ErrFinal
	}
	s.Demographics = d
	s.UpdatedAt = m.now().Unix()
	m.subs[id] = s
	return s, nil
}

func (m *memoryStore) SaveAnswers(_ context.Context, id string, answers []Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return ErrNotFound
	}
	if s.Status == StatusFinal {
		return ErrFinal
	}
	now := m.now().Unix()
	for _, a := range answers {
		a.SubmissionID = id
		a.UpdatedAt = now
		m.answers[id][a.QuestionCode] = a
	}
	s.UpdatedAt = now
	s.Revision++
	m.subs[id] = s
	return nil
}

func (m *memoryStore) Answers(_ context.Context, id string) ([]Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.subs[id]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Answer, 0, len(m.answers[id]))
	for _, a := range m.answers[id] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionCode < out[j].QuestionCode })
	return out, nil
}

func (m *memoryStore) ScaleScores(_ context.Context, id string) ([]ScaleScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.subs[id]; !ok {
		return nil, ErrNotFound
	}
	return append([]ScaleScore(nil), m.scales[id]...), nil
}

func (m *memoryStore) List(_ context.Context, opts ListOpts) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Submission
	for _, s := range m.subs {
		if opts.FormCode != "" && s.FormCode != opts.FormCode {
			continue
		}
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) ApplyOutcome(_ context.Context, id string, o Outcome, finalize bool) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	if !finalize && s.Status != StatusFinal {
		return Submission{}, ErrNotFinal
	}
	if s.Revision != o.Revision {
		return Submission{}, ErrStale
	}
	now := m.now().Unix()
	rows := make([]ScaleScore, len(o.Scales))
	for i, sc := range o.Scales {
		sc.SubmissionID = id
		sc.CreatedAt = now
		rows[i] = sc
	}
	m.scales[id] = rows
	applyTotals(&s, o, now)
	m.subs[id] = s
	return s, nil
}

func applyTotals(s *Submission, o Outcome, now int64) {
	s.TotalScore = decimal.NewNullDecimal(o.TotalScore)
	s.TotalScoreMaxDisplay = o.TotalMax
	s.HasConcerns = o.HasConcerns
	s.Computed = o.Computed
	s.UpdatedAt = now
	if s.Status != StatusFinal {
		s.Status = StatusFinal
		s.FinalizedAt = now
	}
}
