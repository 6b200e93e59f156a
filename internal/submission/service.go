package submission

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/emoscreen/internal/grading"
	"github.com/mind-engage/emoscreen/internal/logger"
	"github.com/mind-engage/emoscreen/internal/schema"
)

// Service captures drafts. Scoring lives in package scoring.
type Service struct {
	store    Store
	schemas  *schema.Cache
	resolver grading.Resolver
	log      *logger.Logger
	now      func() time.Time
}

func NewService(store Store, schemas *schema.Cache, resolver grading.Resolver, log *logger.Logger) *Service {
	if resolver == nil {
		resolver = grading.NewDefaultResolver()
	}
	return &Service{store: store, schemas: schemas, resolver: resolver, log: logger.OrNop(log), now: time.Now}
}

func (s *Service) Store() Store { return s.store }

// Create opens a draft pinned to the form's current configuration version.
func (s *Service) Create(ctx context.Context, formCode string, d Demographics) (Submission, error) {
	reg, err := s.schemas.Get(ctx)
	if err != nil {
		return Submission{}, err
	}
	form, err := reg.Form(formCode)
	if err != nil {
		return Submission{}, err
	}
	now := s.now().Unix()
	sub := Submission{
		ID:            uuid.NewString(),
		FormCode:      form.Code,
		ConfigVersion: form.Version,
		Demographics:  d,
		Status:        StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return Submission{}, err
	}
	s.log.Info("submission created", "id", sub.ID, "form", form.Code, "version", form.Version)
	return sub, nil
}

func (s *Service) UpdateDemographics(ctx context.Context, id string, d Demographics) (Submission, error) {
	return s.store.UpdateDemographics(ctx, id, d)
}

// SaveAnswers resolves raw responses keyed by question code and stores
// them. Nothing is written when any response is rejected.
func (s *Service) SaveAnswers(ctx context.Context, id string, raw map[string]any) ([]Answer, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == StatusFinal {
		return nil, ErrFinal
	}
	reg, err := s.schemas.Get(ctx)
	if err != nil {
		return nil, err
	}
	form, err := reg.Form(sub.FormCode)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(raw))
	for code := range raw {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	answers := make([]Answer, 0, len(codes))
	for _, code := range codes {
		q, ok := form.Question(code)
		if !ok {
			return nil, fmt.Errorf("%w: %s not in %s", ErrUnknownQuestion, code, form.Code)
		}
		res, err := s.resolver.Resolve(ctx, q, raw[code])
		if err != nil {
			return nil, err
		}
		answers = append(answers, Answer{SubmissionID: id, QuestionCode: code, Values: res.Values, Score: res.Score})
	}
	if err := s.store.SaveAnswers(ctx, id, answers); err != nil {
		return nil, err
	}
	s.log.Debug("answers saved", "id", id, "count", len(answers))
	return answers, nil
}
