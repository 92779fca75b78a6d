package questionnaire

import (
	"context"
	"fmt"
	"strings"

	"github.com/praxis-platform/praxis/internal/audit"
	"github.com/praxis-platform/praxis/internal/shared"
)

// RepositoryPort defines data access methods for questionnaires.
type RepositoryPort interface {
	List(ctx context.Context, limit, offset int) ([]Questionnaire, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id int64) (Questionnaire, error)
	Create(ctx context.Context, title, question string, options []string, createdBy int64) (Questionnaire, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	CastVote(ctx context.Context, questionnaireID, optionID, userID int64) error
	HasOption(ctx context.Context, questionnaireID, optionID int64) (bool, error)
	Results(ctx context.Context, questionnaireID int64) (Results, error)
}

// Service handles questionnaire business logic.
type Service struct {
	repo  RepositoryPort
	audit audit.Recorder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{repo: repo, audit: recorder}
}

// List returns a page of questionnaires.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Questionnaire, shared.Pagination, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	list, err := s.repo.List(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if list == nil {
		list = []Questionnaire{}
	}
	return list, p, nil
}

// Get fetches one questionnaire with options.
func (s *Service) Get(ctx context.Context, id int64) (Questionnaire, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a draft questionnaire. At least two options are
// required.
func (s *Service) Create(ctx context.Context, title, question string, options []string, createdBy int64) (Questionnaire, error) {
	title = strings.TrimSpace(title)
	question = strings.TrimSpace(question)
	cleaned := make([]string, 0, len(options))
	for _, opt := range options {
		if opt = strings.TrimSpace(opt); opt != "" {
			cleaned = append(cleaned, opt)
		}
	}
	if title == "" || question == "" {
		return Questionnaire{}, fmt.Errorf("%w: title and question required", shared.ErrValidation)
	}
	if len(cleaned) < 2 {
		return Questionnaire{}, fmt.Errorf("%w: at least two options required", shared.ErrValidation)
	}
	q, err := s.repo.Create(ctx, title, question, cleaned, createdBy)
	if err != nil {
		return Questionnaire{}, err
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:  createdBy,
		Action:   "questionnaire.created",
		Entity:   "questionnaire",
		EntityID: fmt.Sprintf("%d", q.ID),
	})
	return q, nil
}

// Publish opens a draft questionnaire for voting.
func (s *Service) Publish(ctx context.Context, id, actorID int64) error {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if q.Status != StatusDraft {
		return fmt.Errorf("%w: only drafts can be published", shared.ErrValidation)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusPublished); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   "questionnaire.published",
		Entity:   "questionnaire",
		EntityID: fmt.Sprintf("%d", id),
	})
	return nil
}

// Vote casts one vote. Voting twice or on an unpublished questionnaire
// fails.
func (s *Service) Vote(ctx context.Context, questionnaireID, optionID, userID int64) error {
	q, err := s.repo.Get(ctx, questionnaireID)
	if err != nil {
		return err
	}
	if q.Status != StatusPublished {
		return fmt.Errorf("%w: questionnaire is not open for voting", shared.ErrValidation)
	}
	ok, err := s.repo.HasOption(ctx, questionnaireID, optionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unknown option", shared.ErrValidation)
	}
	return s.repo.CastVote(ctx, questionnaireID, optionID, userID)
}

// Results tallies the questionnaire's votes.
func (s *Service) Results(ctx context.Context, id int64) (Results, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Results{}, err
	}
	return s.repo.Results(ctx, id)
}

// Owner returns the creator id, for self-access checks on results.
func (s *Service) Owner(ctx context.Context, id int64) (int64, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return q.CreatedBy, nil
}
