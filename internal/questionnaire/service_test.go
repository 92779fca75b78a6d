package questionnaire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-platform/praxis/internal/shared"
)

type memRepo struct {
	nextID  int64
	nextOpt int64
	byID    map[int64]*Questionnaire
	votes   map[int64]map[int64]int64 // questionnaire -> user -> option
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, nextOpt: 1, byID: map[int64]*Questionnaire{}, votes: map[int64]map[int64]int64{}}
}

func (r *memRepo) List(_ context.Context, limit, offset int) ([]Questionnaire, error) {
	var out []Questionnaire
	for id := r.nextID - 1; id >= 1; id-- {
		if q, ok := r.byID[id]; ok {
			out = append(out, *q)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) Count(context.Context) (int, error) { return len(r.byID), nil }

func (r *memRepo) Get(_ context.Context, id int64) (Questionnaire, error) {
	q, ok := r.byID[id]
	if !ok {
		return Questionnaire{}, shared.ErrNotFound
	}
	return *q, nil
}

func (r *memRepo) Create(_ context.Context, title, question string, options []string, createdBy int64) (Questionnaire, error) {
	q := &Questionnaire{
		ID: r.nextID, Title: title, Question: question, Status: StatusDraft,
		CreatedBy: createdBy, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	for _, label := range options {
		q.Options = append(q.Options, Option{ID: r.nextOpt, Label: label})
		r.nextOpt++
	}
	r.byID[q.ID] = q
	r.nextID++
	return *q, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	q, ok := r.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Status = status
	return nil
}

func (r *memRepo) CastVote(_ context.Context, questionnaireID, optionID, userID int64) error {
	if r.votes[questionnaireID] == nil {
		r.votes[questionnaireID] = map[int64]int64{}
	}
	if _, voted := r.votes[questionnaireID][userID]; voted {
		return shared.ErrDuplicate
	}
	r.votes[questionnaireID][userID] = optionID
	return nil
}

func (r *memRepo) HasOption(_ context.Context, questionnaireID, optionID int64) (bool, error) {
	q, ok := r.byID[questionnaireID]
	if !ok {
		return false, nil
	}
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) Results(_ context.Context, questionnaireID int64) (Results, error) {
	q := r.byID[questionnaireID]
	res := Results{QuestionnaireID: questionnaireID}
	for _, opt := range q.Options {
		count := 0
		for _, chosen := range r.votes[questionnaireID] {
			if chosen == opt.ID {
				count++
			}
		}
		res.TotalVotes += count
		res.Options = append(res.Options, OptionResult{OptionID: opt.ID, Label: opt.Label, Votes: count})
	}
	return res, nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, nil), repo
}

func createPublished(t *testing.T, svc *Service, createdBy int64) Questionnaire {
	t.Helper()
	q, err := svc.Create(context.Background(), "Venue", "Where should we meet?", []string{"Office", "Remote"}, createdBy)
	require.NoError(t, err)
	require.NoError(t, svc.Publish(context.Background(), q.ID, createdBy))
	return q
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "", "q", []string{"a", "b"}, 1)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, "t", "q", []string{"only one", "  "}, 1)
	assert.ErrorIs(t, err, shared.ErrValidation)

	q, err := svc.Create(ctx, "t", "q", []string{" a ", "b"}, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, q.Status)
	require.Len(t, q.Options, 2)
	assert.Equal(t, "a", q.Options[0].Label)
}

func TestPublishOnlyDrafts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	q := createPublished(t, svc, 1)
	err := svc.Publish(ctx, q.ID, 1)
	assert.ErrorIs(t, err, shared.ErrValidation)

	err = svc.Publish(ctx, 999, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVoteOncePerUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	q := createPublished(t, svc, 1)
	optA, optB := q.Options[0].ID, q.Options[1].ID

	require.NoError(t, svc.Vote(ctx, q.ID, optA, 10))
	err := svc.Vote(ctx, q.ID, optB, 10)
	assert.ErrorIs(t, err, shared.ErrDuplicate)

	require.NoError(t, svc.Vote(ctx, q.ID, optB, 11))

	res, err := svc.Results(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalVotes)
}

func TestVoteRequiresPublishedState(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	q, err := svc.Create(ctx, "t", "q", []string{"a", "b"}, 1)
	require.NoError(t, err)

	err = svc.Vote(ctx, q.ID, q.Options[0].ID, 10)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestVoteUnknownOption(t *testing.T) {
	svc, _ := newTestService()

	q := createPublished(t, svc, 1)
	err := svc.Vote(context.Background(), q.ID, 999, 10)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestOwner(t *testing.T) {
	svc, _ := newTestService()

	q := createPublished(t, svc, 42)
	owner, err := svc.Owner(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), owner)
}
