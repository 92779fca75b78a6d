package questionnaire

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-platform/praxis/internal/platform/db"
	"github.com/praxis-platform/praxis/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns questionnaires newest first, without options.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Questionnaire, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, question, status, created_by, created_at, updated_at
		 FROM questionnaires ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Questionnaire
	for rows.Next() {
		var q Questionnaire
		if err := rows.Scan(&q.ID, &q.Title, &q.Question, &q.Status, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Count returns the total number of questionnaires.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questionnaires`).Scan(&total)
	return total, err
}

// Get fetches one questionnaire with its options.
func (r *Repository) Get(ctx context.Context, id int64) (Questionnaire, error) {
	var q Questionnaire
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, question, status, created_by, created_at, updated_at
		 FROM questionnaires WHERE id = $1`, id).
		Scan(&q.ID, &q.Title, &q.Question, &q.Status, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Questionnaire{}, shared.ErrNotFound
		}
		return Questionnaire{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, label FROM questionnaire_options WHERE questionnaire_id = $1 ORDER BY id`, id)
	if err != nil {
		return Questionnaire{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var opt Option
		if err := rows.Scan(&opt.ID, &opt.Label); err != nil {
			return Questionnaire{}, err
		}
		q.Options = append(q.Options, opt)
	}
	return q, rows.Err()
}

// Create inserts a questionnaire and its options in one transaction.
func (r *Repository) Create(ctx context.Context, title, question string, options []string, createdBy int64) (Questionnaire, error) {
	var q Questionnaire
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO questionnaires (title, question, status, created_by, created_at, updated_at)
			 VALUES ($1, $2, 'DRAFT', $3, NOW(), NOW())
			 RETURNING id, title, question, status, created_by, created_at, updated_at`,
			title, question, createdBy).
			Scan(&q.ID, &q.Title, &q.Question, &q.Status, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
		if err != nil {
			return err
		}
		for _, label := range options {
			var opt Option
			if err := tx.QueryRow(ctx,
				`INSERT INTO questionnaire_options (questionnaire_id, label) VALUES ($1, $2)
				 RETURNING id, label`, q.ID, label).
				Scan(&opt.ID, &opt.Label); err != nil {
				return err
			}
			q.Options = append(q.Options, opt)
		}
		return nil
	})
	if err != nil {
		return Questionnaire{}, err
	}
	return q, nil
}

// UpdateStatus transitions a questionnaire's lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questionnaires SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CastVote records one vote. A second vote by the same user trips the
// unique constraint and maps to ErrDuplicate.
func (r *Repository) CastVote(ctx context.Context, questionnaireID, optionID, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO questionnaire_votes (questionnaire_id, option_id, user_id, cast_at)
		 VALUES ($1, $2, $3, NOW())`, questionnaireID, optionID, userID)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

// HasOption reports whether optionID belongs to the questionnaire.
func (r *Repository) HasOption(ctx context.Context, questionnaireID, optionID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM questionnaire_options WHERE id = $1 AND questionnaire_id = $2)`,
		optionID, questionnaireID).Scan(&exists)
	return exists, err
}

// Results tallies votes per option.
func (r *Repository) Results(ctx context.Context, questionnaireID int64) (Results, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.label, COUNT(v.option_id)
		 FROM questionnaire_options o
		 LEFT JOIN questionnaire_votes v ON v.option_id = o.id
		 WHERE o.questionnaire_id = $1
		 GROUP BY o.id, o.label
		 ORDER BY o.id`, questionnaireID)
	if err != nil {
		return Results{}, err
	}
	defer rows.Close()

	res := Results{QuestionnaireID: questionnaireID}
	for rows.Next() {
		var opt OptionResult
		if err := rows.Scan(&opt.OptionID, &opt.Label, &opt.Votes); err != nil {
			return Results{}, err
		}
		res.TotalVotes += opt.Votes
		res.Options = append(res.Options, opt)
	}
	return res, rows.Err()
}
