// Package postgres implements the record store on PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/store"
)

//go:embed schema.sql
var schema string

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewPool creates and verifies a pgxpool connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the embedded schema. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) PostingExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM postings WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("posting exists: %w", err)
	}
	return exists, nil
}

func (s *Store) InsertPosting(ctx context.Context, p *jobs.Posting) error {
	techStack := p.TechStack
	if techStack == nil {
		techStack = []string{}
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO postings (id, title, company, url, source_id, description_html,
		                       salary_min, salary_max, tech_stack, seniority, match_score, match_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at`,
		p.ID, p.Title, p.Company, p.URL, p.SourceID, p.DescriptionHTML,
		p.SalaryMin, p.SalaryMax, techStack, p.Seniority, p.MatchScore, p.MatchReason,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert posting: %w", mapError(err))
	}
	return nil
}

// repinAnalysesSQL keeps every stored analysis score equal to the posting score.
const repinAnalysesSQL = `UPDATE applications
	SET match_analysis = jsonb_set(match_analysis, '{score}', to_jsonb($2::int))
	WHERE posting_id::text = $1
	  AND jsonb_typeof(match_analysis) = 'object'
	  AND match_analysis->'score' IS DISTINCT FROM to_jsonb($2::int)`

const postingColumns = `id::text, title, company, url, source_id, description_html,
	salary_min, salary_max, tech_stack, seniority, match_score, match_reason, created_at`

func scanPosting(row pgx.Row) (*jobs.Posting, error) {
	var p jobs.Posting
	err := row.Scan(
		&p.ID, &p.Title, &p.Company, &p.URL, &p.SourceID, &p.DescriptionHTML,
		&p.SalaryMin, &p.SalaryMax, &p.TechStack, &p.Seniority, &p.MatchScore, &p.MatchReason, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPosting(ctx context.Context, id string) (*jobs.Posting, error) {
	p, err := scanPosting(s.pool.QueryRow(ctx, `SELECT `+postingColumns+` FROM postings WHERE id::text = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get posting %q: %w", id, mapError(err))
	}
	return p, nil
}

// UpdatePostingScore also re-pins the score of every stored analysis on the posting,
// in the same transaction.
func (s *Store) UpdatePostingScore(ctx context.Context, id string, score int, reason string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE postings SET match_score = $2, match_reason = $3 WHERE id::text = $1`,
			id, score, reason,
		)
		if err != nil {
			return fmt.Errorf("update posting score: %w", mapError(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update posting score %q: %w", id, store.ErrNotFound)
		}

		_, err = tx.Exec(ctx, repinAnalysesSQL, id, score)
		if err != nil {
			return fmt.Errorf("re-pin analyses: %w", mapError(err))
		}
		return nil
	})
}

func (s *Store) ListPostings(ctx context.Context, q store.Query) ([]*jobs.Posting, error) {
	limit := any(nil)
	if q.Limit > 0 {
		limit = q.Limit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM postings
		 WHERE match_score > $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		q.ScoreAbove, limit, q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list postings query: %w", err)
	}
	defer rows.Close()

	postings := make([]*jobs.Posting, 0)
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("list postings scan: %w", err)
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list postings rows: %w", err)
	}
	return postings, nil
}

func (s *Store) CountPostings(ctx context.Context, q store.Query) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM postings WHERE match_score > $1`, q.ScoreAbove).Scan(&count); err != nil {
		return 0, fmt.Errorf("count postings: %w", err)
	}
	return count, nil
}

func (s *Store) LatestProfile(ctx context.Context, candidateID string) (*profile.Profile, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT content FROM profiles WHERE candidate_id = $1`, candidateID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("profile for candidate %q: %w", candidateID, mapError(err))
	}

	var p profile.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

func (s *Store) SaveProfile(ctx context.Context, candidateID string, p *profile.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (candidate_id, content, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (candidate_id) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`,
		candidateID, raw,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

const applicationColumns = `candidate_id, posting_id::text, status, match_analysis, tailored_content, created_at, updated_at`

func scanApplication(row pgx.Row) (*jobs.Application, error) {
	var (
		app              jobs.Application
		status           string
		analysis, tailor []byte
	)
	if err := row.Scan(&app.CandidateID, &app.PostingID, &status, &analysis, &tailor, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return nil, err
	}

	parsed, err := jobs.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	app.Status = parsed

	if len(analysis) > 0 {
		app.MatchAnalysis = &jobs.Analysis{}
		if err := json.Unmarshal(analysis, app.MatchAnalysis); err != nil {
			return nil, fmt.Errorf("decode match analysis: %w", err)
		}
	}
	if len(tailor) > 0 {
		app.TailoredContent = &profile.Profile{}
		if err := json.Unmarshal(tailor, app.TailoredContent); err != nil {
			return nil, fmt.Errorf("decode tailored content: %w", err)
		}
	}
	return &app, nil
}

func (s *Store) GetApplication(ctx context.Context, candidateID, postingID string) (*jobs.Application, error) {
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE candidate_id = $1 AND posting_id::text = $2`,
		candidateID, postingID,
	))
	if err != nil {
		return nil, fmt.Errorf("get application %s/%s: %w", candidateID, postingID, mapError(err))
	}
	return app, nil
}

// UpsertApplication writes in one statement. The CASE keeps an applied row applied
// even when a concurrent writer raced past the caller's read.
func (s *Store) UpsertApplication(ctx context.Context, app *jobs.Application) (*jobs.Application, error) {
	analysis, err := marshalNullable(app.MatchAnalysis)
	if err != nil {
		return nil, fmt.Errorf("encode match analysis: %w", err)
	}
	content, err := marshalNullable(app.TailoredContent)
	if err != nil {
		return nil, fmt.Errorf("encode tailored content: %w", err)
	}

	status := jobs.Advance("", app.Status)

	saved, err := scanApplication(s.pool.QueryRow(ctx,
		`INSERT INTO applications (candidate_id, posting_id, status, match_analysis, tailored_content)
		 VALUES ($1, $2::uuid, $3, $4, $5)
		 ON CONFLICT (candidate_id, posting_id) DO UPDATE SET
		   status = CASE WHEN applications.status = 'applied' THEN 'applied' ELSE EXCLUDED.status END,
		   match_analysis = COALESCE(EXCLUDED.match_analysis, applications.match_analysis),
		   tailored_content = COALESCE(EXCLUDED.tailored_content, applications.tailored_content),
		   updated_at = now()
		 RETURNING `+applicationColumns,
		app.CandidateID, app.PostingID, string(status), analysis, content,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert application: %w", mapError(err))
	}
	return saved, nil
}

func (s *Store) MarkApplied(ctx context.Context, candidateID, postingID string) (*jobs.Application, error) {
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`INSERT INTO applications (candidate_id, posting_id, status)
		 VALUES ($1, $2::uuid, 'applied')
		 ON CONFLICT (candidate_id, posting_id) DO UPDATE SET status = 'applied', updated_at = now()
		 RETURNING `+applicationColumns,
		candidateID, postingID,
	))
	if err != nil {
		return nil, fmt.Errorf("mark applied: %w", mapError(err))
	}
	return app, nil
}

func (s *Store) ListApplications(ctx context.Context, candidateID string, status jobs.Status) ([]*jobs.Application, error) {
	const base = `SELECT ` + applicationColumns + ` FROM applications WHERE candidate_id = $1`

	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = s.pool.Query(ctx, base+` AND status = $2 ORDER BY updated_at DESC, posting_id`, candidateID, string(status))
	} else {
		rows, err = s.pool.Query(ctx, base+` ORDER BY updated_at DESC, posting_id`, candidateID)
	}
	if err != nil {
		return nil, fmt.Errorf("list applications query: %w", err)
	}
	defer rows.Close()

	apps := make([]*jobs.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("list applications scan: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications rows: %w", err)
	}
	return apps, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case *jobs.Analysis:
		if val == nil {
			return nil, nil
		}
	case *profile.Profile:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

// mapError converts driver errors into the store sentinels.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, store.ErrDuplicate)
		case codeForeignKeyViolation, "22P02":
			// A missing parent row or a malformed uuid both mean the referenced posting is absent.
			return fmt.Errorf("%s: %w", pgErr.Message, store.ErrNotFound)
		}
	}
	return err
}
