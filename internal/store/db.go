package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/baxromumarov/job-harvester/internal/record"
)

//go:embed schema.sql
var schema string

type Store struct {
	db    *sql.DB
	runID string
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithRun returns a view of the store that tags every row it writes with
// runID.
func (s *Store) WithRun(runID string) *Store {
	return &Store{db: s.db, runID: runID}
}

// RunMigrations applies schemaPath, or the bundled schema when the path is
// empty.
func (s *Store) RunMigrations(schemaPath string) error {
	content := schema
	if schemaPath != "" {
		raw, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}
		content = string(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func clampLimit(limit int, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// Job is a stored record with its row metadata.
type Job struct {
	ID int `json:"id"`
	record.JobRecord
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]Job, error) {
	limit = clampLimit(limit, 20, 200)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT
    id,
    url,
    title,
    company,
    category,
    location,
    salary,
    job_type,
    date_posted,
    description_html,
    description_text,
    COALESCE(run_id, ''),
    created_at,
    updated_at
FROM jobs
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		var (
			j     Job
			title string
			cols  [8]sql.NullString
		)

		if err := rows.Scan(
			&j.ID,
			&j.URL,
			&title,
			&cols[0],
			&cols[1],
			&cols[2],
			&cols[3],
			&cols[4],
			&cols[5],
			&cols[6],
			&cols[7],
			&j.RunID,
			&j.CreatedAt,
			&j.UpdatedAt,
		); err != nil {
			return nil, err
		}

		j.Title = &title
		j.Company = fromNull(cols[0])
		j.Category = fromNull(cols[1])
		j.Location = fromNull(cols[2])
		j.Salary = fromNull(cols[3])
		j.JobType = fromNull(cols[4])
		j.DatePosted = fromNull(cols[5])
		j.DescriptionHTML = fromNull(cols[6])
		j.DescriptionText = fromNull(cols[7])

		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *Store) CountJobs(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n)
	return n, err
}

// SaveJob upserts rec by url. A later crawl refreshes known fields but never
// replaces a value with null.
func (s *Store) SaveJob(ctx context.Context, rec record.JobRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (url, title, company, category, location, salary, job_type, date_posted, description_html, description_text, run_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NOW(), NOW())
ON CONFLICT (url) DO UPDATE SET
    title = EXCLUDED.title,
    company = COALESCE(EXCLUDED.company, jobs.company),
    category = COALESCE(EXCLUDED.category, jobs.category),
    location = COALESCE(EXCLUDED.location, jobs.location),
    salary = COALESCE(EXCLUDED.salary, jobs.salary),
    job_type = COALESCE(EXCLUDED.job_type, jobs.job_type),
    date_posted = COALESCE(jobs.date_posted, EXCLUDED.date_posted),
    description_html = COALESCE(EXCLUDED.description_html, jobs.description_html),
    description_text = COALESCE(EXCLUDED.description_text, jobs.description_text),
    run_id = COALESCE(EXCLUDED.run_id, jobs.run_id),
    updated_at = NOW()
`,
		rec.URL,
		record.Value(rec.Title),
		toNull(rec.Company),
		toNull(rec.Category),
		toNull(rec.Location),
		toNull(rec.Salary),
		toNull(rec.JobType),
		toNull(rec.DatePosted),
		toNull(rec.DescriptionHTML),
		toNull(rec.DescriptionText),
		s.runID,
	)
	if err != nil {
		return fmt.Errorf("save job failed: %w", err)
	}
	return nil
}

func (s *Store) SaveLink(ctx context.Context, link record.LinkRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO job_links (url, run_id, created_at)
VALUES ($1, NULLIF($2, ''), NOW())
ON CONFLICT (url) DO NOTHING
`, link.URL, s.runID)
	if err != nil {
		return fmt.Errorf("save link failed: %w", err)
	}
	return nil
}

func (s *Store) DeleteOldJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `
DELETE FROM jobs
WHERE updated_at < $1
`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func toNull(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
