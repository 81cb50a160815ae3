package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crawlforge/internal/model"
)

// PGRegistry is a Registry backed by Postgres, satisfying the durability
// requirement an InMemoryRegistry cannot: a job that reaches JobPending
// survives a process restart, and ClaimPending uses a single
// UPDATE ... RETURNING statement so two workers never claim the same row.
type PGRegistry struct {
	db *sql.DB
}

// NewPGRegistry wraps an already-open, already-migrated *sql.DB.
func NewPGRegistry(db *sql.DB) *PGRegistry {
	return &PGRegistry{db: db}
}

func (r *PGRegistry) Create(ctx context.Context, jobType model.JobType, req model.CrawlRequest, batch []model.CrawlRequest) (model.Job, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return model.Job{}, fmt.Errorf("marshal request: %w", err)
	}

	var batchJSON []byte
	if len(batch) > 0 {
		batchJSON, err = json.Marshal(batch)
		if err != nil {
			return model.Job{}, fmt.Errorf("marshal batch requests: %w", err)
		}
	}

	now := time.Now().UTC()
	job := model.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    model.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   req,
		Requests:  batch,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, job_type, status, progress, request, requests, result, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, NULL, '', $6, $6)
	`, job.ID, string(job.Type), string(job.Status), reqJSON, nullableJSON(batchJSON), now)
	if err != nil {
		return model.Job{}, fmt.Errorf("insert job: %w", err)
	}

	return job, nil
}

func (r *PGRegistry) Get(ctx context.Context, id string) (model.Job, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, job_type, status, progress, request, requests, result, error_message, created_at, updated_at
		FROM jobs WHERE id = $1
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, false, nil
	}
	if err != nil {
		return model.Job{}, false, err
	}
	return job, true, nil
}

func (r *PGRegistry) UpdateStatus(ctx context.Context, id string, to model.JobStatus, result *model.BatchResult, errMsg string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var from model.JobStatus
	if err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, id).Scan(&from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job %s not found", id)
		}
		return fmt.Errorf("select status: %w", err)
	}

	if !transitionAllowed(from, to) {
		return ErrIllegalTransition{From: from, To: to}
	}

	var resultJSON []byte
	if result != nil {
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = $1, result = COALESCE($2, result), error_message = CASE WHEN $3 <> '' THEN $3 ELSE error_message END, updated_at = $4
		WHERE id = $5
	`, string(to), nullableJSON(resultJSON), errMsg, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	return tx.Commit()
}

func (r *PGRegistry) List(ctx context.Context, filter ListFilter) ([]model.Job, error) {
	query := `
		SELECT id, job_type, status, progress, request, requests, result, error_message, created_at, updated_at
		FROM jobs WHERE 1=1
	`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND job_type = $%d", argN)
		args = append(args, string(filter.Type))
		argN++
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ClaimPending moves up to n pending jobs to running in a single statement,
// so concurrent workers racing this call never observe the same row twice.
func (r *PGRegistry) ClaimPending(ctx context.Context, n int) ([]model.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE jobs SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM jobs WHERE status = $3 ORDER BY created_at ASC LIMIT $4 FOR UPDATE SKIP LOCKED
		)
		RETURNING id, job_type, status, progress, request, requests, result, error_message, created_at, updated_at
	`, string(model.JobRunning), time.Now().UTC(), string(model.JobPending), n)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	defer rows.Close()

	var claimed []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, job)
	}
	return claimed, rows.Err()
}

func (r *PGRegistry) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE status IN ($1, $2) AND updated_at < $3
	`, string(model.JobCompleted), string(model.JobFailed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return res.RowsAffected()
}

// rowScanner abstracts over *sql.Row and *sql.Rows so scanJob serves both
// Get (single row) and List/ClaimPending (row sets).
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (model.Job, error) {
	var (
		job        model.Job
		jobType    string
		status     string
		reqJSON    []byte
		batchJSON  []byte
		resultJSON []byte
	)

	if err := s.Scan(&job.ID, &jobType, &status, &job.Progress, &reqJSON, &batchJSON, &resultJSON, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return model.Job{}, err
	}

	job.Type = model.JobType(jobType)
	job.Status = model.JobStatus(status)

	if len(reqJSON) > 0 {
		if err := json.Unmarshal(reqJSON, &job.Request); err != nil {
			return model.Job{}, fmt.Errorf("unmarshal request: %w", err)
		}
	}
	if len(batchJSON) > 0 {
		if err := json.Unmarshal(batchJSON, &job.Requests); err != nil {
			return model.Job{}, fmt.Errorf("unmarshal batch requests: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		job.Result = &model.BatchResult{}
		if err := json.Unmarshal(resultJSON, job.Result); err != nil {
			return model.Job{}, fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return job, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
