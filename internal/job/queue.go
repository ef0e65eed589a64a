package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("job not found")
	ErrNotRetried = errors.New("only failed or cancelled jobs can be retried")
	ErrActive     = errors.New("job is still pending or running")
)

const (
	queueSize    = 100
	pollInterval = 5 * time.Second
)

const jobColumns = `id, type, status, source, params, progress, result, error, created_at, started_at, completed_at`

// JobQueue manages job persistence and dispatching to a fixed worker pool.
type JobQueue struct {
	db       *sql.DB
	workers  int
	mu       sync.RWMutex
	pending  chan string // job IDs to process
	cancels  map[string]context.CancelFunc
	handlers map[JobType]JobHandler
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *slog.Logger
}

// NewJobQueue creates a queue served by workers goroutines. Register
// handlers, then call Start.
func NewJobQueue(db *sql.DB, workers int) *JobQueue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobQueue{
		db:       db,
		workers:  workers,
		pending:  make(chan string, queueSize),
		cancels:  make(map[string]context.CancelFunc),
		handlers: make(map[JobType]JobHandler),
		ctx:      ctx,
		cancel:   cancel,
		log:      slog.Default().With(slog.String("component", "job")),
	}
}

// Start re-queues unfinished jobs and starts the workers.
func (q *JobQueue) Start() {
	q.resumeJobs()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.wg.Add(1)
	go q.poll()

	q.log.Info("queue started", slog.Int("workers", q.workers))
}

// RegisterHandler registers a handler for a job type
func (q *JobQueue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue creates a new job and adds it to the queue
func (q *JobQueue) Enqueue(jobType JobType, source string, params any) (*Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    StatusPending,
		Source:    source,
		Params:    paramsJSON,
		CreatedAt: time.Now(),
	}

	_, err = q.db.Exec(`
		INSERT INTO jobs (id, type, status, source, params, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, job.Status, job.Source, string(job.Params), job.Progress, job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	q.dispatch(job.ID)
	return job, nil
}

func (q *JobQueue) dispatch(id string) {
	select {
	case q.pending <- id:
	default:
		q.log.Warn("queue full, job will be picked up on next poll", slog.String("job_id", id))
	}
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	job, err := scanJob(q.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (q *JobQueue) ListJobs(status JobStatus) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	job := &Job{}
	var params, result, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	if err := row.Scan(&job.ID, &job.Type, &job.Status, &job.Source, &params, &job.Progress,
		&result, &errMsg, &job.CreatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	if params.Valid {
		job.Params = json.RawMessage(params.String)
	}
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

// CancelJob cancels a pending or running job. The status is written before
// the handler context is cancelled so a late handler result cannot
// overwrite it.
func (q *JobQueue) CancelJob(id string) error {
	res, err := q.db.Exec(`
		UPDATE jobs SET status = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled, time.Now(), id, StatusPending, StatusRunning,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetJob(id); err != nil {
			return err
		}
	}

	q.mu.Lock()
	if cancelFn, ok := q.cancels[id]; ok {
		cancelFn()
		delete(q.cancels, id)
	}
	q.mu.Unlock()
	return nil
}

// RetryJob resets a failed or cancelled job to pending and queues it again.
func (q *JobQueue) RetryJob(id string) (*Job, error) {
	res, err := q.db.Exec(`
		UPDATE jobs SET status = ?, progress = 0, result = NULL, error = NULL, started_at = NULL, completed_at = NULL
		WHERE id = ? AND status IN (?, ?)`,
		StatusPending, id, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetJob(id); err != nil {
			return nil, err
		}
		return nil, ErrNotRetried
	}
	q.dispatch(id)
	return q.GetJob(id)
}

// DeleteJob removes a finished job.
func (q *JobQueue) DeleteJob(id string) error {
	job, err := q.GetJob(id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return ErrActive
	}
	_, err = q.db.Exec("DELETE FROM jobs WHERE id = ?", id)
	return err
}

// UpdateProgress updates the progress of a running job
func (q *JobQueue) UpdateProgress(id string, progress float64) {
	if _, err := q.db.Exec("UPDATE jobs SET progress = ? WHERE id = ? AND status = ?", progress, id, StatusRunning); err != nil {
		q.log.Warn("progress update failed", slog.String("job_id", id), slog.Any("err", err))
	}
}

// Stop cancels running jobs and waits for the workers to exit. Interrupted
// jobs stay running in the database and are resumed on next start.
func (q *JobQueue) Stop() {
	q.cancel()
	q.wg.Wait()
	q.log.Info("queue stopped")
}

func (q *JobQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case jobID := <-q.pending:
			q.processJob(jobID)
		}
	}
}

// poll re-dispatches pending jobs that did not fit into the channel.
func (q *JobQueue) poll() {
	defer q.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			if len(q.pending) > 0 {
				continue
			}
			q.queuePending()
		}
	}
}

// claim moves a job from pending to running. It returns false when another
// worker got there first or the job was cancelled.
func (q *JobQueue) claim(id string, now time.Time) bool {
	res, err := q.db.Exec("UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?",
		StatusRunning, now, id, StatusPending)
	if err != nil {
		q.log.Error("claim failed", slog.String("job_id", id), slog.Any("err", err))
		return false
	}
	n, _ := res.RowsAffected()
	return n == 1
}

func (q *JobQueue) processJob(jobID string) {
	job, err := q.GetJob(jobID)
	if err != nil {
		q.log.Error("failed to load job", slog.String("job_id", jobID), slog.Any("err", err))
		return
	}
	if job.Status != StatusPending {
		return
	}

	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()

	now := time.Now()
	if !q.claim(job.ID, now) {
		return
	}
	job.StartedAt = &now
	job.Status = StatusRunning

	if !ok {
		q.failJob(job, fmt.Sprintf("no handler for job type: %s", job.Type))
		return
	}

	ctx, cancelFn := context.WithCancel(q.ctx)
	q.mu.Lock()
	q.cancels[job.ID] = cancelFn
	q.mu.Unlock()

	updateProgress := func(progress float64) {
		q.UpdateProgress(job.ID, progress)
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		result, err := handler(ctx, job, updateProgress)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		if q.ctx.Err() != nil {
			q.log.Info("job interrupted by shutdown", slog.String("job_id", job.ID))
		} else {
			q.log.Info("job cancelled", slog.String("job_id", job.ID))
		}
	case out := <-done:
		if out.err != nil {
			q.failJob(job, out.err.Error())
		} else {
			q.completeJob(job, out.result)
		}
	}

	q.mu.Lock()
	delete(q.cancels, job.ID)
	q.mu.Unlock()
	cancelFn()
}

func (q *JobQueue) completeJob(job *Job, result any) {
	var resultJSON sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			q.failJob(job, fmt.Sprintf("marshal result: %v", err))
			return
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := q.db.Exec(`UPDATE jobs SET status = ?, progress = 1.0, result = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		StatusCompleted, resultJSON, time.Now(), job.ID, StatusRunning)
	if err != nil {
		q.log.Error("failed to complete job", slog.String("job_id", job.ID), slog.Any("err", err))
		return
	}
	q.log.Info("job completed", slog.String("job_id", job.ID), slog.String("type", string(job.Type)))
}

func (q *JobQueue) failJob(job *Job, errMsg string) {
	_, err := q.db.Exec("UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE id = ? AND status = ?",
		StatusFailed, errMsg, time.Now(), job.ID, StatusRunning)
	if err != nil {
		q.log.Error("failed to mark job failed", slog.String("job_id", job.ID), slog.Any("err", err))
		return
	}
	q.log.Warn("job failed", slog.String("job_id", job.ID), slog.String("error", errMsg))
}

// resumeJobs re-queues pending jobs found in the database on startup.
func (q *JobQueue) resumeJobs() {
	// running jobs were interrupted by a restart
	if _, err := q.db.Exec("UPDATE jobs SET status = ? WHERE status = ?", StatusPending, StatusRunning); err != nil {
		q.log.Error("failed to reset running jobs", slog.Any("err", err))
	}
	if count := q.queuePending(); count > 0 {
		q.log.Info("resumed pending jobs", slog.Int("count", count))
	}
}

func (q *JobQueue) queuePending() int {
	rows, err := q.db.Query("SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC", StatusPending)
	if err != nil {
		q.log.Error("failed to list pending jobs", slog.Any("err", err))
		return 0
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()

	count := 0
	for _, id := range ids {
		select {
		case q.pending <- id:
			count++
		default:
			return count
		}
	}
	return count
}
