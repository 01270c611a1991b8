package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/intervue/internal/store"
)

// SQLSTATE codes mapped to store sentinels.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ store.Store = (*Store)(nil)

// Store implements [store.Store] on PostgreSQL. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, verifies the connection and runs [Migrate].
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, sess store.Session) error {
	sess = store.Normalize(sess)
	const q = `
		INSERT INTO interview_sessions (id, user_id, status, start_time, end_time, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, q, sess.ID, sess.UserID, string(sess.Status), sess.StartTime, sess.EndTime, sess.Metadata)
	if pgCode(err) == uniqueViolation {
		return fmt.Errorf("%w: session %q", store.ErrConflict, sess.ID)
	}
	if err != nil {
		return fmt.Errorf("postgres: create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, status, start_time, end_time, metadata`

func scanSession(row pgx.CollectableRow) (store.Session, error) {
	var (
		sess   store.Session
		status string
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &status, &sess.StartTime, &sess.EndTime, &sess.Metadata); err != nil {
		return store.Session{}, err
	}
	sess.Status = store.Status(status)
	return store.Normalize(sess), nil
}

func (s *Store) GetSession(ctx context.Context, id string) (store.Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM interview_sessions WHERE id = $1`, id)
	if err != nil {
		return store.Session{}, fmt.Errorf("postgres: get session: %w", err)
	}
	sess, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Session{}, fmt.Errorf("%w: session %q", store.ErrNotFound, id)
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("postgres: get session: %w", err)
	}
	return sess, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status store.Status, at time.Time) (store.Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("%w: status %q", store.ErrInvalid, status)
	}
	// The self-join reads the pre-update status in the same statement.
	const q = `
		UPDATE interview_sessions AS s
		SET    status   = $2,
		       end_time = CASE WHEN $2 = 'completed' THEN $3 ELSE s.end_time END
		FROM   interview_sessions AS prev
		WHERE  s.id = $1 AND prev.id = s.id
		RETURNING prev.status`
	var old string
	err := s.pool.QueryRow(ctx, q, id, string(status), at.UTC().Truncate(time.Microsecond)).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: session %q", store.ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("postgres: update status: %w", err)
	}
	return store.Status(old), nil
}

func (s *Store) ListSessions(ctx context.Context, skip, limit int) ([]store.Session, int, error) {
	skip, limit = store.Page(skip, limit)
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM interview_sessions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count sessions: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM   interview_sessions
		ORDER  BY start_time DESC, id
		OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list sessions: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: scan sessions: %w", err)
	}
	if out == nil {
		out = []store.Session{}
	}
	return out, total, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM interview_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %q", store.ErrNotFound, id)
	}
	return nil
}

const resultColumns = `session_id, user_id, transcript, video_analysis, overall_score, feedback, duration, created_at`

func scanResult(row pgx.CollectableRow) (store.Result, error) {
	var r store.Result
	if err := row.Scan(&r.SessionID, &r.UserID, &r.Transcript, &r.VideoAnalysis,
		&r.OverallScore, &r.Feedback, &r.Duration, &r.CreatedAt); err != nil {
		return store.Result{}, err
	}
	return store.NormalizeResult(r), nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func getResult(ctx context.Context, q querier, sessionID, suffix string) (store.Result, error) {
	rows, err := q.Query(ctx, `SELECT `+resultColumns+` FROM interview_results WHERE session_id = $1`+suffix, sessionID)
	if err != nil {
		return store.Result{}, fmt.Errorf("postgres: get result: %w", err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanResult)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Result{}, fmt.Errorf("%w: result %q", store.ErrNotFound, sessionID)
	}
	if err != nil {
		return store.Result{}, fmt.Errorf("postgres: get result: %w", err)
	}
	return r, nil
}

func (s *Store) GetResult(ctx context.Context, sessionID string) (store.Result, error) {
	return getResult(ctx, s.pool, sessionID, "")
}

func upsertResult(ctx context.Context, q querier, r store.Result) error {
	const stmt = `
		INSERT INTO interview_results (` + resultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
		    user_id        = EXCLUDED.user_id,
		    transcript     = EXCLUDED.transcript,
		    video_analysis = EXCLUDED.video_analysis,
		    overall_score  = EXCLUDED.overall_score,
		    feedback       = EXCLUDED.feedback,
		    duration       = EXCLUDED.duration`
	_, err := q.Exec(ctx, stmt, r.SessionID, r.UserID, r.Transcript, r.VideoAnalysis,
		r.OverallScore, r.Feedback, r.Duration, r.CreatedAt)
	if pgCode(err) == foreignKeyViolation {
		return fmt.Errorf("%w: session %q", store.ErrNotFound, r.SessionID)
	}
	if err != nil {
		return fmt.Errorf("postgres: upsert result: %w", err)
	}
	return nil
}

func (s *Store) UpsertResult(ctx context.Context, r store.Result) error {
	return upsertResult(ctx, s.pool, store.NormalizeResult(r))
}

func (s *Store) ApplyResultPatch(ctx context.Context, sessionID string, p store.ResultPatch) (store.Result, error) {
	if err := p.Validate(); err != nil {
		return store.Result{}, err
	}
	var out store.Result
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx, `SELECT user_id FROM interview_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: session %q", store.ErrNotFound, sessionID)
		}
		if err != nil {
			return fmt.Errorf("postgres: lock session: %w", err)
		}

		r, err := getResult(ctx, tx, sessionID, " FOR UPDATE")
		if errors.Is(err, store.ErrNotFound) {
			r = store.Result{SessionID: sessionID, UserID: userID}
		} else if err != nil {
			return err
		}
		p.Apply(&r)
		out = store.NormalizeResult(r)
		return upsertResult(ctx, tx, out)
	})
	if err != nil {
		return store.Result{}, err
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	st := store.Stats{StatusDistribution: map[store.Status]int{}}
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM interview_sessions GROUP BY status`)
	if err != nil {
		return store.Stats{}, fmt.Errorf("postgres: stats: %w", err)
	}
	type bucket struct {
		Status string
		Count  int
	}
	buckets, err := pgx.CollectRows(rows, pgx.RowToStructByPos[bucket])
	if err != nil {
		return store.Stats{}, fmt.Errorf("postgres: stats: %w", err)
	}
	for _, b := range buckets {
		st.StatusDistribution[store.Status(b.Status)] = b.Count
		st.TotalSessions += b.Count
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM interview_results`).Scan(&st.TotalResults); err != nil {
		return store.Stats{}, fmt.Errorf("postgres: stats: %w", err)
	}
	return st, nil
}
