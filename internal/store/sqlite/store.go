// Package sqlite provides an embedded [store.Store] on modernc.org/sqlite.
// It needs no cgo and no external database, which makes it the default for
// single-node deployments that must survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MrWong99/intervue/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS interview_sessions (
    id          TEXT     PRIMARY KEY,
    user_id     TEXT     NOT NULL DEFAULT '',
    status      TEXT     NOT NULL,
    start_time  INTEGER  NOT NULL,
    end_time    INTEGER,
    metadata    TEXT     NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_interview_sessions_start_time
    ON interview_sessions (start_time DESC);

CREATE TABLE IF NOT EXISTS interview_results (
    session_id      TEXT     PRIMARY KEY REFERENCES interview_sessions (id) ON DELETE CASCADE,
    user_id         TEXT     NOT NULL DEFAULT '',
    transcript      TEXT     NOT NULL DEFAULT '[]',
    video_analysis  TEXT,
    overall_score   REAL,
    feedback        TEXT     NOT NULL DEFAULT '',
    duration        REAL,
    created_at      INTEGER  NOT NULL
);
`

var _ store.Store = (*Store)(nil)

// Store implements [store.Store] on a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path in WAL mode with
// foreign keys enforced, and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path must not be empty")
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func micros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func (s *Store) CreateSession(ctx context.Context, sess store.Session) error {
	sess = store.Normalize(sess)
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %w", store.ErrInvalid, err)
	}
	var end sql.NullInt64
	if sess.EndTime != nil {
		end = sql.NullInt64{Int64: micros(*sess.EndTime), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interview_sessions (id, user_id, status, start_time, end_time, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, string(sess.Status), micros(sess.StartTime), end, string(meta))
	if isConstraint(err) {
		return fmt.Errorf("%w: session %q", store.ErrConflict, sess.ID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, status, start_time, end_time, metadata`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (store.Session, error) {
	var (
		sess   store.Session
		status string
		start  int64
		end    sql.NullInt64
		meta   string
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &status, &start, &end, &meta); err != nil {
		return store.Session{}, err
	}
	sess.Status = store.Status(status)
	sess.StartTime = fromMicros(start)
	if end.Valid {
		t := fromMicros(end.Int64)
		sess.EndTime = &t
	}
	if err := json.Unmarshal([]byte(meta), &sess.Metadata); err != nil {
		return store.Session{}, fmt.Errorf("decode metadata: %w", err)
	}
	return store.Normalize(sess), nil
}

func (s *Store) GetSession(ctx context.Context, id string) (store.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM interview_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, fmt.Errorf("%w: session %q", store.ErrNotFound, id)
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("sqlite: get session: %w", err)
	}
	return sess, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status store.Status, at time.Time) (store.Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("%w: status %q", store.ErrInvalid, status)
	}
	var old string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT status FROM interview_sessions WHERE id = ?`, id).Scan(&old)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: session %q", store.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("sqlite: update status: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE interview_sessions
			SET    status = ?1,
			       end_time = CASE WHEN ?1 = 'completed' THEN ?2 ELSE end_time END
			WHERE  id = ?3`, string(status), micros(at), id)
		if err != nil {
			return fmt.Errorf("sqlite: update status: %w", err)
		}
		return nil
	})
	return store.Status(old), err
}

func (s *Store) ListSessions(ctx context.Context, skip, limit int) ([]store.Session, int, error) {
	skip, limit = store.Page(skip, limit)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM interview_sessions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count sessions: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM   interview_sessions
		ORDER  BY start_time DESC, id
		LIMIT  ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer rows.Close()

	out := []store.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, total, rows.Err()
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interview_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: session %q", store.ErrNotFound, id)
	}
	return nil
}

const resultColumns = `session_id, user_id, transcript, video_analysis, overall_score, feedback, duration, created_at`

func getResult(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, sessionID string) (store.Result, error) {
	var (
		r          store.Result
		transcript string
		video      sql.NullString
		score, dur sql.NullFloat64
		created    int64
	)
	err := q.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM interview_results WHERE session_id = ?`, sessionID).
		Scan(&r.SessionID, &r.UserID, &transcript, &video, &score, &r.Feedback, &dur, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Result{}, fmt.Errorf("%w: result %q", store.ErrNotFound, sessionID)
	}
	if err != nil {
		return store.Result{}, fmt.Errorf("sqlite: get result: %w", err)
	}
	if err := json.Unmarshal([]byte(transcript), &r.Transcript); err != nil {
		return store.Result{}, fmt.Errorf("sqlite: decode transcript: %w", err)
	}
	if video.Valid {
		r.VideoAnalysis = new(store.VideoAnalysis)
		if err := json.Unmarshal([]byte(video.String), r.VideoAnalysis); err != nil {
			return store.Result{}, fmt.Errorf("sqlite: decode video analysis: %w", err)
		}
	}
	if score.Valid {
		r.OverallScore = &score.Float64
	}
	if dur.Valid {
		r.Duration = &dur.Float64
	}
	r.CreatedAt = fromMicros(created)
	return store.NormalizeResult(r), nil
}

func (s *Store) GetResult(ctx context.Context, sessionID string) (store.Result, error) {
	return getResult(ctx, s.db, sessionID)
}

func upsertResult(ctx context.Context, tx *sql.Tx, r store.Result) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM interview_sessions WHERE id = ?`, r.SessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: session %q", store.ErrNotFound, r.SessionID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: upsert result: %w", err)
	}

	transcript, err := json.Marshal(r.Transcript)
	if err != nil {
		return fmt.Errorf("%w: transcript: %w", store.ErrInvalid, err)
	}
	var video sql.NullString
	if r.VideoAnalysis != nil {
		b, err := json.Marshal(r.VideoAnalysis)
		if err != nil {
			return fmt.Errorf("%w: video analysis: %w", store.ErrInvalid, err)
		}
		video = sql.NullString{String: string(b), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO interview_results (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
		    user_id        = excluded.user_id,
		    transcript     = excluded.transcript,
		    video_analysis = excluded.video_analysis,
		    overall_score  = excluded.overall_score,
		    feedback       = excluded.feedback,
		    duration       = excluded.duration`,
		r.SessionID, r.UserID, string(transcript), video, nullFloat(r.OverallScore),
		r.Feedback, nullFloat(r.Duration), micros(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: upsert result: %w", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (s *Store) UpsertResult(ctx context.Context, r store.Result) error {
	r = store.NormalizeResult(r)
	return s.inTx(ctx, func(tx *sql.Tx) error { return upsertResult(ctx, tx, r) })
}

func (s *Store) ApplyResultPatch(ctx context.Context, sessionID string, p store.ResultPatch) (store.Result, error) {
	if err := p.Validate(); err != nil {
		return store.Result{}, err
	}
	var out store.Result
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var userID string
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM interview_sessions WHERE id = ?`, sessionID).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: session %q", store.ErrNotFound, sessionID)
		}
		if err != nil {
			return fmt.Errorf("sqlite: apply patch: %w", err)
		}
		r, err := getResult(ctx, tx, sessionID)
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
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM interview_sessions GROUP BY status`)
	if err != nil {
		return store.Stats{}, fmt.Errorf("sqlite: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return store.Stats{}, fmt.Errorf("sqlite: stats: %w", err)
		}
		st.StatusDistribution[store.Status(status)] = n
		st.TotalSessions += n
	}
	if err := rows.Err(); err != nil {
		return store.Stats{}, fmt.Errorf("sqlite: stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM interview_results`).Scan(&st.TotalResults); err != nil {
		return store.Stats{}, fmt.Errorf("sqlite: stats: %w", err)
	}
	return st, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}
