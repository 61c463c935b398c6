package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ChamsBouzaiene/planloop/internal/engine"

	_ "modernc.org/sqlite"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// Store is a SQLite-backed run journal. It implements engine.Hook so it can be
// attached to an agent; write failures are logged and never interrupt a run.
type Store struct {
	engine.NopHook

	db     *sql.DB
	logger *slog.Logger

	mu  sync.Mutex
	seq map[string]int // next step sequence per active run
}

var _ engine.Hook = (*Store)(nil)

// Open opens (or creates) the journal database at path and initializes the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	// WAL lets `history` read while a run is writing.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers well
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	s := &Store{db: db, logger: logger, seq: make(map[string]int)}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		request      TEXT NOT NULL,
		status       TEXT NOT NULL,
		steps        INTEGER NOT NULL DEFAULT 0,
		max_steps    INTEGER NOT NULL,
		final_state  TEXT,
		final_answer TEXT,
		last_error   TEXT,
		started_at   INTEGER NOT NULL,
		finished_at  INTEGER
	);

	CREATE TABLE IF NOT EXISTS steps (
		run_id       TEXT NOT NULL,
		seq          INTEGER NOT NULL,
		state        TEXT NOT NULL,
		tool_name    TEXT,
		tool_input   TEXT,
		tool_output  TEXT,
		is_final     INTEGER NOT NULL,
		final_answer TEXT,
		created_at   INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// writeCtx detaches journal writes from run cancellation so a cancelled run is still recorded.
func writeCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// OnRunStart records a new run.
func (s *Store) OnRunStart(ctx context.Context, rs *engine.RunState) {
	s.mu.Lock()
	s.seq[rs.ID] = 0
	s.mu.Unlock()

	_, err := s.db.ExecContext(writeCtx(ctx),
		`INSERT INTO runs (id, request, status, max_steps, started_at) VALUES (?, ?, ?, ?, ?)`,
		rs.ID, rs.Request, string(StatusRunning), rs.MaxSteps, rs.Started.UnixMilli())
	if err != nil {
		s.logger.Warn("journal: failed to record run start", "run_id", rs.ID, "error", err)
	}
}

// OnStep appends a streamed step.
func (s *Store) OnStep(ctx context.Context, rs *engine.RunState, step engine.StepResult) {
	s.mu.Lock()
	seq := s.seq[rs.ID] + 1
	s.seq[rs.ID] = seq
	s.mu.Unlock()

	var input sql.NullString
	if len(step.ToolInput) > 0 {
		b, err := json.Marshal(step.ToolInput)
		if err == nil {
			input = sql.NullString{String: string(b), Valid: true}
		}
	}

	_, err := s.db.ExecContext(writeCtx(ctx),
		`INSERT INTO steps (run_id, seq, state, tool_name, tool_input, tool_output, is_final, final_answer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rs.ID, seq, string(step.CurrentState), nullable(step.ToolName), input,
		nullable(step.ToolOutput), boolToInt(step.IsFinal), nullable(step.FinalAnswer), time.Now().UnixMilli())
	if err != nil {
		s.logger.Warn("journal: failed to record step", "run_id", rs.ID, "seq", seq, "error", err)
	}
}

// OnError keeps the most recent error of the run.
func (s *Store) OnError(ctx context.Context, rs *engine.RunState, runErr error) {
	if rs.ID == "" || runErr == nil {
		return
	}
	_, err := s.db.ExecContext(writeCtx(ctx),
		`UPDATE runs SET last_error = ? WHERE id = ?`, runErr.Error(), rs.ID)
	if err != nil {
		s.logger.Warn("journal: failed to record error", "run_id", rs.ID, "error", err)
	}
}

// OnDone closes the run record.
func (s *Store) OnDone(ctx context.Context, rs *engine.RunState, final engine.StepResult) {
	s.mu.Lock()
	delete(s.seq, rs.ID)
	s.mu.Unlock()

	status := StatusDone
	switch {
	case !final.IsFinal:
		status = StatusStopped
	case final.CurrentState == engine.StateError:
		status = StatusFailed
	}

	_, err := s.db.ExecContext(writeCtx(ctx),
		`UPDATE runs SET status = ?, steps = ?, final_state = ?, final_answer = ?, finished_at = ? WHERE id = ?`,
		string(status), rs.Step, nullable(string(final.CurrentState)), nullable(final.FinalAnswer),
		time.Now().UnixMilli(), rs.ID)
	if err != nil {
		s.logger.Warn("journal: failed to record run end", "run_id", rs.ID, "error", err)
	}
}

const runColumns = `id, request, status, steps, max_steps, final_state, final_answer, last_error, started_at, finished_at`

// List returns the most recent runs, newest first. A non-positive limit returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]RunMeta, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunMeta{}
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, m)
	}
	return runs, rows.Err()
}

// Get returns one run with its steps. id may be a unique prefix of the run id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR substr(id, 1, length(?)) = ? ORDER BY id = ? DESC LIMIT 2`,
		id, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	var matches []RunMeta
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
	}

	run := &Run{RunMeta: matches[0]}
	run.Steps, err = s.steps(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) steps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, state, tool_name, tool_input, tool_output, is_final, final_answer, created_at
		 FROM steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var (
			rec                            StepRecord
			state                          string
			toolName, input, output, final sql.NullString
			isFinal                        int
			created                        int64
		)
		if err := rows.Scan(&rec.Seq, &state, &toolName, &input, &output, &isFinal, &final, &created); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		rec.Result = engine.StepResult{
			CurrentState: engine.StateName(state),
			ToolName:     toolName.String,
			ToolOutput:   output.String,
			IsFinal:      isFinal != 0,
			FinalAnswer:  final.String,
		}
		if input.Valid {
			if err := json.Unmarshal([]byte(input.String), &rec.Result.ToolInput); err != nil {
				return nil, fmt.Errorf("failed to decode tool input of step %d: %w", rec.Seq, err)
			}
		}
		rec.CreatedAt = time.UnixMilli(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunMeta, error) {
	var (
		m                           RunMeta
		status                      string
		finalState, answer, lastErr sql.NullString
		started                     int64
		finished                    sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.Request, &status, &m.Steps, &m.MaxSteps,
		&finalState, &answer, &lastErr, &started, &finished); err != nil {
		return m, fmt.Errorf("failed to scan run: %w", err)
	}
	m.Status = RunStatus(status)
	m.FinalState = finalState.String
	m.FinalAnswer = answer.String
	m.LastError = lastErr.String
	m.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		m.FinishedAt = time.UnixMilli(finished.Int64)
	}
	return m, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
