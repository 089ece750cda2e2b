package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for profile cards, answers,
// state, examples, outputs, feedback, and jobs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "bureau.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for callers that need raw SQL access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Profile cards (append-only versioned log) ---

const profileCardColumns = "workspace_id, project_id, version, voice_card, audience_card, offer_card, constraints, created_at"

// LatestProfileCard returns the snapshot with the highest version for the
// exact scope, or ErrNotFound if the scope has no snapshot yet.
func (s *Store) LatestProfileCard(workspaceID, projectID string) (ProfileCardRecord, error) {
	row := s.db.QueryRow(`
		SELECT `+profileCardColumns+`
		FROM profile_cards
		WHERE workspace_id = ? AND project_id = ?
		ORDER BY version DESC LIMIT 1`, workspaceID, projectID,
	)
	return scanProfileCard(row)
}

// ProfileCardByVersion returns the exact snapshot, or ErrNotFound.
func (s *Store) ProfileCardByVersion(workspaceID, projectID string, version int) (ProfileCardRecord, error) {
	row := s.db.QueryRow(`
		SELECT `+profileCardColumns+`
		FROM profile_cards
		WHERE workspace_id = ? AND project_id = ? AND version = ?`,
		workspaceID, projectID, version,
	)
	return scanProfileCard(row)
}

// LatestProfileCardVersion returns the current max version for the scope,
// or 0 if the scope has no snapshot.
func (s *Store) LatestProfileCardVersion(workspaceID, projectID string) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow(`
		SELECT MAX(version) FROM profile_cards
		WHERE workspace_id = ? AND project_id = ?`, workspaceID, projectID,
	).Scan(&version)
	if err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}

// InsertProfileCard appends one snapshot at an explicit version. A collision
// on (workspace_id, project_id, version) is reported as ErrVersionConflict so
// the caller can re-read and retry.
func (s *Store) InsertProfileCard(rec ProfileCardRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO profile_cards (`+profileCardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.WorkspaceID, rec.ProjectID, rec.Version,
		jsonOrEmptyObject(rec.VoiceCard), jsonOrEmptyObject(rec.AudienceCard),
		jsonOrEmptyObject(rec.OfferCard), jsonOrEmptyObject(rec.Constraints),
		createdAt.Format(time.RFC3339),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrVersionConflict
	}
	return err
}

// ListProfileCardVersions returns all versions for a scope in ascending order.
func (s *Store) ListProfileCardVersions(workspaceID, projectID string) ([]int, error) {
	rows, err := s.db.Query(`
		SELECT version FROM profile_cards
		WHERE workspace_id = ? AND project_id = ?
		ORDER BY version ASC`, workspaceID, projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func scanProfileCard(row *sql.Row) (ProfileCardRecord, error) {
	var rec ProfileCardRecord
	var voice, audience, offer, constraints, createdAt string
	err := row.Scan(&rec.WorkspaceID, &rec.ProjectID, &rec.Version,
		&voice, &audience, &offer, &constraints, &createdAt)
	if err == sql.ErrNoRows {
		return ProfileCardRecord{}, ErrNotFound
	}
	if err != nil {
		return ProfileCardRecord{}, err
	}
	rec.VoiceCard = []byte(voice)
	rec.AudienceCard = []byte(audience)
	rec.OfferCard = []byte(offer)
	rec.Constraints = []byte(constraints)
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return ProfileCardRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}

func jsonOrEmptyObject(raw []byte) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// --- Profile answers (mutable, one row per question key per scope) ---

// UpsertProfileAnswer writes the latest answer for a question key; a repeat
// write replaces the previous value.
func (s *Store) UpsertProfileAnswer(a ProfileAnswer) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO profile_answers (workspace_id, project_id, question_key, answer_text, answer_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, project_id, question_key)
		DO UPDATE SET answer_text = excluded.answer_text, answer_json = excluded.answer_json, updated_at = excluded.updated_at`,
		a.WorkspaceID, a.ProjectID, a.QuestionKey, a.AnswerText, a.AnswerJSON, now, now,
	)
	return err
}

// ListProfileAnswers returns all answers for the exact scope, oldest first.
func (s *Store) ListProfileAnswers(workspaceID, projectID string) ([]ProfileAnswer, error) {
	rows, err := s.db.Query(`
		SELECT workspace_id, project_id, question_key, answer_text, answer_json, created_at, updated_at
		FROM profile_answers
		WHERE workspace_id = ? AND project_id = ?
		ORDER BY created_at ASC, question_key ASC`, workspaceID, projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ProfileAnswer
	for rows.Next() {
		var a ProfileAnswer
		var createdAt, updatedAt string
		if err := rows.Scan(&a.WorkspaceID, &a.ProjectID, &a.QuestionKey, &a.AnswerText, &a.AnswerJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// --- Profile state (derived cache, one row per scope) ---

func (s *Store) UpsertProfileState(st ProfileState) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO profile_state (workspace_id, project_id, known_keys, missing_keys, confidence_score, last_question_key, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, project_id)
		DO UPDATE SET known_keys = excluded.known_keys, missing_keys = excluded.missing_keys,
			confidence_score = excluded.confidence_score, last_question_key = excluded.last_question_key,
			updated_at = excluded.updated_at`,
		st.WorkspaceID, st.ProjectID, st.KnownKeys, st.MissingKeys, st.ConfidenceScore, st.LastQuestionKey, now,
	)
	return err
}

func (s *Store) GetProfileState(workspaceID, projectID string) (ProfileState, error) {
	var st ProfileState
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT workspace_id, project_id, known_keys, missing_keys, confidence_score, last_question_key, updated_at
		FROM profile_state WHERE workspace_id = ? AND project_id = ?`, workspaceID, projectID,
	).Scan(&st.WorkspaceID, &st.ProjectID, &st.KnownKeys, &st.MissingKeys, &st.ConfidenceScore, &st.LastQuestionKey, &updatedAt)
	if err == sql.ErrNoRows {
		return ProfileState{}, ErrNotFound
	}
	if err != nil {
		return ProfileState{}, err
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return ProfileState{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	st.UpdatedAt = t
	return st, nil
}

// --- Examples ---

func (s *Store) SaveExample(e Example) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	kind := e.Kind
	if kind == "" {
		kind = "good"
	}
	_, err := s.db.Exec(`
		INSERT INTO examples (id, workspace_id, project_id, kind, content, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkspaceID, e.ProjectID, kind, e.Content, e.Source,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// ListExamples returns examples for the exact scope, oldest first.
func (s *Store) ListExamples(workspaceID, projectID string) ([]Example, error) {
	rows, err := s.db.Query(`
		SELECT id, workspace_id, project_id, kind, content, source, created_at
		FROM examples
		WHERE workspace_id = ? AND project_id = ?
		ORDER BY created_at ASC, id ASC`, workspaceID, projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Example
	for rows.Next() {
		var e Example
		var createdAt string
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.ProjectID, &e.Kind, &e.Content, &e.Source, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// --- Outputs ---

func (s *Store) SaveOutput(o Output) error {
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO outputs (id, workspace_id, project_id, channel, content, quality_json, model_name, spec_version, profile_card_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.WorkspaceID, o.ProjectID, o.Channel, o.Content, o.QualityJSON,
		o.ModelName, o.SpecVersion, o.ProfileCardVersion,
		createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetOutput(id string) (Output, error) {
	var o Output
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, workspace_id, project_id, channel, content, quality_json, model_name, spec_version, profile_card_version, created_at
		FROM outputs WHERE id = ?`, id,
	).Scan(&o.ID, &o.WorkspaceID, &o.ProjectID, &o.Channel, &o.Content, &o.QualityJSON, &o.ModelName, &o.SpecVersion, &o.ProfileCardVersion, &createdAt)
	if err == sql.ErrNoRows {
		return Output{}, ErrNotFound
	}
	if err != nil {
		return Output{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Output{}, fmt.Errorf("parsing created_at: %w", err)
	}
	o.CreatedAt = t
	return o, nil
}

// ListOutputs returns outputs for a workspace, newest first.
func (s *Store) ListOutputs(workspaceID string, limit, offset int) ([]Output, error) {
	rows, err := s.db.Query(`
		SELECT id, workspace_id, project_id, channel, content, quality_json, model_name, spec_version, profile_card_version, created_at
		FROM outputs WHERE workspace_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, workspaceID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Output
	for rows.Next() {
		var o Output
		var createdAt string
		if err := rows.Scan(&o.ID, &o.WorkspaceID, &o.ProjectID, &o.Channel, &o.Content, &o.QualityJSON, &o.ModelName, &o.SpecVersion, &o.ProfileCardVersion, &createdAt); err != nil {
			return nil, err
		}
		if o.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

// --- Feedback ---

func (s *Store) SaveFeedback(f Feedback) error {
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO feedback (id, output_id, rating, notes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.OutputID, f.Rating, f.Notes, createdAt.Format(time.RFC3339),
	)
	return err
}

// ListFeedback returns all feedback for an output, oldest first.
func (s *Store) ListFeedback(outputID string) ([]Feedback, error) {
	rows, err := s.db.Query(`
		SELECT id, output_id, rating, notes, created_at
		FROM feedback WHERE output_id = ?
		ORDER BY created_at ASC, id ASC`, outputID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Feedback
	for rows.Next() {
		var f Feedback
		var createdAt string
		if err := rows.Scan(&f.ID, &f.OutputID, &f.Rating, &f.Notes, &createdAt); err != nil {
			return nil, err
		}
		if f.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

// --- Jobs ---

func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339)
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now, now,
	)
	return err
}

func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	placeholders := strings.Repeat(",?", len(types)-1)
	query := `SELECT id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]interface{}, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	err = tx.QueryRow(query, args...).Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError,
	)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.LastError = lastError.String
	if j.RunAfter, err = time.Parse(time.RFC3339, runAfter); err != nil {
		return nil, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, now); err != nil {
		return nil, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	return &j, nil
}

func (s *Store) CompleteJob(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Format(time.RFC3339), id)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		runAfter := now.Add(backoff)
		_, err = tx.Exec(`UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, runAfter.Format(time.RFC3339), now.Format(time.RFC3339), id)
	}

	if err != nil {
		return err
	}

	return tx.Commit()
}
