package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dtran2108/collabo-speak/internal/evaluation"
	"github.com/dtran2108/collabo-speak/internal/transcript"
)

const (
	EvaluationPending   = "pending"
	EvaluationCompleted = "completed"
	EvaluationFailed    = "failed"
)

// Session is the locally archived view of one conversation session. The
// archive is a mirror for the observer UI, independent of the remote
// participation record.
type Session struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	AgentID          string     `json:"agent_id"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	Status           string     `json:"status"`
	TranscriptURL    string     `json:"transcript_url"`
	ParticipationID  string     `json:"participation_id"`
	Reflection       string     `json:"reflection"`
	EvaluationStatus string     `json:"evaluation_status"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "collabo-speak.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			agent_id TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			transcript_url TEXT NOT NULL DEFAULT '',
			participation_id TEXT NOT NULL DEFAULT '',
			reflection TEXT NOT NULL DEFAULT '',
			evaluation TEXT NOT NULL DEFAULT '',
			evaluation_status TEXT NOT NULL DEFAULT 'pending'
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_entries_session_id ON entries(session_id, seq)"); err != nil {
		return fmt.Errorf("create entries index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(id, userID, agentID string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions(id, user_id, agent_id, started_at, status, evaluation_status) VALUES(?, ?, ?, ?, 'active', ?)`,
		id,
		userID,
		agentID,
		startedAt.UTC().Format(time.RFC3339Nano),
		EvaluationPending,
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) AppendEntry(sessionID string, entry transcript.Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO entries(id, session_id, speaker, text, timestamp) VALUES(?, ?, ?, ?, ?)`,
		entry.ID,
		sessionID,
		entry.Speaker,
		entry.Text,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append entry for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) EndSession(id string, endedAt time.Time, transcriptURL, participationID string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, status = 'ended', transcript_url = ?, participation_id = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		transcriptURL,
		participationID,
		id,
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	return requireRow(res, "end session")
}

func (s *SQLiteStore) SaveReflection(id, reflection string) error {
	res, err := s.db.Exec(`UPDATE sessions SET reflection = ? WHERE id = ?`, reflection, id)
	if err != nil {
		return fmt.Errorf("save reflection for session %s: %w", id, err)
	}
	return requireRow(res, "save reflection")
}

func (s *SQLiteStore) SaveEvaluation(id string, result *evaluation.Result, status string) error {
	payload := ""
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode evaluation for session %s: %w", id, err)
		}
		payload = string(data)
	}

	res, err := s.db.Exec(
		`UPDATE sessions SET evaluation = ?, evaluation_status = ? WHERE id = ?`,
		payload,
		status,
		id,
	)
	if err != nil {
		return fmt.Errorf("save evaluation for session %s: %w", id, err)
	}
	return requireRow(res, "save evaluation")
}

func (s *SQLiteStore) GetSessionsByDate(date string) ([]Session, error) {
	rows, err := s.db.Query(
		sessionColumns+`
		 FROM sessions
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	return scanSessions(rows)
}

func (s *SQLiteStore) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(sessionColumns+` FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// GetEvaluation returns the archived evaluation payload, or nil when none
// was stored.
func (s *SQLiteStore) GetEvaluation(id string) (*evaluation.Result, error) {
	var payload string
	err := s.db.QueryRow(`SELECT evaluation FROM sessions WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("get evaluation for session %s: %w", id, err)
	}
	if strings.TrimSpace(payload) == "" {
		return nil, nil
	}

	var result evaluation.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode evaluation for session %s: %w", id, err)
	}
	return &result, nil
}

func (s *SQLiteStore) GetEntries(sessionID string) ([]transcript.Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, speaker, text, timestamp
		 FROM entries
		 WHERE session_id = ?
		 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]transcript.Entry, 0, 32)
	for rows.Next() {
		var entry transcript.Entry
		var ts string
		if err := rows.Scan(&entry.ID, &entry.Speaker, &entry.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan entry for session %s: %w", sessionID, err)
		}

		parsedTS, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse entry timestamp for session %s: %w", sessionID, err)
		}
		entry.Timestamp = parsedTS

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows for session %s: %w", sessionID, err)
	}

	return entries, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS day FROM sessions ORDER BY day DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query session dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	dates := make([]string, 0, 16)
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan session date: %w", err)
		}
		dates = append(dates, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session dates: %w", err)
	}
	return dates, nil
}

const sessionColumns = `SELECT id, user_id, agent_id, started_at, ended_at, status, transcript_url, participation_id, reflection, evaluation_status`

func scanSessions(rows *sql.Rows) ([]Session, error) {
	sessions := make([]Session, 0, 16)
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions rows: %w", err)
	}

	return sessions, nil
}

func scanSession(scan func(dest ...any) error) (Session, error) {
	var sess Session
	var startedAt string
	var endedAt sql.NullString
	if err := scan(
		&sess.ID, &sess.UserID, &sess.AgentID, &startedAt, &endedAt, &sess.Status,
		&sess.TranscriptURL, &sess.ParticipationID, &sess.Reflection, &sess.EvaluationStatus,
	); err != nil {
		return Session{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse started_at: %w", err)
	}
	sess.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Session{}, fmt.Errorf("parse ended_at: %w", err)
		}
		sess.EndedAt = &parsedEnd
	}

	return sess, nil
}

func requireRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
