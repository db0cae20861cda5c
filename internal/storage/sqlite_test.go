package storage

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dtran2108/collabo-speak/internal/evaluation"
	"github.com/dtran2108/collabo-speak/internal/transcript"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)

	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := store.CreateSession("sess-1", "user-1", "agent-1", started); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sess, err := store.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.Status != "active" {
		t.Errorf("expected active status, got %q", sess.Status)
	}
	if !sess.StartedAt.Equal(started) {
		t.Errorf("expected started_at %v, got %v", started, sess.StartedAt)
	}
	if sess.EndedAt != nil {
		t.Error("expected nil ended_at for active session")
	}
	if sess.EvaluationStatus != EvaluationPending {
		t.Errorf("expected pending evaluation status, got %q", sess.EvaluationStatus)
	}

	ended := started.Add(10 * time.Minute)
	if err := store.EndSession("sess-1", ended, "https://blob.example.com/t.txt", "part-9"); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	sess, err = store.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.Status != "ended" {
		t.Errorf("expected ended status, got %q", sess.Status)
	}
	if sess.EndedAt == nil || !sess.EndedAt.Equal(ended) {
		t.Errorf("expected ended_at %v, got %v", ended, sess.EndedAt)
	}
	if sess.TranscriptURL != "https://blob.example.com/t.txt" {
		t.Errorf("unexpected transcript url %q", sess.TranscriptURL)
	}
	if sess.ParticipationID != "part-9" {
		t.Errorf("unexpected participation id %q", sess.ParticipationID)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession("missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestCreateSessionRequiresID(t *testing.T) {
	store := newTestStore(t)

	if err := store.CreateSession("", "user-1", "agent-1", time.Now()); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestAppendAndGetEntries(t *testing.T) {
	store := newTestStore(t)

	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := store.CreateSession("sess-1", "user-1", "agent-1", started); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	first := transcript.Entry{ID: "e1", Speaker: "Fiona", Text: "Welcome!", Timestamp: started.Add(time.Second)}
	second := transcript.Entry{ID: "e2", Speaker: transcript.SpeakerUser, Text: "Thanks.", Timestamp: started.Add(2 * time.Second)}
	if err := store.AppendEntry("sess-1", first); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
	if err := store.AppendEntry("sess-1", second); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	entries, err := store.GetEntries("sess-1")
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "e1" || entries[1].ID != "e2" {
		t.Errorf("entries out of insertion order: %q then %q", entries[0].ID, entries[1].ID)
	}
	if entries[1].Speaker != transcript.SpeakerUser {
		t.Errorf("expected user speaker, got %q", entries[1].Speaker)
	}
	if !entries[0].Timestamp.Equal(first.Timestamp) {
		t.Errorf("expected timestamp %v, got %v", first.Timestamp, entries[0].Timestamp)
	}
}

func TestSaveReflection(t *testing.T) {
	store := newTestStore(t)

	if err := store.CreateSession("sess-1", "user-1", "agent-1", time.Now()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.SaveReflection("sess-1", "I spoke up more than last time."); err != nil {
		t.Fatalf("SaveReflection failed: %v", err)
	}

	sess, err := store.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.Reflection != "I spoke up more than last time." {
		t.Errorf("unexpected reflection %q", sess.Reflection)
	}

	if err := store.SaveReflection("missing", "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for missing session, got %v", err)
	}
}

func TestSaveAndGetEvaluation(t *testing.T) {
	store := newTestStore(t)

	if err := store.CreateSession("sess-1", "user-1", "agent-1", time.Now()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	result := &evaluation.Result{
		Strengths:        []string{"Clear articulation"},
		Improvements:     []string{"Ask more follow-up questions"},
		Tips:             []string{"Pause before answering"},
		Objectives:       []string{"Lead one discussion"},
		WordsPerMinute:   120,
		ParticipationPct: 42.5,
	}
	if err := store.SaveEvaluation("sess-1", result, EvaluationCompleted); err != nil {
		t.Fatalf("SaveEvaluation failed: %v", err)
	}

	got, err := store.GetEvaluation("sess-1")
	if err != nil {
		t.Fatalf("GetEvaluation failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored evaluation, got nil")
	}
	if got.WordsPerMinute != 120 || got.ParticipationPct != 42.5 {
		t.Errorf("unexpected metrics: %+v", got)
	}
	if len(got.Strengths) != 1 || got.Strengths[0] != "Clear articulation" {
		t.Errorf("unexpected strengths: %v", got.Strengths)
	}

	sess, _ := store.GetSession("sess-1")
	if sess.EvaluationStatus != EvaluationCompleted {
		t.Errorf("expected completed evaluation status, got %q", sess.EvaluationStatus)
	}
}

func TestSaveEvaluationFailedKeepsNilPayload(t *testing.T) {
	store := newTestStore(t)

	if err := store.CreateSession("sess-1", "user-1", "agent-1", time.Now()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.SaveEvaluation("sess-1", nil, EvaluationFailed); err != nil {
		t.Fatalf("SaveEvaluation failed: %v", err)
	}

	got, err := store.GetEvaluation("sess-1")
	if err != nil {
		t.Fatalf("GetEvaluation failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil evaluation, got %+v", got)
	}

	sess, _ := store.GetSession("sess-1")
	if sess.EvaluationStatus != EvaluationFailed {
		t.Errorf("expected failed evaluation status, got %q", sess.EvaluationStatus)
	}
}

func TestGetSessionsByDateAndDates(t *testing.T) {
	store := newTestStore(t)

	day1 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	_ = store.CreateSession("a", "u", "agent", day1)
	_ = store.CreateSession("b", "u", "agent", day1.Add(time.Hour))
	_ = store.CreateSession("c", "u", "agent", day2)

	sessions, err := store.GetSessionsByDate("2026-03-14")
	if err != nil {
		t.Fatalf("GetSessionsByDate failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "b" {
		t.Errorf("expected newest session first, got %q", sessions[0].ID)
	}

	dates, err := store.GetDates()
	if err != nil {
		t.Fatalf("GetDates failed: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2026-03-15" || dates[1] != "2026-03-14" {
		t.Errorf("unexpected dates: %v", dates)
	}
}
