package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/dtran2108/collabo-speak/internal/evaluation"
	"github.com/dtran2108/collabo-speak/internal/session"
	"github.com/dtran2108/collabo-speak/internal/storage"
	"github.com/dtran2108/collabo-speak/internal/transcript"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type SessionStore interface {
	GetSessionsByDate(date string) ([]storage.Session, error)
	GetSession(id string) (storage.Session, error)
	GetEntries(sessionID string) ([]transcript.Entry, error)
	GetEvaluation(id string) (*evaluation.Result, error)
	GetDates() ([]string, error)
}

// Controls exposes the live session controller to the HTTP surface.
type Controls struct {
	Start            func(ctx context.Context) error
	End              func(ctx context.Context) error
	Cancel           func()
	SubmitReflection func(ctx context.Context, reflection string) error
	Reset            func()
	Snapshot         func() session.Snapshot
}

func registerAPIRoutes(mux *http.ServeMux, store SessionStore, controls Controls) {
	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		sessions, err := store.GetSessionsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, sessions)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}

		sessionData, err := store.GetSession(sessionID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get session: %v", err))
			return
		}

		entries, err := store.GetEntries(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get session entries: %v", err))
			return
		}

		feedback, err := store.GetEvaluation(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get session evaluation: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"session":  sessionData,
			"entries":  entries,
			"feedback": feedback,
		})
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		if controls.Snapshot == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "no active controller")
			return
		}
		writeJSON(w, http.StatusOK, controls.Snapshot())
	})

	mux.HandleFunc("POST /api/session/start", func(w http.ResponseWriter, r *http.Request) {
		if controls.Start == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "no active controller")
			return
		}
		if err := controls.Start(r.Context()); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, session.ErrPermissionDenied) {
				status = http.StatusForbidden
			}
			writeJSONError(w, status, fmt.Sprintf("start session: %v", err))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/session/end", func(w http.ResponseWriter, r *http.Request) {
		if controls.End == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "no active controller")
			return
		}
		if err := controls.End(r.Context()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("end session: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/session/cancel", func(w http.ResponseWriter, r *http.Request) {
		if controls.Cancel != nil {
			controls.Cancel()
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/session/reflection", func(w http.ResponseWriter, r *http.Request) {
		if controls.SubmitReflection == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "no active controller")
			return
		}

		var body struct {
			Reflection string `json:"reflection"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode reflection: %v", err))
			return
		}

		if err := controls.SubmitReflection(r.Context(), body.Reflection); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("submit reflection: %v", err))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/session/reset", func(w http.ResponseWriter, r *http.Request) {
		if controls.Reset != nil {
			controls.Reset()
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
