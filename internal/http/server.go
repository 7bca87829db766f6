package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shiftly/timeclock/internal/auth"
	"shiftly/timeclock/internal/config"
	"shiftly/timeclock/internal/model"
	"shiftly/timeclock/internal/report"
	"shiftly/timeclock/internal/timeclock"
	"shiftly/timeclock/internal/tracker"
)

// Backend is everything the HTTP surface needs from the remote store: the
// tracker's narrow interface plus the reporting reads.
type Backend interface {
	tracker.Backend
	ListEntries(ctx context.Context, employeeID string, from, to *time.Time) ([]model.TimeClockEntry, error)
}

type Server struct {
	cfg      config.Config
	backend  Backend
	trackers *tracker.Manager
	now      func() time.Time
}

func NewServer(cfg config.Config, backend Backend, trackers *tracker.Manager) *Server {
	return &Server{cfg: cfg, backend: backend, trackers: trackers, now: time.Now}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.authMiddleware).Post("/tracker/activate", s.handleActivateTracker)
	r.With(s.authMiddleware).Post("/tracker/deactivate", s.handleDeactivateTracker)
	r.With(s.authMiddleware).Get("/tracker/state", s.handleTrackerState)
	r.With(s.authMiddleware).Post("/tracker/start", s.handleStartShift)
	r.With(s.authMiddleware).Post("/tracker/dismiss", s.handleDismissAlert)
	r.With(s.authMiddleware).Post("/tracker/break/start", s.handleStartBreak)
	r.With(s.authMiddleware).Post("/tracker/break/end", s.handleEndBreak)
	r.With(s.authMiddleware).Post("/tracker/clockout", s.handleClockOut)

	r.With(s.authMiddleware).Get("/shifts", s.handleListShifts)
	r.With(s.authMiddleware).Get("/hours", s.handleHoursSummary)
	r.With(s.authMiddleware).Get("/hours/export", s.handleHoursExport)

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func deviceID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Device-ID"))
}

// activeTracker resolves the caller's tracker; nil with a written error when
// the device never activated one.
func (s *Server) activeTracker(w http.ResponseWriter, r *http.Request) *tracker.Tracker {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return nil
	}
	device := deviceID(r)
	if device == "" {
		writeError(w, http.StatusBadRequest, "missing_device")
		return nil
	}
	t := s.trackers.Get(claims.UserID, device)
	if t == nil {
		writeError(w, http.StatusConflict, "tracker_not_active")
		return nil
	}
	return t
}

// Tracker lifecycle

func (s *Server) handleActivateTracker(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	device := deviceID(r)
	if device == "" {
		writeError(w, http.StatusBadRequest, "missing_device")
		return
	}
	t, err := s.trackers.Acquire(r.Context(), claims.UserID, device)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	t.CheckUpcomingShifts(r.Context())
	writeJSON(w, http.StatusOK, t.State())
}

func (s *Server) handleDeactivateTracker(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	device := deviceID(r)
	if device == "" {
		writeError(w, http.StatusBadRequest, "missing_device")
		return
	}
	s.trackers.Release(claims.UserID, device)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrackerState(w http.ResponseWriter, r *http.Request) {
	t := s.activeTracker(w, r)
	if t == nil {
		return
	}
	writeJSON(w, http.StatusOK, t.State())
}

// Actions

type startShiftRequest struct {
	ShiftID string `json:"shiftId"`
}

func (s *Server) handleStartShift(w http.ResponseWriter, r *http.Request) {
	t := s.activeTracker(w, r)
	if t == nil {
		return
	}
	claims := claimsFromContext(r.Context())

	// An empty body means "start the signalled shift". ContentLength is -1
	// for chunked requests, so sniff emptiness from the decode itself.
	var req startShiftRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.ShiftID != "" {
		shift, found, err := s.backend.GetShift(r.Context(), req.ShiftID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "shift_not_found")
			return
		}
		if shift.EmployeeID != claims.UserID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	entry, err := t.StartShift(r.Context(), req.ShiftID)
	if errors.Is(err, model.ErrOpenEntryExists) {
		writeError(w, http.StatusConflict, "already_clocked_in")
		return
	}
	if errors.Is(err, timeclock.ErrInvalidTransition) {
		writeError(w, http.StatusConflict, "invalid_transition")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	t := s.activeTracker(w, r)
	if t == nil {
		return
	}
	t.DismissAlert(r.Context())
	writeJSON(w, http.StatusOK, t.State())
}

func (s *Server) handleStartBreak(w http.ResponseWriter, r *http.Request) {
	t := s.activeTracker(w, r)
	if t == nil {
		return
	}
	if err := t.StartBreak(r.Context()); err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t.State())
}

func (s *Server) handleEndBreak(w http.ResponseWriter, r *http.Request) {
	t := s.activeTracker(w, r)
	if t == nil {
		return
	}
	if err := t.EndBreak(r.Context()); err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t.State())
}

func (s *Server) handleClockOut(w http.ResponseWriter, r *http.Request) {
	t := s.activeTracker(w, r)
	if t == nil {
		return
	}
	entry, err := t.ClockOut(r.Context())
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func writeTransitionError(w http.ResponseWriter, err error) {
	if errors.Is(err, timeclock.ErrInvalidTransition) {
		writeError(w, http.StatusConflict, "invalid_transition")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error")
}

// Queries

// subjectEmployee resolves which employee a read targets: employees may only
// read themselves, managers and admins may pass employeeId.
func subjectEmployee(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return "", false
	}
	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" || employeeID == claims.UserID {
		return claims.UserID, true
	}
	if claims.UserType != "manager" && claims.UserType != "admin" {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return employeeID, true
}

func (s *Server) handleListShifts(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := subjectEmployee(w, r)
	if !ok {
		return
	}
	day := s.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return
		}
		day = parsed
	}
	shifts, err := s.backend.ListShiftsForEmployeeOnDate(r.Context(), employeeID, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if shifts == nil {
		shifts = []model.Shift{}
	}
	writeJSON(w, http.StatusOK, shifts)
}

func (s *Server) entriesForPeriod(w http.ResponseWriter, r *http.Request) ([]model.TimeClockEntry, report.Period, bool) {
	employeeID, ok := subjectEmployee(w, r)
	if !ok {
		return nil, "", false
	}
	period, err := report.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return nil, "", false
	}
	from, to := report.PeriodBounds(period, s.now())
	entries, err := s.backend.ListEntries(r.Context(), employeeID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return nil, "", false
	}
	return entries, period, true
}

func (s *Server) handleHoursSummary(w http.ResponseWriter, r *http.Request) {
	entries, period, ok := s.entriesForPeriod(w, r)
	if !ok {
		return
	}
	summary := report.Summarize(entries, period, s.now())
	if summary.Entries == nil {
		summary.Entries = []model.TimeClockEntry{}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHoursExport(w http.ResponseWriter, r *http.Request) {
	entries, _, ok := s.entriesForPeriod(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="hours-report.csv"`)
	w.WriteHeader(http.StatusOK)
	_ = report.WriteCSV(w, entries)
}

// Utilities

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
