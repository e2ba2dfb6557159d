package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kintai/internal/reservation"
	"kintai/internal/status"
	"kintai/internal/worklog"
)

// StatusStore is the gateway's view of the status store.
type StatusStore interface {
	Get(ctx context.Context, userID string) (*status.WorkStatus, error)
	All(ctx context.Context) ([]status.WorkStatus, error)
	Set(ctx context.Context, st *status.WorkStatus) error
	Subscribe(ctx context.Context, userID string) (<-chan status.WorkStatus, error)
}

// ReservationStore is the gateway's view of the reservation store.
type ReservationStore interface {
	Save(ctx context.Context, res reservation.Reservation) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]reservation.Reservation, error)
}

// LogStore receives entries closed by user actions.
type LogStore interface {
	Append(ctx context.Context, e worklog.Entry) (string, error)
}

// Server exposes the request/response channel (plain HTTP) and the push
// channel (a websocket relay of the status subscription) to clients.
type Server struct {
	states StatusStore
	resv   ReservationStore
	logs   LogStore
	log    zerolog.Logger

	allowedOrigins []string
}

type ServerOptions struct {
	Status         StatusStore
	Reservations   ReservationStore
	Logs           LogStore
	Logger         zerolog.Logger
	AllowedOrigins []string
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Status == nil {
		return nil, errors.New("status store is required")
	}
	if opts.Reservations == nil {
		return nil, errors.New("reservation store is required")
	}
	if opts.Logs == nil {
		return nil, errors.New("log store is required")
	}
	return &Server{
		states:         opts.Status,
		resv:           opts.Reservations,
		logs:           opts.Logs,
		log:            opts.Logger,
		allowedOrigins: opts.AllowedOrigins,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleGetStatus)
	mux.HandleFunc("GET /status/all", s.handleAllStatus)
	mux.HandleFunc("POST /status", s.handlePostStatus)
	mux.HandleFunc("POST /force-stop", s.handleForceStop)
	mux.HandleFunc("GET /reservations", s.handleListReservations)
	mux.HandleFunc("POST /reservations", s.handleSaveReservation)
	mux.HandleFunc("DELETE /reservations/{id}", s.handleDeleteReservation)
	mux.HandleFunc("POST /logs", s.handleAppendLog)
	mux.HandleFunc("GET /ws/status", s.handleWS)
	return mux
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	st, err := s.states.Get(r.Context(), userID)
	if errors.Is(err, status.ErrNotFound) {
		http.Error(w, "no status record", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("gateway: status read failed")
		http.Error(w, "status read failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleAllStatus(w http.ResponseWriter, r *http.Request) {
	all, err := s.states.All(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("gateway: status scan failed")
		http.Error(w, "status scan failed", http.StatusInternalServerError)
		return
	}
	if all == nil {
		all = []status.WorkStatus{}
	}
	writeJSON(w, all)
}

// handlePostStatus is the user-originated status write. The whole record
// replaces the stored one in a single store call, so readers never observe
// a half-applied update.
func (s *Server) handlePostStatus(w http.ResponseWriter, r *http.Request) {
	var st status.WorkStatus
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		http.Error(w, "invalid status payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(st.UserID) == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	// Writer identity is not client-assignable: the scheduler writes
	// through the store and admin resets go through force-stop.
	st.LastUpdatedBy = status.UpdatedByUser
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	if !st.Valid() {
		http.Error(w, "working status requires current_task and start_time", http.StatusBadRequest)
		return
	}
	if err := s.states.Set(r.Context(), &st); err != nil {
		s.log.Error().Err(err).Str("user", st.UserID).Msg("gateway: status write failed")
		http.Error(w, "status write failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleForceStop is the admin reset: everything cleared, pre-break
// residue included.
func (s *Server) handleForceStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	cur, err := s.states.Get(r.Context(), req.UserID)
	if errors.Is(err, status.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		http.Error(w, "status read failed", http.StatusInternalServerError)
		return
	}
	next := &status.WorkStatus{
		UserID:        cur.UserID,
		UserName:      cur.UserName,
		IsWorking:     false,
		UpdatedAt:     time.Now(),
		LastUpdatedBy: status.UpdatedByAdmin,
	}
	if err := s.states.Set(r.Context(), next); err != nil {
		s.log.Error().Err(err).Str("user", req.UserID).Msg("gateway: force stop failed")
		http.Error(w, "status write failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	list, err := s.resv.ListByUser(r.Context(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("gateway: reservation list failed")
		http.Error(w, "reservation list failed", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []reservation.Reservation{}
	}
	writeJSON(w, list)
}

func (s *Server) handleSaveReservation(w http.ResponseWriter, r *http.Request) {
	var res reservation.Reservation
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		http.Error(w, "invalid reservation payload", http.StatusBadRequest)
		return
	}
	res.Status = reservation.StateReserved
	if err := res.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.resv.Save(r.Context(), res); err != nil {
		s.log.Error().Err(err).Str("reservation", res.ID).Msg("gateway: reservation save failed")
		http.Error(w, "reservation save failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := s.resv.Delete(r.Context(), id); err != nil {
		s.log.Error().Err(err).Str("reservation", id).Msg("gateway: reservation delete failed")
		http.Error(w, "reservation delete failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	var e worklog.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "invalid log payload", http.StatusBadRequest)
		return
	}
	if e.Source == "" {
		e.Source = worklog.SourceManual
	}
	if _, err := s.logs.Append(r.Context(), e); err != nil {
		if errors.Is(err, worklog.ErrNonPositiveDuration) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error().Err(err).Str("user", e.UserID).Msg("gateway: log append failed")
		http.Error(w, "log append failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
