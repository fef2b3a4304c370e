package api

import (
	"fmt"
	"net/http"
	"strings"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

type slotView struct {
	Court int `json:"court"`
	Hour  int `json:"hour"`
}

type takenSlotView struct {
	Court  int           `json:"court"`
	Hour   int           `json:"hour"`
	Status models.Status `json:"status"`
	Key    string        `json:"key"`
}

type createdBookingView struct {
	ID     string        `json:"id"`
	Status models.Status `json:"status"`
	Date   string        `json:"date"`
	Court  int           `json:"court"`
	Hour   int           `json:"hour"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health.HealthCheck(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.svc.Users.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
	if err := s.svc.Users.Logout(r.Context(), id.TokenID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
	userID := r.PathValue("id")
	if err := selfOrAdmin(id, userID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.svc.Users.Update(r.Context(), userID, req.Name, req.Phone)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.Users.GetProfile(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleUpsertProfile(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
	userID := r.PathValue("userId")
	if err := selfOrAdmin(id, userID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		EmergencyName  string `json:"emergency_name"`
		EmergencyPhone string `json:"emergency_phone"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.svc.Users.UpsertProfile(r.Context(), userID, req.EmergencyName, req.EmergencyPhone)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleTakenSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	slots, err := s.svc.Availability.TakenSlots(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	taken := make([]takenSlotView, 0, len(slots))
	for _, slot := range slots {
		taken = append(taken, takenSlotView{Court: slot.Court, Hour: slot.Hour, Status: slot.Status, Key: slot.Key()})
	}

	// Availability must never be served from an intermediate cache.
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{"date": strings.TrimSpace(date), "taken": taken})
}

func (s *HTTPServer) handleGrid(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	grid, err := s.svc.Availability.Grid(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{"date": strings.TrimSpace(date), "grid": grid})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
	var req domain.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.UserID == "" {
		req.UserID = id.UserID
	}
	if err := selfOrAdmin(id, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/bookings/user/%s", booking.UserID))
	writeJSON(w, http.StatusCreated, createdBookingView{
		ID:     booking.ID,
		Status: booking.Status,
		Date:   booking.DateKey,
		Court:  booking.Court,
		Hour:   booking.Hour,
	})
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ListByUser(r.Context(), r.PathValue("userId"), r.PathValue("date"), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	mine := make([]string, 0, len(bookings))
	items := make([]slotView, 0, len(bookings))
	for _, b := range bookings {
		mine = append(mine, b.SlotKey())
		items = append(items, slotView{Court: b.Court, Hour: b.Hour})
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{"mine": mine, "items": items})
}

func (s *HTTPServer) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ListByUser(r.Context(), r.PathValue("userId"), "", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleAdminBookings(w http.ResponseWriter, r *http.Request, _ *domain.Identity) {
	var (
		bookings []*models.Booking
		err      error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		bookings, err = s.svc.Bookings.ListByDate(r.Context(), date)
	} else {
		bookings, err = s.svc.Bookings.ListAll(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request, _ *domain.Identity) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ *domain.Identity) {
	users, err := s.svc.Users.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request, _ *domain.Identity) {
	if err := s.svc.Users.SoftDelete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
