package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"classbook/internal/auth"
	"classbook/internal/database"
	"classbook/internal/metrics"
	"classbook/internal/models"
)

func (s *Server) issue(w http.ResponseWriter, status int, user *models.User) {
	token, err := s.tokens.NewToken(user.Identity)
	if err != nil {
		s.logger.Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, codeServerError)
		return
	}
	writeJSON(w, status, models.AuthResponse{Token: token, User: user.Identity})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidation(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeValidation(w, errors.New("email and password are required"))
		return
	}

	user, err := s.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.authFailure("credentials")
			writeError(w, http.StatusUnauthorized, codeInvalidCredentials)
			return
		}
		s.writeStoreError(w, "signin", err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.authFailure("credentials")
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials)
		return
	}
	s.issue(w, http.StatusOK, user)
}

func validateSignUp(req models.SignUpRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return errors.New("a valid email is required")
	}
	if len(req.Password) < auth.MinPasswordLength {
		return auth.ErrPasswordTooShort
	}
	return nil
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidation(w, err)
		return
	}
	if err := validateSignUp(req); err != nil {
		writeValidation(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeStoreError(w, "signup", err)
		return
	}

	user, err := s.db.CreateUser(r.Context(), req.Name, req.Email, hash)
	if err != nil {
		s.writeStoreError(w, "signup", err)
		return
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("User signed up")
	s.issue(w, http.StatusCreated, user)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	user, err := s.db.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		// A token for a deleted account is no longer valid.
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, codeInvalidToken)
			return
		}
		s.writeStoreError(w, "get me", err)
		return
	}
	writeJSON(w, http.StatusOK, user.Identity)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.db.GetUserByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeStoreError(w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, user.Identity)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	id := chi.URLParam(r, "userID")
	if claims.UserID != id {
		writeError(w, http.StatusForbidden, codeForbidden)
		return
	}

	var upd models.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeValidation(w, err)
		return
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		writeValidation(w, errors.New("name cannot be empty"))
		return
	}
	if upd.Email != nil {
		if _, err := mail.ParseAddress(strings.TrimSpace(*upd.Email)); err != nil {
			writeValidation(w, errors.New("a valid email is required"))
			return
		}
	}

	user, err := s.db.UpdateUser(r.Context(), id, upd)
	if err != nil {
		s.writeStoreError(w, "update user", err)
		return
	}
	writeJSON(w, http.StatusOK, user.Identity)
}

func (s *Server) handleListClassrooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.db.ListClassrooms(r.Context())
	if err != nil {
		s.writeStoreError(w, "list classrooms", err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleGetClassroom(w http.ResponseWriter, r *http.Request) {
	room, err := s.db.GetClassroom(r.Context(), chi.URLParam(r, "classroomID"))
	if err != nil {
		s.writeStoreError(w, "get classroom", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleCreateClassroom(w http.ResponseWriter, r *http.Request) {
	var req models.NewClassroom
	if err := decodeJSON(r, &req); err != nil {
		writeValidation(w, err)
		return
	}
	room, err := s.db.CreateClassroom(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, "create classroom", err)
		return
	}
	s.InvalidateClassrooms()
	if s.opts.Metrics {
		metrics.IncClassroomCreated()
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListReservationsByUser(r.Context(), claimsFromContext(r.Context()).UserID)
	if err != nil {
		s.writeStoreError(w, "my reservations", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleClassroomReservations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "classroomID")
	if _, err := s.db.GetClassroom(r.Context(), id); err != nil {
		s.writeStoreError(w, "classroom reservations", err)
		return
	}
	list, err := s.db.ListReservationsByClassroom(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "classroom reservations", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req models.ReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidation(w, err)
		return
	}
	claims := claimsFromContext(r.Context())
	res, err := s.db.CreateReservation(r.Context(), claims.UserID, req)
	if err != nil {
		s.writeStoreError(w, "create reservation", err)
		return
	}
	if s.opts.Metrics {
		metrics.IncReservationCreated()
	}
	s.logger.Info().Str("reservation_id", res.ID).Str("classroom_id", res.ClassroomID).
		Str("user_id", claims.UserID).Msg("Reservation created")
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reservationID")
	claims := claimsFromContext(r.Context())

	res, err := s.db.GetReservation(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "delete reservation", err)
		return
	}
	if res.User.ID != claims.UserID && claims.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, codeForbidden)
		return
	}
	if err := s.db.DeleteReservation(r.Context(), id); err != nil {
		s.writeStoreError(w, "delete reservation", err)
		return
	}
	if s.opts.Metrics {
		metrics.IncReservationCancelled()
	}
	w.WriteHeader(http.StatusNoContent)
}
