package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"ticketapp/internal/auth"
	"ticketapp/internal/kvstore"
	"ticketapp/internal/models"
	"ticketapp/internal/session"
	"ticketapp/internal/store"
	"ticketapp/internal/validate"
)

const recentTicketLimit = 5

type Handler struct {
	tickets  store.TicketStore
	sessions *session.Store
	auth     *auth.Service
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type createTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

type updateTicketRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
}

type sessionResponse struct {
	User models.Session `json:"user"`
}

type dashboardResponse struct {
	Stats  models.TicketStats `json:"stats"`
	Recent []models.Ticket    `json:"recentTickets"`
}

type errorResponse struct {
	Error  responseError     `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(tickets store.TicketStore, sessions *session.Store, authService *auth.Service) *Handler {
	return &Handler{tickets: tickets, sessions: sessions, auth: authService}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/signup", h.handleSignup)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/me", h.handleMe)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/stats", h.handleStats)
	mux.HandleFunc("/api/tickets/", h.handleTicketByID)
	mux.HandleFunc("/api/dashboard", h.handleDashboard)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Email = strings.TrimSpace(req.Email)

	fields := map[string]string{}
	if !validate.IsRequired(req.Email) {
		fields["email"] = "Email is required"
	} else if !validate.IsValidEmail(req.Email) {
		fields["email"] = "Please enter a valid email"
	}
	if !validate.IsRequired(req.Password) {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	sess, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{User: sess})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	fields := map[string]string{}
	if !validate.IsRequired(req.Name) {
		fields["name"] = "Name is required"
	}
	if !validate.IsRequired(req.Email) {
		fields["email"] = "Email is required"
	} else if !validate.IsValidEmail(req.Email) {
		fields["email"] = "Please enter a valid email"
	}
	if !validate.IsRequired(req.Password) {
		fields["password"] = "Password is required"
	} else if !validate.MinLength(req.Password, 6) {
		fields["password"] = "Password must be at least 6 characters"
	}
	if !validate.IsRequired(req.ConfirmPassword) {
		fields["confirmPassword"] = "Please confirm your password"
	} else if req.Password != req.ConfirmPassword {
		fields["confirmPassword"] = "Passwords do not match"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	sess, err := h.auth.Signup(r.Context(), req.Name, req.Email)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{User: sess})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.sessions.Clear(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, ok, err := h.sessions.Get(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: sess})
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		tickets, err := h.tickets.ListTickets(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if tickets == nil {
			tickets = []models.Ticket{}
		}
		writeJSON(w, http.StatusOK, tickets)
	case http.MethodPost:
		h.handleCreateTicket(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Status = strings.TrimSpace(req.Status)
	req.Priority = strings.TrimSpace(req.Priority)

	fields := validateTicketFields(req.Title, req.Status, req.Priority, req.Description)
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	ticket, err := h.tickets.CreateTicket(r.Context(), store.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleTicketByID(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	id, err := strconv.ParseInt(strings.TrimSuffix(raw, "/"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "ticket id must be an integer")
		return
	}

	switch r.Method {
	case http.MethodGet:
		ticket, ok, err := h.tickets.GetTicket(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	case http.MethodPatch:
		h.handleUpdateTicket(w, r, id)
	case http.MethodDelete:
		ok, err := h.tickets.DeleteTicket(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleUpdateTicket(w http.ResponseWriter, r *http.Request, id int64) {
	var req updateTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	fields := map[string]string{}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
		if !validate.IsRequired(trimmed) {
			fields["title"] = "Title is required"
		} else if !validate.MaxLength(trimmed, 100) {
			fields["title"] = "Title must be at most 100 characters"
		}
	}
	if req.Status != nil && !validate.IsValidStatus(*req.Status) {
		fields["status"] = "Please select a valid status"
	}
	if req.Priority != nil && !validate.IsValidPriority(*req.Priority) {
		fields["priority"] = "Please select a valid priority"
	}
	if req.Description != nil && !validate.MaxLength(*req.Description, 1000) {
		fields["description"] = "Description must be at most 1000 characters"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	ticket, ok, err := h.tickets.UpdateTicket(r.Context(), id, store.UpdateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "ticket not found")
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireSession(w, r) {
		return
	}

	stats, err := h.tickets.Stats(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleDashboard layers the recent-tickets view on top of the store's
// unordered contract: a copy sorted by updatedAt descending, first five.
// Stats are counted from the same snapshot as the list, so the two halves
// of the response can never disagree.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireSession(w, r) {
		return
	}

	tickets, err := h.tickets.ListTickets(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	stats := models.CountStats(tickets)

	recent := make([]models.Ticket, len(tickets))
	copy(recent, tickets)
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].UpdatedAt.After(recent[j].UpdatedAt)
	})
	if len(recent) > recentTicketLimit {
		recent = recent[:recentTicketLimit]
	}

	writeJSON(w, http.StatusOK, dashboardResponse{Stats: stats, Recent: recent})
}

func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) bool {
	ok, err := h.sessions.IsAuthenticated(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return false
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return false
	}
	return true
}

func validateTicketFields(title, status, priority, description string) map[string]string {
	fields := map[string]string{}
	if !validate.IsRequired(title) {
		fields["title"] = "Title is required"
	} else if !validate.MaxLength(title, 100) {
		fields["title"] = "Title must be at most 100 characters"
	}
	if status != "" && !validate.IsValidStatus(status) {
		fields["status"] = "Please select a valid status"
	}
	if priority != "" && !validate.IsValidPriority(priority) {
		fields["priority"] = "Please select a valid priority"
	}
	if !validate.MaxLength(description, 1000) {
		fields["description"] = "Description must be at most 1000 characters"
	}
	return fields
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, kvstore.ErrCorrupt) {
		writeError(w, http.StatusInternalServerError, "storage_corrupt", "stored data is corrupt")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeFieldErrors(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  responseError{Code: "validation_failed", Message: "one or more fields are invalid"},
		Fields: fields,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
