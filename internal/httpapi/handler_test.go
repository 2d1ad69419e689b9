package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ticketapp/internal/auth"
	"ticketapp/internal/kvstore/memory"
	"ticketapp/internal/models"
	"ticketapp/internal/session"
	"ticketapp/internal/store"
)

type fakeTicketStore struct {
	listFn   func(ctx context.Context) ([]models.Ticket, error)
	getFn    func(ctx context.Context, id int64) (models.Ticket, bool, error)
	createFn func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error)
	updateFn func(ctx context.Context, id int64, input store.UpdateTicketInput) (models.Ticket, bool, error)
	deleteFn func(ctx context.Context, id int64) (bool, error)
	statsFn  func(ctx context.Context) (models.TicketStats, error)
}

func (f fakeTicketStore) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx)
}

func (f fakeTicketStore) GetTicket(ctx context.Context, id int64) (models.Ticket, bool, error) {
	if f.getFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.getFn(ctx, id)
}

func (f fakeTicketStore) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	if f.createFn == nil {
		return models.Ticket{}, nil
	}
	return f.createFn(ctx, input)
}

func (f fakeTicketStore) UpdateTicket(ctx context.Context, id int64, input store.UpdateTicketInput) (models.Ticket, bool, error) {
	if f.updateFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.updateFn(ctx, id, input)
}

func (f fakeTicketStore) DeleteTicket(ctx context.Context, id int64) (bool, error) {
	if f.deleteFn == nil {
		return false, nil
	}
	return f.deleteFn(ctx, id)
}

func (f fakeTicketStore) Stats(ctx context.Context) (models.TicketStats, error) {
	if f.statsFn == nil {
		return models.TicketStats{}, nil
	}
	return f.statsFn(ctx)
}

func newTestHandler(t *testing.T, tickets store.TicketStore) (*Handler, *session.Store) {
	t.Helper()
	sessions := session.NewStore(memory.NewStore())
	authService, err := auth.NewService(sessions)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return NewHandler(tickets, sessions, authService), sessions
}

func login(t *testing.T, sessions *session.Store) {
	t.Helper()
	err := sessions.Set(context.Background(), models.Session{ID: 1, Name: "Admin User", Email: "admin@example.com"})
	if err != nil {
		t.Fatalf("set session: %v", err)
	}
}

func postJSON(path string, payload interface{}) *http.Request {
	body, _ := json.Marshal(payload)
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
}

func decodeFields(t *testing.T, resp *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Fields
}

func TestLoginSuccess(t *testing.T) {
	h, sessions := newTestHandler(t, fakeTicketStore{})

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, postJSON("/api/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "password123",
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		User models.Session `json:"user"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.Name != "Admin User" {
		t.Fatalf("expected Admin User, got %q", body.User.Name)
	}

	if ok, _ := sessions.IsAuthenticated(context.Background()); !ok {
		t.Fatal("expected session persisted")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	h, sessions := newTestHandler(t, fakeTicketStore{})

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, postJSON("/api/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	}))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Message != "Invalid email or password" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}

	if ok, _ := sessions.IsAuthenticated(context.Background()); ok {
		t.Fatal("no session should be written on failure")
	}
}

func TestLoginFieldValidation(t *testing.T) {
	h, _ := newTestHandler(t, fakeTicketStore{})

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, postJSON("/api/auth/login", map[string]string{
		"email":    "not-an-email",
		"password": "",
	}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	fields := decodeFields(t, resp)
	if fields["email"] != "Please enter a valid email" {
		t.Fatalf("unexpected email error %q", fields["email"])
	}
	if fields["password"] != "Password is required" {
		t.Fatalf("unexpected password error %q", fields["password"])
	}
}

func TestSignupPasswordMismatch(t *testing.T) {
	h, _ := newTestHandler(t, fakeTicketStore{})

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, postJSON("/api/auth/signup", map[string]string{
		"name":            "New User",
		"email":           "new@example.com",
		"password":        "secret1",
		"confirmPassword": "secret2",
	}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	fields := decodeFields(t, resp)
	if fields["confirmPassword"] != "Passwords do not match" {
		t.Fatalf("unexpected error %q", fields["confirmPassword"])
	}
}

func TestSignupSuccess(t *testing.T) {
	h, sessions := newTestHandler(t, fakeTicketStore{})

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, postJSON("/api/auth/signup", map[string]string{
		"name":            "New User",
		"email":           "new@example.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	sess, ok, err := sessions.Get(context.Background())
	if err != nil || !ok {
		t.Fatalf("session not written: ok=%v err=%v", ok, err)
	}
	if sess.Email != "new@example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestLogout(t *testing.T) {
	h, sessions := newTestHandler(t, fakeTicketStore{})
	login(t, sessions)

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
	if ok, _ := sessions.IsAuthenticated(context.Background()); ok {
		t.Fatal("expected session cleared")
	}
}

func TestTicketsRequireSession(t *testing.T) {
	h, _ := newTestHandler(t, fakeTicketStore{})

	for _, target := range []string{"/api/tickets", "/api/tickets/1", "/api/tickets/stats", "/api/dashboard"} {
		resp := httptest.NewRecorder()
		h.Routes().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s: expected status 401, got %d", target, resp.Code)
		}
	}
}

func TestCreateTicketValidation(t *testing.T) {
	h, sessions := newTestHandler(t, fakeTicketStore{})
	login(t, sessions)

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, postJSON("/api/tickets", map[string]string{
		"title":  "   ",
		"status": "pending",
	}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	fields := decodeFields(t, resp)
	if fields["title"] != "Title is required" {
		t.Fatalf("unexpected title error %q", fields["title"])
	}
	if fields["status"] != "Please select a valid status" {
		t.Fatalf("unexpected status error %q", fields["status"])
	}
}

func TestCreateTicket(t *testing.T) {
	var gotInput store.CreateTicketInput
	st := fakeTicketStore{
		createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
			gotInput = input
			return models.Ticket{ID: 42, Title: input.Title, Status: models.StatusOpen, Priority: models.PriorityMedium}, nil
		},
	}
	h, sessions := newTestHandler(t, st)
	login(t, sessions)

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, postJSON("/api/tickets", map[string]string{
		"title":       "Printer on fire",
		"description": "Third floor",
	}))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if gotInput.Title != "Printer on fire" || gotInput.Description != "Third floor" {
		t.Fatalf("unexpected input %+v", gotInput)
	}

	var ticket models.Ticket
	if err := json.Unmarshal(resp.Body.Bytes(), &ticket); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ticket.ID != 42 {
		t.Fatalf("expected id 42, got %d", ticket.ID)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	h, sessions := newTestHandler(t, fakeTicketStore{})
	login(t, sessions)

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/tickets/99", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestGetTicketBadID(t *testing.T) {
	h, sessions := newTestHandler(t, fakeTicketStore{})
	login(t, sessions)

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/tickets/abc", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestUpdateTicketInvalidStatus(t *testing.T) {
	h, sessions := newTestHandler(t, fakeTicketStore{})
	login(t, sessions)

	body, _ := json.Marshal(map[string]string{"status": "done"})
	req := httptest.NewRequest(http.MethodPatch, "/api/tickets/1", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	fields := decodeFields(t, resp)
	if fields["status"] != "Please select a valid status" {
		t.Fatalf("unexpected error %q", fields["status"])
	}
}

func TestUpdateTicket(t *testing.T) {
	st := fakeTicketStore{
		updateFn: func(ctx context.Context, id int64, input store.UpdateTicketInput) (models.Ticket, bool, error) {
			if id != 7 {
				t.Fatalf("expected id 7, got %d", id)
			}
			if input.Status == nil || *input.Status != models.StatusClosed {
				t.Fatalf("expected status closed, got %+v", input.Status)
			}
			if input.Title != nil {
				t.Fatal("title should be unset in partial update")
			}
			return models.Ticket{ID: id, Status: models.StatusClosed}, true, nil
		},
	}
	h, sessions := newTestHandler(t, st)
	login(t, sessions)

	body, _ := json.Marshal(map[string]string{"status": "closed"})
	req := httptest.NewRequest(http.MethodPatch, "/api/tickets/7", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestDeleteTicket(t *testing.T) {
	st := fakeTicketStore{
		deleteFn: func(ctx context.Context, id int64) (bool, error) {
			return id == 7, nil
		},
	}
	h, sessions := newTestHandler(t, st)
	login(t, sessions)

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/tickets/7", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/tickets/8", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestDashboardRecentTickets(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tickets := make([]models.Ticket, 7)
	for i := range tickets {
		tickets[i] = models.Ticket{
			ID:        int64(i + 1),
			Title:     "ticket",
			Status:    models.StatusOpen,
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	st := fakeTicketStore{
		listFn: func(ctx context.Context) ([]models.Ticket, error) {
			return tickets, nil
		},
		// stale counts; the dashboard must derive stats from the same
		// snapshot it lists, not from a second load
		statsFn: func(ctx context.Context) (models.TicketStats, error) {
			return models.TicketStats{Total: 99}, nil
		},
	}
	h, sessions := newTestHandler(t, st)
	login(t, sessions)

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var body struct {
		Stats  models.TicketStats `json:"stats"`
		Recent []models.Ticket    `json:"recentTickets"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Recent) != 5 {
		t.Fatalf("expected 5 recent tickets, got %d", len(body.Recent))
	}
	if body.Recent[0].ID != 7 {
		t.Fatalf("expected most recently updated first, got id %d", body.Recent[0].ID)
	}
	for i := 1; i < len(body.Recent); i++ {
		if body.Recent[i].UpdatedAt.After(body.Recent[i-1].UpdatedAt) {
			t.Fatalf("recent tickets not sorted descending at %d", i)
		}
	}
	if body.Stats.Total != 7 || body.Stats.Open != 7 {
		t.Fatalf("stats disagree with the listed collection: %+v", body.Stats)
	}
}

func TestStats(t *testing.T) {
	st := fakeTicketStore{
		statsFn: func(ctx context.Context) (models.TicketStats, error) {
			return models.TicketStats{Total: 3, Open: 1, InProgress: 1, Closed: 1}, nil
		},
	}
	h, sessions := newTestHandler(t, st)
	login(t, sessions)

	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/tickets/stats", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var stats models.TicketStats
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != stats.Open+stats.InProgress+stats.Closed {
		t.Fatalf("stats do not add up: %+v", stats)
	}
}
