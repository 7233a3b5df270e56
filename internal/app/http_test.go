package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"prdhub/api/internal/store"
)

type fakeTickets struct {
	mu      sync.Mutex
	next    int
	pending map[string]string
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{pending: map[string]string{}}
}

func (f *fakeTickets) Issue(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ticket := fmt.Sprintf("tkt_%d", f.next)
	f.pending[ticket] = userID
	return ticket, nil
}

func (f *fakeTickets) Redeem(_ context.Context, ticket string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.pending[ticket]
	if !ok {
		return "", errors.New("ticket not found")
	}
	delete(f.pending, ticket)
	return userID, nil
}

// memoryUsers backs a fakeStore with an in-memory user table for the auth
// flow tests.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]store.User
}

func (m *memoryUsers) wire(fs *fakeStore) {
	m.users = map[string]store.User{}
	fs.createUserFn = func(_ context.Context, u store.User) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.users[u.ID] = u
		return nil
	}
	fs.getUserByEmailFn = func(_ context.Context, email string) (store.User, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, u := range m.users {
			if u.Email == email {
				return u, nil
			}
		}
		return store.User{}, errNoUser
	}
	fs.getUserByIDFn = func(_ context.Context, id string) (store.User, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if u, ok := m.users[id]; ok {
			return u, nil
		}
		return store.User{}, errNoUser
	}
}

var errNoUser = sql.ErrNoRows

func doRequest(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func authedHandler(t *testing.T, fs *fakeStore) (http.Handler, string) {
	t.Helper()
	user := store.User{ID: "usr_1", DisplayName: "Avery"}
	if fs.getUserByIDFn == nil {
		fs.getUserByIDFn = func(_ context.Context, id string) (store.User, error) {
			if id == user.ID {
				return user, nil
			}
			return store.User{}, errNoUser
		}
	}
	svc := newTestService(fs, &fakeGit{})
	sess, err := svc.CreateSession(user)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return NewHTTPServer(svc, "*").Handler(), sess.Token
}

func TestHealth(t *testing.T) {
	handler, _ := authedHandler(t, &fakeStore{})
	rec := doRequest(t, handler, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReadyReflectsDatabase(t *testing.T) {
	fs := &fakeStore{pingFn: func(context.Context) error {
		return errors.New("connection refused")
	}}
	handler, _ := authedHandler(t, fs)
	rec := doRequest(t, handler, http.MethodGet, "/api/ready", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["status"] != "not_ready" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	handler, _ := authedHandler(t, &fakeStore{})

	rec := doRequest(t, handler, http.MethodGet, "/api/prds", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}
	if decodeResponse(t, rec)["code"] != "UNAUTHORIZED" {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/prds", "not-a-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", rec.Code)
	}
}

func TestSignUpSignInFlow(t *testing.T) {
	fs := &fakeStore{}
	(&memoryUsers{}).wire(fs)
	svc := newTestService(fs, &fakeGit{})
	handler := NewHTTPServer(svc, "*").Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/auth/signup", "",
		`{"email":"avery@example.com","password":"hunter2hunter2","displayName":"Avery"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d body = %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	token, _ := payload["accessToken"].(string)
	if token == "" || payload["userName"] != "Avery" {
		t.Fatalf("signup payload = %v", payload)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/prds", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list with token: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/auth/signin", "",
		`{"email":"avery@example.com","password":"hunter2hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status = %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/auth/signin", "",
		`{"email":"avery@example.com","password":"wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}
	if decodeResponse(t, rec)["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/auth/signup", "",
		`{"email":"avery@example.com","password":"hunter2hunter2"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/auth/signup", "",
		`{"email":"short@example.com","password":"short"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("weak password status = %d", rec.Code)
	}
}

func TestSessionEndpoint(t *testing.T) {
	handler, token := authedHandler(t, &fakeStore{})

	rec := doRequest(t, handler, http.MethodGet, "/api/session", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeResponse(t, rec)["authenticated"] != false {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/session", token, "")
	payload := decodeResponse(t, rec)
	if payload["authenticated"] != true || payload["userName"] != "Avery" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestGalleryIsPublic(t *testing.T) {
	fs := &fakeStore{listPublicPRDsFn: func(_ context.Context, limit int) ([]store.PRD, error) {
		return []store.PRD{{ID: "prd_1", Title: "Public plan", Visibility: "public"}}, nil
	}}
	handler, _ := authedHandler(t, fs)

	rec := doRequest(t, handler, http.MethodGet, "/api/gallery", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	prds, ok := payload["prds"].([]any)
	if !ok || len(prds) != 1 {
		t.Fatalf("payload = %v", payload)
	}
}

func TestCreatePRDOverHTTP(t *testing.T) {
	fs := &fakeStore{
		getTeamFn: func(context.Context, string) (store.Team, error) {
			return store.Team{ID: "team_1"}, nil
		},
	}
	handler, token := authedHandler(t, fs)

	rec := doRequest(t, handler, http.MethodPost, "/api/prds", token,
		`{"title":"Checkout revamp","teamId":"team_1","visibility":"public"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["title"] != "Checkout revamp" || payload["visibility"] != "public" {
		t.Fatalf("payload = %v", payload)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/prds", token, `{"teamId":"team_1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing title status = %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/prds", token, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", rec.Code)
	}
	if decodeResponse(t, rec)["code"] != "INVALID_BODY" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestGetPRDAccessControl(t *testing.T) {
	fs := &fakeStore{
		canAccessFn: func(_ context.Context, userID, prdID string) (bool, error) {
			return prdID == "prd_open", nil
		},
		getPRDFn: func(_ context.Context, id string) (store.PRD, error) {
			return store.PRD{ID: id, Title: "Open plan"}, nil
		},
	}
	handler, token := authedHandler(t, fs)

	rec := doRequest(t, handler, http.MethodGet, "/api/prds/prd_open", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("allowed: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/prds/prd_locked", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("denied: status = %d", rec.Code)
	}
	if decodeResponse(t, rec)["code"] != "FORBIDDEN" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestPutContentOverHTTP(t *testing.T) {
	fs := &fakeStore{
		roleForFn: func(context.Context, string, string) (string, error) {
			return "editor", nil
		},
	}
	handler, token := authedHandler(t, fs)

	rec := doRequest(t, handler, http.MethodPut, "/api/prds/prd_1/content", token,
		`{"content":{"title":"Checkout revamp","sections":[{"name":"overview","body":"hi"}]},"message":"edit"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if _, ok := payload["commit"]; !ok {
		t.Fatalf("payload = %v", payload)
	}
}

func TestDeletePRDOverHTTP(t *testing.T) {
	var deleted string
	fs := &fakeStore{
		roleForFn: func(context.Context, string, string) (string, error) {
			return "owner", nil
		},
		deletePRDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	handler, token := authedHandler(t, fs)

	rec := doRequest(t, handler, http.MethodDelete, "/api/prds/prd_1", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if deleted != "prd_1" {
		t.Fatalf("deleted = %q", deleted)
	}

	fs.roleForFn = func(context.Context, string, string) (string, error) {
		return "viewer", nil
	}
	rec = doRequest(t, handler, http.MethodDelete, "/api/prds/prd_1", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer delete status = %d", rec.Code)
	}
}

func TestCollabTicketRoute(t *testing.T) {
	fs := &fakeStore{}
	handler, token := authedHandler(t, fs)

	// no ticket store configured
	rec := doRequest(t, handler, http.MethodPost, "/api/collab/ticket", token, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured: status = %d", rec.Code)
	}

	fs2 := &fakeStore{getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
		return store.User{ID: id, DisplayName: "Avery"}, nil
	}}
	svc := newTestService(fs2, &fakeGit{})
	svc.tickets = newFakeTickets()
	sess, err := svc.CreateSession(store.User{ID: "usr_1", DisplayName: "Avery"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	handler = NewHTTPServer(svc, "*").Handler()

	rec = doRequest(t, handler, http.MethodPost, "/api/collab/ticket", sess.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	ticket, _ := decodeResponse(t, rec)["ticket"].(string)
	if ticket == "" {
		t.Fatal("expected a ticket")
	}

	userID, err := svc.tickets.Redeem(context.Background(), ticket)
	if err != nil || userID != "usr_1" {
		t.Fatalf("Redeem() = %q, %v", userID, err)
	}
	if _, err := svc.tickets.Redeem(context.Background(), ticket); err == nil {
		t.Fatal("ticket redeemed twice")
	}
}

func TestUnknownRoute(t *testing.T) {
	handler, token := authedHandler(t, &fakeStore{})
	rec := doRequest(t, handler, http.MethodGet, "/api/nope", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMalformedLimitRejected(t *testing.T) {
	handler, _ := authedHandler(t, &fakeStore{})
	rec := doRequest(t, handler, http.MethodGet, "/api/gallery?limit=abc", "", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}
