package test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cataloghandler "libris/internal/catalog/handler"
	catalogservice "libris/internal/catalog/service"
	catalogstore "libris/internal/catalog/store"
	"libris/internal/identity"
	identitystore "libris/internal/identity/store"
	lendinghandler "libris/internal/lending/handler"
	lendingservice "libris/internal/lending/service"
	lendingstore "libris/internal/lending/store"
	httptransport "libris/internal/transport/http"
	id "libris/pkg/domain"
	auditmemory "libris/pkg/platform/audit/store/memory"
	"libris/pkg/platform/audit/publisher"
	"libris/pkg/testutil"
)

type stack struct {
	router http.Handler
	tokens *identity.TokenService

	adminToken     string
	librarianToken string
	memberToken    string
}

// newStack wires the full service the way cmd/server does, on in-memory
// stores, with real JWTs flowing through the real middleware chain.
func newStack(t *testing.T) *stack {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	now := time.Now().UTC()

	users := identitystore.NewInMemoryStore()
	books := catalogstore.NewInMemoryStore()
	loans := lendingstore.NewInMemoryStore()
	auditPub := publisher.NewPublisher(auditmemory.NewInMemoryStore(), publisher.WithLogger(log))
	t.Cleanup(auditPub.Close)

	resolver := identity.NewResolver(users, nil, time.Minute, log)
	tokens := identity.NewTokenService([]byte("router-test-secret"), "libris", time.Hour)

	s := &stack{tokens: tokens}
	for _, u := range []struct {
		role  id.Role
		token *string
	}{
		{id.RoleAdmin, &s.adminToken},
		{id.RoleLibrarian, &s.librarianToken},
		{id.RoleMember, &s.memberToken},
	} {
		principal := &identity.Principal{
			ID:        id.NewUserID(),
			Username:  string(u.role),
			Email:     string(u.role) + "@example.com",
			Roles:     id.NewRoleSet(u.role),
			CreatedAt: now,
		}
		require.NoError(t, users.Create(t.Context(), principal))

		token, err := tokens.GenerateAccessToken(principal, now)
		require.NoError(t, err)
		*u.token = token
	}

	lendSvc := lendingservice.New(books, loans, resolver,
		lendingservice.NewShardedTx(), auditPub, log)
	catSvc := catalogservice.New(books, loans, resolver, auditPub, log)

	s.router = httptransport.NewRouter(tokens,
		lendinghandler.New(lendSvc, log),
		cataloghandler.New(catSvc, log),
		log,
	)
	return s
}

func (s *stack) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestPublicEndpoints(t *testing.T) {
	s := newStack(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", "", nil).Code)
}

func TestAuthenticationGate(t *testing.T) {
	s := newStack(t)

	testutil.Given(t, "a request without a token", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/books", "", nil)

		testutil.Then(t, "the API rejects it before any handler runs", func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	})

	rec := s.do(t, http.MethodGet, "/books", "not-a-valid-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLendingFlow(t *testing.T) {
	s := newStack(t)

	// Admin creates a book.
	rec := s.do(t, http.MethodPost, "/books", s.adminToken, map[string]any{
		"title":  "Too Like the Lightning",
		"author": "Ada Palmer",
		"isbn":   "9780765378002",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var book struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	assert.Equal(t, "available", book.Status)

	// A member may not create books.
	rec = s.do(t, http.MethodPost, "/books", s.memberToken, map[string]any{
		"title": "x", "author": "y", "isbn": "1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Member borrows it.
	rec = s.do(t, http.MethodPost, "/books/"+book.ID+"/borrow", s.memberToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// A second borrow conflicts.
	rec = s.do(t, http.MethodPost, "/books/"+book.ID+"/borrow", s.librarianToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The member sees the loan; a book the member can read too.
	rec = s.do(t, http.MethodGet, "/loans", s.memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loans []lendinghandler.LoanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loans))
	require.Len(t, loans, 1)
	assert.Equal(t, book.ID, loans[0].BookID)

	// The member cannot return it, the librarian can.
	rec = s.do(t, http.MethodPost, "/books/"+book.ID+"/return", s.memberToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/books/"+book.ID+"/return", s.librarianToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// History is librarian territory.
	rec = s.do(t, http.MethodGet, "/books/"+book.ID+"/history", s.memberToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/books/"+book.ID+"/history", s.librarianToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []lendinghandler.LoanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.True(t, history[0].Returned)
}
