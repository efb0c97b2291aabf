package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/accountd/accountd/internal/domain"
	"github.com/accountd/accountd/internal/pkg/httputil"
	"github.com/accountd/accountd/internal/pkg/password"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// newTestRouter serves the users routes. A non-empty callerRole is attached
// to every request as if an authentication stage had run.
func newTestRouter(callerRole domain.Role) (http.Handler, *mockRepository) {
	service, repo := newTestService()
	handler := NewHandler(service)

	r := chi.NewRouter()
	if callerRole != "" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := context.WithValue(req.Context(), httputil.UserIDKey, "caller")
				ctx = context.WithValue(ctx, httputil.RoleKey, callerRole)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	handler.RegisterRoutes(r)
	return r, repo
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createUser(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/users",
		`{"email":"`+email+`","password":"abcdef","profile":{"firstName":"A","lastName":"B"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestHandler_CreateAndGet(t *testing.T) {
	router, _ := newTestRouter("")
	id := createUser(t, router, "a@x.com")

	rec := doRequest(t, router, http.MethodGet, "/users/"+id, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "passwordHash")
	assert.NotContains(t, body, "abcdef")

	var detail map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, id, detail["id"])
	assert.Equal(t, "USER", detail["role"])
	profile := detail["profile"].(map[string]any)
	assert.Nil(t, profile["phone"])
	assert.Nil(t, profile["birthDate"])
}

func TestHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"email":`},
		{"missing email", `{"password":"abcdef","profile":{"firstName":"A","lastName":"B"}}`},
		{"bad email", `{"email":"nope","password":"abcdef","profile":{"firstName":"A","lastName":"B"}}`},
		{"short password", `{"email":"a@x.com","password":"abc","profile":{"firstName":"A","lastName":"B"}}`},
		{"missing profile", `{"email":"a@x.com","password":"abcdef"}`},
		{"blank first name", `{"email":"a@x.com","password":"abcdef","profile":{"firstName":"  ","lastName":"B"}}`},
		{"unknown role", `{"email":"a@x.com","password":"abcdef","role":"ROOT","profile":{"firstName":"A","lastName":"B"}}`},
		{"bad birth date", `{"email":"a@x.com","password":"abcdef","profile":{"firstName":"A","lastName":"B","birthDate":"31/12/1990"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, repo := newTestRouter("")

			rec := doRequest(t, router, http.MethodPost, "/users", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, repo.users)
		})
	}
}

func TestHandler_CreateLongPasswordIsBadRequest(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{"over 72 characters", strings.Repeat("a", 80)},
		{"over 72 bytes in 40 characters", strings.Repeat("é", 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			handler := NewHandler(NewService(repo, password.NewHasherWithCost(bcrypt.MinCost)))
			r := chi.NewRouter()
			handler.RegisterRoutes(r)

			rec := doRequest(t, r, http.MethodPost, "/users",
				`{"email":"a@x.com","password":"`+tt.plaintext+`","profile":{"firstName":"A","lastName":"B"}}`)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Empty(t, repo.users)
		})
	}
}

func TestHandler_CreateWithRealHasher(t *testing.T) {
	repo := newMockRepository()
	handler := NewHandler(NewService(repo, password.NewHasherWithCost(bcrypt.MinCost)))
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	rec := doRequest(t, r, http.MethodPost, "/users",
		`{"email":"a@x.com","password":"`+strings.Repeat("a", 72)+`","profile":{"firstName":"A","lastName":"B"}}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, repo.users, 1)
}

func TestHandler_CreateDuplicateEmail(t *testing.T) {
	router, _ := newTestRouter("")
	createUser(t, router, "a@x.com")

	rec := doRequest(t, router, http.MethodPost, "/users",
		`{"email":"A@x.com ","password":"abcdef","profile":{"firstName":"A","lastName":"B"}}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "email already exists")
}

func TestHandler_CreateAdminRequiresAdminCaller(t *testing.T) {
	body := `{"email":"boss@x.com","password":"abcdef","role":"ADMIN","profile":{"firstName":"A","lastName":"B"}}`

	anonymous, _ := newTestRouter("")
	rec := doRequest(t, anonymous, http.MethodPost, "/users", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	user, _ := newTestRouter(domain.RoleUser)
	rec = doRequest(t, user, http.MethodPost, "/users", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin, repo := newTestRouter(domain.RoleAdmin)
	rec = doRequest(t, admin, http.MethodPost, "/users", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.RoleAdmin, repo.users[resp.ID].Role)
}

func TestHandler_GetUnknownAndMalformedIDs(t *testing.T) {
	router, _ := newTestRouter("")

	for _, id := range []string{"missing", "507f1f77bcf86cd799439011"} {
		rec := doRequest(t, router, http.MethodGet, "/users/"+id, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "user not found")
	}
}

func TestHandler_List(t *testing.T) {
	router, repo := newTestRouter("")
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		createUser(t, router, email)
	}

	rec := doRequest(t, router, http.MethodGet, "/users?page=1&limit=2&sort=email&order=asc", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.UserPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, SortByEmail, repo.lastFilter.SortField)
	assert.Equal(t, SortAsc, repo.lastFilter.SortOrder)
}

func TestHandler_ListQuerySanitization(t *testing.T) {
	tests := []struct {
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"", 1, 10, 0},
		{"?page=3&limit=500", 3, 100, 200},
		{"?page=abc&limit=xyz", 1, 10, 0},
		{"?page=0&limit=0", 1, 1, 0},
		{"?page=-2&limit=-5", 1, 1, 0},
		{"?page=2.7&limit=5", 2, 5, 5},
		{"?page=&limit=", 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			router, repo := newTestRouter("")

			rec := doRequest(t, router, http.MethodGet, "/users"+tt.query, "")

			require.Equal(t, http.StatusOK, rec.Code)
			var page domain.UserPage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, tt.wantOffset, repo.lastFilter.Offset)
		})
	}
}

func TestHandler_Update(t *testing.T) {
	router, repo := newTestRouter("")
	id := createUser(t, router, "a@x.com")

	rec := doRequest(t, router, http.MethodPatch, "/users/"+id,
		`{"email":"NEW@x.com","profile":{"firstName":"Juan","phone":"351123456","birthDate":"1990-05-01"}}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail domain.UserDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "new@x.com", detail.Email)
	assert.Equal(t, "Juan", *detail.Profile.FirstName)
	assert.Equal(t, "B", *detail.Profile.LastName)
	assert.Equal(t, "351123456", *detail.Profile.Phone)
	require.NotNil(t, detail.Profile.BirthDate)

	rec = doRequest(t, router, http.MethodPatch, "/users/"+id, `{"profile":{"phone":null}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, repo.users[id].Profile.Phone)
}

func TestHandler_UpdateErrors(t *testing.T) {
	router, _ := newTestRouter("")
	id := createUser(t, router, "a@x.com")
	createUser(t, router, "taken@x.com")

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"empty body", "/users/" + id, `{}`, http.StatusBadRequest},
		{"unknown fields only", "/users/" + id, `{"nickname":"x"}`, http.StatusBadRequest},
		{"invalid email", "/users/" + id, `{"email":"nope"}`, http.StatusBadRequest},
		{"blank name", "/users/" + id, `{"profile":{"lastName":""}}`, http.StatusBadRequest},
		{"bad birth date", "/users/" + id, `{"profile":{"birthDate":"tomorrow"}}`, http.StatusBadRequest},
		{"duplicate email", "/users/" + id, `{"email":"taken@x.com"}`, http.StatusConflict},
		{"unknown id", "/users/missing", `{"email":"z@x.com"}`, http.StatusNotFound},
		{"admin grant without admin caller", "/users/" + id, `{"role":"ADMIN"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_Delete(t *testing.T) {
	router, _ := newTestRouter("")
	id := createUser(t, router, "a@x.com")

	rec := doRequest(t, router, http.MethodDelete, "/users/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/users/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/users/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The address is free again once its holder is soft-deleted.
	createUser(t, router, "a@x.com")
}
