package rbac

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

func newTestRouter(t *testing.T, repo *memoryRBACRepo) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, newTestService(repo), validator.New())
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return router
}

func postJSON(t *testing.T, router chi.Router, subject, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req = req.WithContext(shared.ContextWithSubject(req.Context(), subject))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreatePermissionDescriptionBound(t *testing.T) {
	repo := newMemoryRBACRepo()
	orgID := uuid.New()
	userID := repo.addUser("auth0|alice", orgID)
	repo.grantPermission(userID, orgID, ActionCreate, ObjectPermissions)
	router := newTestRouter(t, repo)

	post := func(description string) *httptest.ResponseRecorder {
		return postJSON(t, router, "auth0|alice", "/permissions", map[string]any{
			"description":    description,
			"action":         "read",
			"object_type":    "forecasts",
			"applies_to_all": true,
		})
	}

	rec := post(strings.Repeat("d", 65))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(strings.Repeat("d", 64))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created permissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, orgID, created.OrganizationID)
	require.Len(t, created.Description, 64)
}

func TestCreateRoleDescriptionBound(t *testing.T) {
	repo := newMemoryRBACRepo()
	orgID := uuid.New()
	userID := repo.addUser("auth0|alice", orgID)
	repo.grantPermission(userID, orgID, ActionCreate, ObjectRoles)
	router := newTestRouter(t, repo)

	// Role descriptions allow up to 255 characters, unlike permissions.
	rec := postJSON(t, router, "auth0|alice", "/roles", map[string]any{
		"name":        "Analysts",
		"description": strings.Repeat("d", 255),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, router, "auth0|alice", "/roles", map[string]any{
		"name":        "Analysts Two",
		"description": strings.Repeat("d", 256),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
