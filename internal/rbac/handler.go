package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lboeman/solarforecastarbiter-api/internal/platform/httpx"
	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

// Handler exposes role and permission management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers role and permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Get("/{roleID}", h.readRole)
		r.Delete("/{roleID}", h.deleteRole)
		r.Post("/{roleID}/permissions/{permissionID}", h.addPermissionToRole)
	})
	r.Route("/permissions", func(r chi.Router) {
		r.Get("/", h.listPermissions)
		r.Post("/", h.createPermission)
		r.Get("/{permissionID}", h.readPermission)
		r.Delete("/{permissionID}", h.deletePermission)
	})
	r.Route("/users/{userID}/roles", func(r chi.Router) {
		r.Post("/{roleID}", h.addRoleToUser)
		r.Delete("/{roleID}", h.removeRoleFromUser)
	})
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
}

type roleResponse struct {
	ID             uuid.UUID `json:"role_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	OrganizationID uuid.UUID `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	ModifiedAt     time.Time `json:"modified_at"`
}

type roleViewResponse struct {
	roleResponse
	Permissions []permissionResponse `json:"permissions"`
}

type createPermissionRequest struct {
	Description  string `json:"description" validate:"max=64"`
	Action       string `json:"action" validate:"required"`
	ObjectType   string `json:"object_type" validate:"required"`
	AppliesToAll bool   `json:"applies_to_all"`
}

type permissionResponse struct {
	ID             uuid.UUID `json:"permission_id"`
	Description    string    `json:"description"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Action         string    `json:"action"`
	ObjectType     string    `json:"object_type"`
	AppliesToAll   bool      `json:"applies_to_all"`
	CreatedAt      time.Time `json:"created_at"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:             role.ID,
		Name:           role.Name,
		Description:    role.Description,
		OrganizationID: role.OrganizationID,
		CreatedAt:      role.CreatedAt,
		ModifiedAt:     role.ModifiedAt,
	}
}

func toPermissionResponse(perm Permission) permissionResponse {
	return permissionResponse{
		ID:             perm.ID,
		Description:    perm.Description,
		OrganizationID: perm.OrganizationID,
		Action:         string(perm.Action),
		ObjectType:     string(perm.ObjectType),
		AppliesToAll:   perm.AppliesToAll,
		CreatedAt:      perm.CreatedAt,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context(), shared.SubjectFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	role, err := h.service.CreateRole(r.Context(), shared.SubjectFromContext(r.Context()), req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) readRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
		return
	}
	view, err := h.service.ReadRole(r.Context(), shared.SubjectFromContext(r.Context()), roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms := make([]permissionResponse, 0, len(view.Permissions))
	for _, perm := range view.Permissions {
		perms = append(perms, toPermissionResponse(perm))
	}
	httpx.JSON(w, http.StatusOK, roleViewResponse{roleResponse: toRoleResponse(view.Role), Permissions: perms})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
		return
	}
	if err := h.service.DeleteRole(r.Context(), shared.SubjectFromContext(r.Context()), roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context(), shared.SubjectFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, perm := range perms {
		out = append(out, toPermissionResponse(perm))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	action, err := ParseAction(req.Action)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	objectType, err := ParseObjectType(req.ObjectType)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), shared.SubjectFromContext(r.Context()), PermissionParams{
		Description:  req.Description,
		Action:       action,
		ObjectType:   objectType,
		AppliesToAll: req.AppliesToAll,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionResponse(perm))
}

func (h *Handler) readPermission(w http.ResponseWriter, r *http.Request) {
	permID, err := uuid.Parse(chi.URLParam(r, "permissionID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid permission id", httpx.ErrValidation))
		return
	}
	perm, err := h.service.ReadPermission(r.Context(), shared.SubjectFromContext(r.Context()), permID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	permID, err := uuid.Parse(chi.URLParam(r, "permissionID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid permission id", httpx.ErrValidation))
		return
	}
	if err := h.service.DeletePermission(r.Context(), shared.SubjectFromContext(r.Context()), permID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addPermissionToRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
		return
	}
	permID, err := uuid.Parse(chi.URLParam(r, "permissionID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid permission id", httpx.ErrValidation))
		return
	}
	if err := h.service.AddPermissionToRole(r.Context(), shared.SubjectFromContext(r.Context()), roleID, permID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addRoleToUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid user id", httpx.ErrValidation))
		return
	}
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
		return
	}
	if err := h.service.AddRoleToUser(r.Context(), shared.SubjectFromContext(r.Context()), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRoleFromUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid user id", httpx.ErrValidation))
		return
	}
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
		return
	}
	if err := h.service.RemoveRoleFromUser(r.Context(), shared.SubjectFromContext(r.Context()), roleID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
