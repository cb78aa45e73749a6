package identity

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lboeman/solarforecastarbiter-api/internal/platform/httpx"
	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

// Handler exposes the current-user endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers identity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users/current", h.currentUser)
}

type roleGrantResponse struct {
	RoleID    uuid.UUID `json:"role_id"`
	RoleName  string    `json:"role_name"`
	GrantedAt time.Time `json:"granted_at"`
}

type userInfoResponse struct {
	UserID           uuid.UUID           `json:"user_id"`
	OrganizationID   uuid.UUID           `json:"organization_id"`
	OrganizationName string              `json:"organization_name"`
	CreatedAt        time.Time           `json:"created_at"`
	Roles            []roleGrantResponse `json:"roles"`
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetCurrentUserInfo(r.Context(), shared.SubjectFromContext(r.Context()))
	if err != nil {
		h.logger.Error("current user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	roles := make([]roleGrantResponse, 0, len(info.Roles))
	for _, g := range info.Roles {
		roles = append(roles, roleGrantResponse{RoleID: g.RoleID, RoleName: g.RoleName, GrantedAt: g.GrantedAt})
	}
	httpx.JSON(w, http.StatusOK, userInfoResponse{
		UserID:           info.UserID,
		OrganizationID:   info.OrganizationID,
		OrganizationName: info.OrganizationName,
		CreatedAt:        info.CreatedAt,
		Roles:            roles,
	})
}
