package org

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lboeman/solarforecastarbiter-api/internal/platform/httpx"
)

// Handler exposes the framework-administrator surface. The router mounts these
// routes behind the admin token middleware; no evaluator check applies here.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers organization administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/organizations", func(r chi.Router) {
		r.Get("/", h.listOrganizations)
		r.Post("/", h.createOrganization)
		r.Post("/{orgID}/accept_tou", h.acceptTOU)
		r.Post("/{orgID}/members/{userID}", h.addMember)
		r.Post("/{orgID}/admins/{userID}", h.promoteAdmin)
	})
	r.Route("/members", func(r chi.Router) {
		r.Get("/", h.listMembers)
		r.Delete("/{userID}", h.deleteUser)
		r.Post("/{userID}/remove", h.removeMember)
	})
}

type createOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=32"`
}

type organizationResponse struct {
	ID          uuid.UUID `json:"organization_id"`
	Name        string    `json:"name"`
	AcceptedTOU bool      `json:"accepted_tou"`
	CreatedAt   time.Time `json:"created_at"`
}

type memberResponse struct {
	UserID           uuid.UUID `json:"user_id"`
	Auth0ID          string    `json:"auth0_id"`
	OrganizationID   uuid.UUID `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	CreatedAt        time.Time `json:"created_at"`
}

func (h *Handler) listOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.ListOrganizations(r.Context())
	if err != nil {
		h.logger.Error("list organizations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]organizationResponse, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, organizationResponse{ID: o.ID, Name: o.Name, AcceptedTOU: o.AcceptedTOU, CreatedAt: o.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	organization, err := h.service.CreateOrganization(r.Context(), req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, organizationResponse{
		ID:          organization.ID,
		Name:        organization.Name,
		AcceptedTOU: organization.AcceptedTOU,
		CreatedAt:   organization.CreatedAt,
	})
}

func (h *Handler) acceptTOU(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid organization id", httpx.ErrValidation))
		return
	}
	if err := h.service.SetAcceptedTOU(r.Context(), orgID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := h.orgUserParams(w, r)
	if !ok {
		return
	}
	if err := h.service.AddUserToOrg(r.Context(), userID, orgID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) promoteAdmin(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := h.orgUserParams(w, r)
	if !ok {
		return
	}
	if err := h.service.PromoteUserToOrgAdmin(r.Context(), userID, orgID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		h.logger.Error("list members", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID:           m.UserID,
			Auth0ID:          m.Auth0ID,
			OrganizationID:   m.OrganizationID,
			OrganizationName: m.OrganizationName,
			CreatedAt:        m.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid user id", httpx.ErrValidation))
		return
	}
	if err := h.service.RemoveUserFromOrg(r.Context(), userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid user id", httpx.ErrValidation))
		return
	}
	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) orgUserParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid organization id", httpx.ErrValidation))
		return uuid.Nil, uuid.Nil, false
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid user id", httpx.ErrValidation))
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, userID, true
}
