package invites

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

// Handler exposes the invitation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers invitation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invites", func(r chi.Router) {
		r.Get("/", h.listInvites)
		r.Post("/", h.createInvite)
		r.Post("/{inviteID}/accept", h.acceptInvite)
		r.Post("/{inviteID}/decline", h.declineInvite)
	})
}

type createInviteRequest struct {
	Invitee string `json:"invitee" validate:"required,max=128"`
}

type inviteResponse struct {
	ID               uuid.UUID `json:"invite_id"`
	Inviter          string    `json:"inviter"`
	OrganizationID   uuid.UUID `json:"organization_id"`
	OrganizationName string    `json:"organization_name,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (h *Handler) listInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.service.ListUserInvites(r.Context(), shared.SubjectFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list invites", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]inviteResponse, 0, len(invites))
	for _, iv := range invites {
		out = append(out, inviteResponse{
			ID:               iv.ID,
			Inviter:          iv.InviterAuth0ID,
			OrganizationID:   iv.OrganizationID,
			OrganizationName: iv.OrganizationName,
			CreatedAt:        iv.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createInvite(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	invite, err := h.service.CreateInvite(r.Context(), shared.SubjectFromContext(r.Context()), req.Invitee)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inviteResponse{
		ID:             invite.ID,
		Inviter:        invite.InviterAuth0ID,
		OrganizationID: invite.OrganizationID,
		CreatedAt:      invite.CreatedAt,
	})
}

func (h *Handler) acceptInvite(w http.ResponseWriter, r *http.Request) {
	inviteID, err := uuid.Parse(chi.URLParam(r, "inviteID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid invite id", httpx.ErrValidation))
		return
	}
	if err := h.service.AcceptInvite(r.Context(), shared.SubjectFromContext(r.Context()), inviteID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) declineInvite(w http.ResponseWriter, r *http.Request) {
	inviteID, err := uuid.Parse(chi.URLParam(r, "inviteID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid invite id", httpx.ErrValidation))
		return
	}
	if err := h.service.DeclineInvite(r.Context(), shared.SubjectFromContext(r.Context()), inviteID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
