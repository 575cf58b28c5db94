package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/buildwise/backend/internal/middleware"
	"github.com/buildwise/backend/internal/model"
)

// AdminService manages roles.
type AdminService interface {
	Promote(ctx context.Context, email string) (*model.User, error)
	Demote(ctx context.Context, actorEmail, email string) (*model.User, error)
	ListAdmins(ctx context.Context) ([]*model.User, error)
}

// AdminHandler serves /api/admin.
type AdminHandler struct {
	service AdminService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(service AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

type roleChangeRequest struct {
	Email string `json:"email"`
}

type roleChangeResponse struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Name  *string    `json:"name"`
	Role  model.Role `json:"role"`
}

type adminResponse struct {
	model.PublicUser
	CreatedAt time.Time `json:"createdAt"`
}

type adminListResponse struct {
	Success bool            `json:"success"`
	Data    []adminResponse `json:"data"`
	Count   int             `json:"count"`
}

// Promote handles POST /api/admin/promote.
func (h *AdminHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req roleChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	user, err := h.service.Promote(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "User promoted to admin successfully", toRoleChangeResponse(user))
}

// Demote handles POST /api/admin/demote.
func (h *AdminHandler) Demote(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		handleServiceError(w, r, model.NewUnauthorizedError("User not authenticated"))
		return
	}

	var req roleChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	user, err := h.service.Demote(r.Context(), claims.Email, req.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Admin demoted to student successfully", toRoleChangeResponse(user))
}

// List handles GET /api/admin/list.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	admins, err := h.service.ListAdmins(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	data := make([]adminResponse, 0, len(admins))
	for _, a := range admins {
		data = append(data, adminResponse{PublicUser: a.Public(), CreatedAt: a.CreatedAt})
	}
	writeJSON(w, http.StatusOK, adminListResponse{Success: true, Data: data, Count: len(data)})
}

func toRoleChangeResponse(u *model.User) roleChangeResponse {
	pub := u.Public()
	return roleChangeResponse{
		ID:    pub.ID,
		Email: pub.Email,
		Name:  pub.Name,
		Role:  pub.Role,
	}
}
