package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/token"
)

func adminClaims() *token.Payload {
	return &token.Payload{UserID: "admin-1", Email: "root@example.com", Role: model.RoleAdmin}
}

func TestAdminHandler_Promote(t *testing.T) {
	svc := &mockAdminService{
		promoteFn: func(ctx context.Context, email string) (*model.User, error) {
			switch email {
			case "ada@example.com":
				return &model.User{ID: "u1", Email: email, Name: "Ada", Role: model.RoleAdmin}, nil
			case "root@example.com":
				return nil, model.NewValidationError("User is already an admin")
			}
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewAdminHandler(svc)

	w := httptest.NewRecorder()
	h.Promote(w, withClaims(jsonRequest(http.MethodPost, "/api/admin/promote", `{"email":"ada@example.com"}`), adminClaims()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "User promoted to admin successfully" {
		t.Errorf("message = %q", env.Message)
	}
	var data roleChangeResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.ID != "u1" || data.Role != model.RoleAdmin || data.Name == nil || *data.Name != "Ada" {
		t.Errorf("data = %+v", data)
	}

	w = httptest.NewRecorder()
	h.Promote(w, jsonRequest(http.MethodPost, "/api/admin/promote", `{"email":"root@example.com"}`))
	assertErrorEnvelope(t, w, http.StatusBadRequest, "VALIDATION_ERROR", "User is already an admin")

	w = httptest.NewRecorder()
	h.Promote(w, jsonRequest(http.MethodPost, "/api/admin/promote", `{"email":"nobody@example.com"}`))
	assertErrorEnvelope(t, w, http.StatusNotFound, "NOT_FOUND", "User not found")
}

func TestAdminHandler_Demote_PassesActorEmail(t *testing.T) {
	var gotActor, gotTarget string
	svc := &mockAdminService{
		demoteFn: func(ctx context.Context, actorEmail, email string) (*model.User, error) {
			gotActor, gotTarget = actorEmail, email
			if actorEmail == email {
				return nil, model.NewForbiddenError("You cannot demote yourself")
			}
			return &model.User{ID: "u2", Email: email, Role: model.RoleStudent}, nil
		},
	}
	h := NewAdminHandler(svc)

	w := httptest.NewRecorder()
	h.Demote(w, withClaims(jsonRequest(http.MethodPost, "/api/admin/demote", `{"email":"bob@example.com"}`), adminClaims()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotActor != "root@example.com" || gotTarget != "bob@example.com" {
		t.Errorf("Demote(%q, %q)", gotActor, gotTarget)
	}
	if env := decodeEnvelope(t, w); env.Message != "Admin demoted to student successfully" {
		t.Errorf("message = %q", env.Message)
	}

	w = httptest.NewRecorder()
	h.Demote(w, withClaims(jsonRequest(http.MethodPost, "/api/admin/demote", `{"email":"root@example.com"}`), adminClaims()))
	assertErrorEnvelope(t, w, http.StatusForbidden, "FORBIDDEN", "You cannot demote yourself")
}

func TestAdminHandler_Demote_NoClaims(t *testing.T) {
	w := httptest.NewRecorder()
	NewAdminHandler(&mockAdminService{}).Demote(w, jsonRequest(http.MethodPost, "/api/admin/demote", `{"email":"a@b.co"}`))
	assertErrorEnvelope(t, w, http.StatusUnauthorized, "UNAUTHORIZED", "")
}

func TestAdminHandler_List(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &mockAdminService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{
				{ID: "a1", Email: "one@example.com", Role: model.RoleAdmin, CreatedAt: created},
				{ID: "a2", Email: "two@example.com", Role: model.RoleAdmin, College: "MIT", CreatedAt: created},
			}, nil
		},
	}

	w := httptest.NewRecorder()
	NewAdminHandler(svc).List(w, httptest.NewRequest(http.MethodGet, "/api/admin/list", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Success bool             `json:"success"`
		Count   int              `json:"count"`
		Data    []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Count != 2 || len(body.Data) != 2 {
		t.Fatalf("body = %+v", body)
	}
	if body.Data[1]["college"] != "MIT" || body.Data[0]["createdAt"] != "2026-01-02T03:04:05Z" {
		t.Errorf("data = %v", body.Data)
	}
	if _, ok := body.Data[0]["isActive"]; ok {
		t.Error("admin list should not expose isActive")
	}
}

func TestAdminHandler_List_Empty(t *testing.T) {
	svc := &mockAdminService{
		listFn: func(ctx context.Context) ([]*model.User, error) { return nil, nil },
	}
	w := httptest.NewRecorder()
	NewAdminHandler(svc).List(w, httptest.NewRequest(http.MethodGet, "/api/admin/list", nil))

	if got := w.Body.String(); got != "{\"success\":true,\"data\":[],\"count\":0}\n" {
		t.Errorf("body = %s", got)
	}
}
