package email

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/buildwise/backend/internal/model"
)

func newTestTemplates(t *testing.T) *Templates {
	t.Helper()
	tpl, err := NewTemplates()
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}
	tpl.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }
	return tpl
}

func TestTemplates_RenderEveryEvent(t *testing.T) {
	tpl := newTestTemplates(t)

	for _, event := range model.EmailEventTypes {
		t.Run(string(event), func(t *testing.T) {
			r, err := tpl.Render(event, SampleData(event))
			if err != nil {
				t.Fatalf("Render returned error: %v", err)
			}
			if r.Subject == "" {
				t.Error("empty subject")
			}
			if !strings.Contains(r.HTML, "<!DOCTYPE html>") || !strings.Contains(r.HTML, "&copy; 2026 BuildWise") {
				t.Error("HTML should be wrapped in the shared layout")
			}
			if !strings.Contains(r.HTML, "Hi Sample User,") || !strings.Contains(r.Text, "Hi Sample User,") {
				t.Error("greeting should use the name")
			}
		})
	}
}

func TestTemplates_NameDefaultsToThere(t *testing.T) {
	tpl := newTestTemplates(t)

	r, err := tpl.Render(model.EmailEventUserSignup, TemplateData{})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(r.HTML, "Hi there,") || !strings.Contains(r.Text, "Hi there,") {
		t.Errorf("expected default greeting, got text %q", r.Text)
	}
}

func TestTemplates_ExpiryDefaults(t *testing.T) {
	tpl := newTestTemplates(t)

	r, _ := tpl.Render(model.EmailEventEmailVerification, TemplateData{VerificationLink: "https://x/v"})
	if !strings.Contains(r.Text, "expire in 24 hours") {
		t.Errorf("verification text = %q", r.Text)
	}
	r, _ = tpl.Render(model.EmailEventPasswordReset, TemplateData{ResetLink: "https://x/r", ExpiresIn: "30 minutes"})
	if !strings.Contains(r.Text, "expire in 30 minutes") {
		t.Errorf("reset text = %q", r.Text)
	}
	if !strings.Contains(r.HTML, `href="https://x/r"`) {
		t.Error("reset link missing from HTML")
	}
}

func TestTemplates_EscapesUserInput(t *testing.T) {
	tpl := newTestTemplates(t)

	r, err := tpl.Render(model.EmailEventUserSignup, TemplateData{Name: "<script>alert(1)</script>"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.Contains(r.HTML, "<script>") {
		t.Error("name must be escaped in HTML")
	}

	r, _ = tpl.Render(model.EmailEventPasswordReset, TemplateData{ResetLink: "javascript:alert(1)"})
	if strings.Contains(r.HTML, `href="javascript:`) {
		t.Error("unsafe link must not be emitted")
	}
}

func TestTemplates_UnknownEvent(t *testing.T) {
	tpl := newTestTemplates(t)

	_, err := tpl.Render("ORDER_CREATED", TemplateData{})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != model.KindValidation {
		t.Fatalf("error = %v, want validation error", err)
	}
}
