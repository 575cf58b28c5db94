// Package email renders, queues and delivers the transactional emails of the service.
package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/buildwise/backend/internal/model"
)

// TemplateData is the input of every template. It is stored as the notification
// metadata so a failed message can be re-rendered on retry.
type TemplateData struct {
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	VerificationLink string `json:"verificationLink,omitempty"`
	ResetLink        string `json:"resetLink,omitempty"`
	ExpiresIn        string `json:"expiresIn,omitempty"`
}

// Rendered is a fully rendered message.
type Rendered struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

type templateView struct {
	Name             string
	Email            string
	VerificationLink string
	ResetLink        string
	ExpiresIn        string
	Year             int
}

type eventTemplate struct {
	subject          string
	defaultExpiresIn string
	html             *htmltemplate.Template
	text             *texttemplate.Template
}

// Templates holds the parsed templates of every event type.
type Templates struct {
	events map[model.EmailEventType]*eventTemplate
	now    func() time.Time
}

// NewTemplates parses the built-in templates.
func NewTemplates() (*Templates, error) {
	layout, err := htmltemplate.New("layout").Parse(layoutHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email layout: %w", err)
	}

	sources := []struct {
		event            model.EmailEventType
		subject          string
		defaultExpiresIn string
		html             string
		text             string
	}{
		{model.EmailEventUserSignup, "Welcome to BuildWise - Let's Start Building!", "", signupHTML, signupText},
		{model.EmailEventEmailVerification, "Verify Your BuildWise Email Address", "24 hours", verificationHTML, verificationText},
		{model.EmailEventPasswordReset, "Reset Your BuildWise Password", "1 hour", resetHTML, resetText},
	}

	t := &Templates{
		events: make(map[model.EmailEventType]*eventTemplate, len(sources)),
		now:    time.Now,
	}
	for _, src := range sources {
		h, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone email layout: %w", err)
		}
		if _, err := h.Parse(src.html); err != nil {
			return nil, fmt.Errorf("failed to parse %s html template: %w", src.event, err)
		}
		txt, err := texttemplate.New(string(src.event)).Parse(src.text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s text template: %w", src.event, err)
		}
		t.events[src.event] = &eventTemplate{
			subject:          src.subject,
			defaultExpiresIn: src.defaultExpiresIn,
			html:             h,
			text:             txt,
		}
	}
	return t, nil
}

// Render renders the subject, HTML and plain text bodies of event.
// An empty name renders as "there".
func (t *Templates) Render(event model.EmailEventType, data TemplateData) (*Rendered, error) {
	et, ok := t.events[event]
	if !ok {
		return nil, model.NewValidationError("Invalid email event type")
	}

	view := templateView{
		Name:             data.Name,
		Email:            data.Email,
		VerificationLink: data.VerificationLink,
		ResetLink:        data.ResetLink,
		ExpiresIn:        data.ExpiresIn,
		Year:             t.now().Year(),
	}
	if view.Name == "" {
		view.Name = "there"
	}
	if view.ExpiresIn == "" {
		view.ExpiresIn = et.defaultExpiresIn
	}

	var html, text bytes.Buffer
	if err := et.html.ExecuteTemplate(&html, "layout", view); err != nil {
		return nil, fmt.Errorf("failed to render %s html: %w", event, err)
	}
	if err := et.text.Execute(&text, view); err != nil {
		return nil, fmt.Errorf("failed to render %s text: %w", event, err)
	}

	return &Rendered{
		Subject: et.subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// SampleData returns placeholder data used by previews and test sends.
func SampleData(event model.EmailEventType) TemplateData {
	data := TemplateData{Name: "Sample User", Email: "sample@example.com"}
	switch event {
	case model.EmailEventEmailVerification:
		data.VerificationLink = "https://buildwise.com/verify?token=sample"
	case model.EmailEventPasswordReset:
		data.ResetLink = "https://buildwise.com/reset-password?token=sample"
	}
	return data
}

const layoutHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>BuildWise</title>
  <style>
    body { margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f4f4f7; color: #333333; }
    .email-container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px 20px; text-align: center; }
    .logo { font-size: 32px; font-weight: bold; color: #ffffff; text-decoration: none; }
    .content { padding: 40px 30px; line-height: 1.6; }
    .content h1 { color: #667eea; font-size: 24px; margin-top: 0; }
    .button { display: inline-block; padding: 12px 30px; background: #667eea; color: #ffffff !important; text-decoration: none; border-radius: 5px; margin: 20px 0; font-weight: 600; }
    .info-box { background-color: #f8f9fa; border-left: 4px solid #667eea; padding: 15px 20px; margin: 20px 0; }
    .footer { background-color: #f4f4f7; padding: 30px 20px; text-align: center; color: #999999; font-size: 14px; }
    .footer a { color: #667eea; text-decoration: none; }
  </style>
</head>
<body>
  <div class="email-container">
    <div class="header">
      <a href="https://buildwise.com" class="logo">BuildWise</a>
    </div>
    <div class="content">
      {{template "content" .}}
    </div>
    <div class="footer">
      <p><strong>BuildWise</strong> - Empowering Engineering Students</p>
      <p>This email was sent to you because you have an account with BuildWise.<br>
      If you have any questions, contact us at <a href="mailto:support@buildwise.com">support@buildwise.com</a></p>
      <p>&copy; {{.Year}} BuildWise. All rights reserved.</p>
    </div>
  </div>
</body>
</html>`

const signupHTML = `{{define "content"}}
<h1>Welcome to BuildWise!</h1>
<p>Hi {{.Name}},</p>
<p>We're excited to have you on board! BuildWise is your gateway to mastering hardware projects and bringing your ideas to life.</p>
<div class="info-box">
  <h2>What's Next?</h2>
  <ul>
    <li><strong>Explore Projects:</strong> Browse our library of hardware projects</li>
    <li><strong>AI Project Generator:</strong> Get project ideas tailored to your skills</li>
    <li><strong>Shop Components:</strong> Find the parts you need in our component store</li>
    <li><strong>Get Mentorship:</strong> Book sessions with experienced mentors</li>
  </ul>
</div>
<p style="text-align: center;"><a href="https://buildwise.com/dashboard" class="button">Go to Dashboard</a></p>
<p>Happy Building!<br>The BuildWise Team</p>
{{end}}`

const signupText = `Welcome to BuildWise!

Hi {{.Name}},

We're excited to have you on board! BuildWise is your gateway to mastering hardware projects and bringing your ideas to life.

What's Next?
- Explore Projects: Browse our library of hardware projects
- AI Project Generator: Get project ideas tailored to your skills
- Shop Components: Find the parts you need in our component store
- Get Mentorship: Book sessions with experienced mentors

Go to Dashboard: https://buildwise.com/dashboard

Happy Building!
The BuildWise Team`

const verificationHTML = `{{define "content"}}
<h1>Verify Your Email Address</h1>
<p>Hi {{.Name}},</p>
<p>Thanks for signing up! To complete your registration, please verify your email address by clicking the button below.</p>
<p style="text-align: center;"><a href="{{.VerificationLink}}" class="button">Verify Email Address</a></p>
<div class="info-box">
  <p><strong>This link will expire in {{.ExpiresIn}}.</strong></p>
  <p>If you didn't create an account with BuildWise, you can safely ignore this email.</p>
</div>
<p>If the button doesn't work, copy and paste this link into your browser:</p>
<p style="word-break: break-all; color: #667eea;">{{.VerificationLink}}</p>
<p>Best regards,<br>The BuildWise Team</p>
{{end}}`

const verificationText = `Verify Your Email Address

Hi {{.Name}},

Thanks for signing up! To complete your registration, please verify your email address.

Verification Link: {{.VerificationLink}}

This link will expire in {{.ExpiresIn}}.

If you didn't create an account with BuildWise, you can safely ignore this email.

Best regards,
The BuildWise Team`

const resetHTML = `{{define "content"}}
<h1>Reset Your Password</h1>
<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. Click the button below to create a new password:</p>
<p style="text-align: center;"><a href="{{.ResetLink}}" class="button">Reset Password</a></p>
<div class="info-box">
  <p><strong>This link will expire in {{.ExpiresIn}}.</strong></p>
  <p>If you didn't request a password reset, please ignore this email. Your password will remain unchanged.</p>
</div>
<p>For security reasons, never share your password or this reset link with anyone.</p>
<p>Best regards,<br>The BuildWise Team</p>
{{end}}`

const resetText = `Reset Your Password

Hi {{.Name}},

We received a request to reset your password. Use the link below to create a new password:

Reset Link: {{.ResetLink}}

This link will expire in {{.ExpiresIn}}.

If you didn't request a password reset, please ignore this email. Your password will remain unchanged.

For security reasons, never share your password or this reset link with anyone.

Best regards,
The BuildWise Team`
