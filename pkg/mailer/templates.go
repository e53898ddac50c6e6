package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// CredentialData fills the account credential template.
type CredentialData struct {
	FullName    string
	Email       string
	Role        string
	Identifier  string
	Password    string
	LoginURL    string
	Institution string
}

const credentialSubject = "Your %s attendance portal account"

const credentialText = `Dear {{.FullName}},

An account has been created for you on the {{.Institution}} attendance portal.

Role:     {{.Role}}
{{- if .Identifier}}
ID:       {{.Identifier}}{{end}}
Email:    {{.Email}}
Password: {{.Password}}

Sign in at {{.LoginURL}} and change your password after the first login.
`

const credentialHTML = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<p>Dear {{.FullName}},</p>
<p>An account has been created for you on the <strong>{{.Institution}}</strong> attendance portal.</p>
<table cellpadding="6" style="border-collapse:collapse;border:1px solid #ccc">
<tr><td><b>Role</b></td><td>{{.Role}}</td></tr>
{{- if .Identifier}}
<tr><td><b>ID</b></td><td>{{.Identifier}}</td></tr>{{end}}
<tr><td><b>Email</b></td><td>{{.Email}}</td></tr>
<tr><td><b>Password</b></td><td><code>{{.Password}}</code></td></tr>
</table>
<p><a href="{{.LoginURL}}">Sign in</a> and change your password after the first login.</p>
</body></html>
`

var (
	credentialTextTmpl = texttemplate.Must(texttemplate.New("credential_text").Parse(credentialText))
	credentialHTMLTmpl = htmltemplate.Must(htmltemplate.New("credential_html").Parse(credentialHTML))
)

// CredentialMessage renders the credential notification for one account.
func CredentialMessage(data CredentialData) (Message, error) {
	var text, html bytes.Buffer
	if err := credentialTextTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render credential text: %w", err)
	}
	if err := credentialHTMLTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render credential html: %w", err)
	}
	return Message{
		To:       data.Email,
		ToName:   data.FullName,
		Subject:  fmt.Sprintf(credentialSubject, data.Institution),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}
