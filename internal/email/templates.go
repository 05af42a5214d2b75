package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// MagicLinkVars son las variables del template de enlace mágico.
type MagicLinkVars struct {
	AppName string
	Link    string
	TTL     string // legible, ej "15 minutes"
}

var magicLinkHTML = htmltemplate.Must(htmltemplate.New("magic_link_html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 560px; margin: 0 auto;">
  <h2>Sign in to {{.AppName}}</h2>
  <p>Click the button below to sign in. No password needed.</p>
  <p style="margin: 24px 0;">
    <a href="{{.Link}}" style="background: #1a1a2e; color: #fff; padding: 12px 24px; border-radius: 6px; text-decoration: none;">Sign in</a>
  </p>
  <p>This link expires in {{.TTL}} and can only be used once.</p>
  <p style="color: #888; font-size: 13px;">If you did not request this email, you can safely ignore it.</p>
</body>
</html>`))

// El cuerpo de texto usa text/template: html/template escaparía el '&' de los
// query params del link ("&amp;hash=") y la URL dejaría de verificar.
var magicLinkText = texttemplate.Must(texttemplate.New("magic_link_text").Parse(`Sign in to {{.AppName}}

Open this link to sign in (no password needed):

{{.Link}}

This link expires in {{.TTL}} and can only be used once.
If you did not request this email, you can safely ignore it.
`))

// RenderMagicLink renderiza el email de enlace mágico (html y texto).
func RenderMagicLink(vars MagicLinkVars) (htmlBody, textBody string, err error) {
	var h, t bytes.Buffer
	if err := magicLinkHTML.Execute(&h, vars); err != nil {
		return "", "", fmt.Errorf("render magic link html: %w", err)
	}
	if err := magicLinkText.Execute(&t, vars); err != nil {
		return "", "", fmt.Errorf("render magic link text: %w", err)
	}
	return h.String(), t.String(), nil
}

// MagicLinkSubject es el asunto del email de enlace mágico.
func MagicLinkSubject(appName string) string {
	return fmt.Sprintf("Your sign-in link for %s", appName)
}
