package email

import (
	"strings"
	"testing"
)

func TestRenderMagicLink(t *testing.T) {
	t.Parallel()

	htmlBody, textBody, err := RenderMagicLink(MagicLinkVars{
		AppName: "Janus",
		Link:    "https://id.example.com/magic-link/login/abc?expires=1&hash=h&signature=s",
		TTL:     "15 minutes",
	})
	if err != nil {
		t.Fatalf("RenderMagicLink err: %v", err)
	}
	for _, body := range []string{htmlBody, textBody} {
		if !strings.Contains(body, "signature=s") {
			t.Fatalf("body missing link: %s", body)
		}
		if !strings.Contains(body, "15 minutes") {
			t.Fatalf("body missing TTL: %s", body)
		}
	}
	if !strings.Contains(htmlBody, `href="https://`) {
		t.Fatal("html body should carry the link as href")
	}
	// El cuerpo de texto debe llevar la URL literal: un '&amp;' rompería los
	// query params al pegar el link en el navegador.
	if !strings.Contains(textBody, "expires=1&hash=h&signature=s") {
		t.Fatalf("text body must keep the raw query string: %s", textBody)
	}
	if strings.Contains(textBody, "&amp;") {
		t.Fatalf("text body must not be html-escaped: %s", textBody)
	}
}

func TestRenderMagicLink_EscapesHTML(t *testing.T) {
	t.Parallel()

	htmlBody, _, err := RenderMagicLink(MagicLinkVars{
		AppName: `<script>alert(1)</script>`,
		Link:    "https://id.example.com/x",
		TTL:     "15 minutes",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(htmlBody, "<script>") {
		t.Fatal("app name must be escaped in html body")
	}
}
