package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/require"

	"github.com/janus-id/janus/internal/cache"
	"github.com/janus-id/janus/internal/http/controllers/health"
	svc "github.com/janus-id/janus/internal/http/services/auth"
	"github.com/janus-id/janus/internal/magiclink"
	"github.com/janus-id/janus/internal/security/password"
	"github.com/janus-id/janus/internal/store/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.New()
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          "id.test",
		RPDisplayName: "Janus Test",
		RPOrigins:     []string{"https://id.test"},
	})
	require.NoError(t, err)

	services := svc.NewServices(svc.Deps{
		Accounts: store.Accounts(),
		Passkeys: store.Passkeys(),
		MFA:      store.MFA(),
		Sessions: store.Sessions(),

		Cache:    cache.NewMemory(cache.Config{DefaultTTL: time.Minute}),
		Email:    nil,
		Signer:   magiclink.NewSigner([]byte("test-key"), "https://id.test", 15*time.Minute),
		WebAuthn: wa,

		PasswordParams: password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32},
		Session: svc.SessionPolicy{
			CookieName:  "janus_session",
			SameSite:    "Lax",
			TTL:         24 * time.Hour,
			RememberTTL: 720 * time.Hour,
			RememberKey: []byte("test-remember-key"),
			StepUpTTL:   3 * time.Hour,
		},
		MFAPolicy: svc.MFAPolicy{
			Issuer:              "Janus",
			Window:              1,
			RequireConfirmation: true,
			RecoveryCodes:       8,
			ChallengeTTL:        5 * time.Minute,
		},
		Passkey:   svc.PasskeyPolicy{CeremonyTTL: 5 * time.Minute},
		MagicLink: svc.MagicLinkPolicy{TTL: 15 * time.Minute, SingleUse: true, AppName: "Janus"},
	})

	handler := New(Deps{
		Services:  services,
		Health:    map[string]health.Pinger{"db": store},
		StepUpTTL: 3 * time.Hour,
	})

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func TestHealthAndNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/no-such-route")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Code)
}

func TestAuthenticatedSurfaceRequiresSession(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/user/me", "/user/browser-sessions", "/user/passkeys"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestRegisterLoginAndSessionPanel(t *testing.T) {
	ts := newTestServer(t)

	jar := newCookieClient(t)

	// Registro abre sesión.
	resp := postJSON(t, jar, ts.URL+"/register", map[string]any{
		"name":     "Ana",
		"email":    "ana@example.com",
		"password": "correct horse battery",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// La cookie autentica el panel.
	me, err := jar.Get(ts.URL + "/user/me")
	require.NoError(t, err)
	defer me.Body.Close()
	require.Equal(t, http.StatusOK, me.StatusCode)

	var acc struct {
		Email       string `json:"email"`
		HasPassword bool   `json:"has_password"`
	}
	require.NoError(t, json.NewDecoder(me.Body).Decode(&acc))
	require.Equal(t, "ana@example.com", acc.Email)
	require.True(t, acc.HasPassword)

	sessions, err := jar.Get(ts.URL + "/user/browser-sessions")
	require.NoError(t, err)
	defer sessions.Body.Close()
	require.Equal(t, http.StatusOK, sessions.StatusCode)

	var list []struct {
		IsCurrentDevice bool `json:"is_current_device"`
	}
	require.NoError(t, json.NewDecoder(sessions.Body).Decode(&list))
	require.Len(t, list, 1)
	require.True(t, list[0].IsCurrentDevice)
}

func TestStepUpGateOnOtherBrowserSessions(t *testing.T) {
	ts := newTestServer(t)
	jar := newCookieClient(t)

	resp := postJSON(t, jar, ts.URL+"/register", map[string]any{
		"email":    "ana@example.com",
		"password": "correct horse battery",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Registro recién confirmó el password: el gate deja pasar.
	body, _ := json.Marshal(map[string]string{"password": "correct horse battery"})
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/user/other-browser-sessions", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	del, err := jar.Do(req)
	require.NoError(t, err)
	defer del.Body.Close()
	require.Equal(t, http.StatusOK, del.StatusCode)
}

func TestUpdateProfileInformation(t *testing.T) {
	ts := newTestServer(t)
	jar := newCookieClient(t)

	resp := postJSON(t, jar, ts.URL+"/register", map[string]any{
		"name":     "Ana",
		"email":    "ana@example.com",
		"password": "correct horse battery",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, _ := json.Marshal(map[string]string{"name": "Ana María", "email": "ana.maria@example.com"})
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/user/profile-information", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	put, err := jar.Do(req)
	require.NoError(t, err)
	defer put.Body.Close()
	require.Equal(t, http.StatusOK, put.StatusCode)

	var acc struct {
		Name          string `json:"name"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	require.NoError(t, json.NewDecoder(put.Body).Decode(&acc))
	require.Equal(t, "Ana María", acc.Name)
	require.Equal(t, "ana.maria@example.com", acc.Email)
	require.False(t, acc.EmailVerified)
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	jar := newCookieClient(t)

	resp := postJSON(t, jar, ts.URL+"/register", map[string]any{
		"email":    "ana@example.com",
		"password": "correct horse battery",
	})
	resp.Body.Close()

	bad := postJSON(t, http.DefaultClient, ts.URL+"/login", map[string]any{
		"email":    "ana@example.com",
		"password": "wrong",
	})
	defer bad.Body.Close()
	require.Equal(t, http.StatusUnauthorized, bad.StatusCode)
}

func newCookieClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}
