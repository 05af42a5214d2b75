package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr         string `yaml:"addr"`
		BaseURL      string `yaml:"base_url"` // URL pública, usada para armar links firmados
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`

	Storage struct {
		// "postgres" | "memory" (memory sólo para dev/tests)
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns int `yaml:"max_open_conns"`
			MaxIdleConns int `yaml:"max_idle_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // "memory" | "redis"
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Session struct {
		CookieName  string `yaml:"cookie_name"`
		Domain      string `yaml:"domain"`
		SameSite    string `yaml:"samesite"`
		Secure      bool   `yaml:"secure"`
		TTL         string `yaml:"ttl"`
		RememberTTL string `yaml:"remember_ttl"`
		// Clave HMAC para el cookie remember-me (JWT HS256). Override por env
		// JANUS_REMEMBER_KEY.
		RememberKey string `yaml:"remember_key"`
	} `yaml:"session"`

	MagicLink struct {
		TTL string `yaml:"ttl"`
		// Clave HMAC de firma. Override por env JANUS_MAGIC_LINK_KEY.
		SigningKey string `yaml:"signing_key"`
		// Si true, cada link se consume una sola vez (registro en cache).
		SingleUse *bool `yaml:"single_use"`
	} `yaml:"magic_link"`

	Passkey struct {
		RPID            string   `yaml:"rp_id"`
		RPDisplayName   string   `yaml:"rp_display_name"`
		RPOrigins       []string `yaml:"rp_origins"`
		CeremonyTTL     string   `yaml:"ceremony_ttl"`
		AllowDuplicates bool     `yaml:"allow_duplicates"`
	} `yaml:"passkey"`

	MFA struct {
		Issuer string `yaml:"issuer"`
		// Tolerancia en pasos de 30s (0..3)
		Window int `yaml:"window"`
		// Si false, enable() activa el TOTP sin round-trip de confirmación.
		RequireConfirmation *bool `yaml:"require_confirmation"`
		RecoveryCodes       int   `yaml:"recovery_codes"`
	} `yaml:"mfa"`

	StepUp struct {
		// Ventana de validez de una confirmación de password.
		TTL string `yaml:"ttl"`
	} `yaml:"step_up"`

	Rate struct {
		Enabled bool `yaml:"enabled"`

		Login struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`

		// Cap por email para el envío de magic links
		MagicLinkEmail struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"magic_link_email"`

		// Cap grueso por IP sobre la ruta de envío
		MagicLinkRoute struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"magic_link_route"`

		Challenge struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"challenge"`
	} `yaml:"rate"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"` // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`

	Email struct {
		DebugEchoLinks bool `yaml:"debug_echo_links"`
	} `yaml:"email"`
}

// Load lee el YAML, aplica defaults y overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "janus_session"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "24h"
	}
	if c.Session.RememberTTL == "" {
		c.Session.RememberTTL = "720h" // 30d
	}
	if c.MagicLink.TTL == "" {
		c.MagicLink.TTL = "15m"
	}
	if c.MagicLink.SingleUse == nil {
		v := true
		c.MagicLink.SingleUse = &v
	}
	if c.Passkey.RPID == "" {
		c.Passkey.RPID = "localhost"
	}
	if c.Passkey.RPDisplayName == "" {
		c.Passkey.RPDisplayName = "Janus"
	}
	if len(c.Passkey.RPOrigins) == 0 {
		c.Passkey.RPOrigins = []string{"http://localhost:8080"}
	}
	if c.Passkey.CeremonyTTL == "" {
		c.Passkey.CeremonyTTL = "5m"
	}
	if c.MFA.Issuer == "" {
		c.MFA.Issuer = "Janus"
	}
	if c.MFA.Window <= 0 || c.MFA.Window > 3 {
		c.MFA.Window = 1
	}
	if c.MFA.RequireConfirmation == nil {
		v := true
		c.MFA.RequireConfirmation = &v
	}
	if c.MFA.RecoveryCodes <= 0 {
		c.MFA.RecoveryCodes = 8
	}
	if c.StepUp.TTL == "" {
		c.StepUp.TTL = "3h"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Rate.MagicLinkEmail.Limit == 0 {
		c.Rate.MagicLinkEmail.Limit = 3
	}
	if c.Rate.MagicLinkEmail.Window == "" {
		c.Rate.MagicLinkEmail.Window = "5m"
	}
	if c.Rate.MagicLinkRoute.Limit == 0 {
		c.Rate.MagicLinkRoute.Limit = 5
	}
	if c.Rate.MagicLinkRoute.Window == "" {
		c.Rate.MagicLinkRoute.Window = "1m"
	}
	if c.Rate.Challenge.Limit == 0 {
		c.Rate.Challenge.Limit = 10
	}
	if c.Rate.Challenge.Window == "" {
		c.Rate.Challenge.Window = "1m"
	}

	applyEnvOverrides(&c)
	return &c, nil
}

// applyEnvOverrides pisa valores con variables de entorno.
// Secretos SIEMPRE pueden venir por env (deploys sin YAML en claro).
func applyEnvOverrides(c *Config) {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("JANUS_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("JANUS_BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := getEnvStr("JANUS_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("JANUS_CACHE"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("JANUS_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("JANUS_MAGIC_LINK_KEY"); ok {
		c.MagicLink.SigningKey = v
	}
	if v, ok := getEnvStr("JANUS_REMEMBER_KEY"); ok {
		c.Session.RememberKey = v
	}
	if v, ok := getEnvStr("JANUS_SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvStr("JANUS_SMTP_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = n
		}
	}
	if v, ok := getEnvStr("JANUS_SMTP_USER"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("JANUS_SMTP_PASS"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("JANUS_SMTP_FROM"); ok {
		c.SMTP.From = v
	}
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// MustDuration parsea una duración de config. Panic sólo en valores de YAML
// inválidos (error de operación, no de runtime).
func MustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: invalid duration %q: %v", s, err))
	}
	return d
}

// Duration parsea con fallback.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
