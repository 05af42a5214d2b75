// Package agent hace una clasificación mínima del User-Agent para el listado
// de sesiones de navegador: plataforma, navegador y si es desktop. No pretende
// ser un parser completo, sólo lo que el panel de sesiones necesita mostrar.
package agent

import "strings"

// Info es el desglose que se muestra junto a cada sesión.
type Info struct {
	Platform  string `json:"platform"`
	Browser   string `json:"browser"`
	IsDesktop bool   `json:"is_desktop"`
}

// Sniff clasifica un header User-Agent. Desconocido devuelve "Unknown".
func Sniff(userAgent string) Info {
	ua := strings.ToLower(userAgent)
	info := Info{
		Platform: sniffPlatform(ua),
		Browser:  sniffBrowser(ua),
	}
	info.IsDesktop = isDesktop(ua, info.Platform)
	return info
}

func sniffPlatform(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "mac os x"), strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "cros"):
		return "ChromeOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}

// Orden importa: Chrome incluye "safari" en su UA, Edge incluye "chrome".
func sniffBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "crios/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	default:
		return "Unknown"
	}
}

func isDesktop(ua, platform string) bool {
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "tablet") {
		return false
	}
	switch platform {
	case "iOS", "Android":
		return false
	case "Unknown":
		return false
	}
	return true
}
