package affinity

import (
	"net/http"
	"net/url"
)

const kCookieMaxAge = 30 * 24 * 60 * 60 // seconds

func (m *Manager) activeApplication(
	w http.ResponseWriter, r *http.Request) string {
	if name := r.FormValue("application"); name != "" &&
		m.checker.IsApplicationDataAvailable(name) {
		m.bind(w, name)
		return name
	}
	if name := m.fromCookie(w, r); name != "" {
		return name
	}
	return m.registry.First()
}

func (m *Manager) bind(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   CookieName,
		Value:  url.QueryEscape(name),
		Path:   "/",
		MaxAge: kCookieMaxAge,
	})
}

func (m *Manager) fromCookie(
	w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	name, err := url.QueryUnescape(cookie.Value)
	if err != nil || name == "" {
		return ""
	}
	if !m.checker.IsApplicationDataAvailable(name) {
		// the bound application went away; the stale cookie must not
		// be offered again
		http.SetCookie(w, &http.Cookie{
			Name:   CookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		return ""
	}
	return name
}
