package delivery

import "net/http"

// Auth holds the collector credentials. Both tokens are optional.
type Auth struct {
	Basic  string
	Bearer string
}

// Authorization returns the Authorization header value, or "" when no
// token is configured. Basic takes precedence over Bearer; at most one
// scheme is ever sent.
func (a Auth) Authorization() string {
	switch {
	case a.Basic != "":
		return "Basic " + a.Basic
	case a.Bearer != "":
		return "Bearer " + a.Bearer
	default:
		return ""
	}
}

// apply sets the request headers for a batch POST.
func (a Auth) apply(h http.Header) {
	h.Set("Content-Type", "application/json")
	if v := a.Authorization(); v != "" {
		h.Set("Authorization", v)
	}
}
