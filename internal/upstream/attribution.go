package upstream

import "net/http"

// Attribution carries backend-attribution context the calling layer sources
// from its own HTTP request (ip, user agent, named cookies). Every field is
// optional; non-interactive callers pass nil and everything still works.
type Attribution struct {
	ForwardedFor   string
	UserAgent      string
	ClientToken    string
	ClientID       string
	InstanceID     string
	SessionID      string
	OriginReferrer string
}

func (a *Attribution) applyHeaders(h http.Header) {
	if a == nil {
		return
	}
	if a.ForwardedFor != "" {
		h.Set("X-Forwarded-For", a.ForwardedFor)
	}
	if a.UserAgent != "" {
		h.Set("User-Agent", a.UserAgent)
	}
	if a.ClientToken != "" {
		h.Set("x-cnstrc-token", a.ClientToken)
	}
}

func (a *Attribution) applyParams(params Params) {
	if a == nil {
		return
	}
	if a.ClientID != "" {
		params["c"] = a.ClientID
	}
	if a.InstanceID != "" {
		params["i"] = a.InstanceID
	}
	if a.SessionID != "" {
		params["s"] = a.SessionID
	}
	if a.OriginReferrer != "" {
		params["origin_referrer"] = a.OriginReferrer
	}
}
