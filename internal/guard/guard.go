// Package guard decides whether a navigation may enter a protected
// view. Decide is a pure function over the current session and the
// route's requirements; the router calls it before every protected
// entry and acts on the returned decision.
package guard

import (
	"net/url"

	"github.com/communitas-app/session_layer/internal/session"
)

// Redirect targets used by decisions.
const (
	LoginPath   = "/login"
	DefaultHome = "/home"
)

// oauthCallbackPaths may legitimately be visited mid-flow before a
// session exists (right after the provider redirect, before the
// completion phase finishes). They bypass every redirect rule and must
// be checked before the empty-session check.
var oauthCallbackPaths = map[string]bool{
	"/auth/google/callback": true,
	"/auth/google/complete": true,
}

// Action is the kind of decision the guard returns.
type Action int

const (
	// ActionAllow lets the navigation proceed.
	ActionAllow Action = iota

	// ActionRedirect denies entry and names a redirect target.
	ActionRedirect
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a guard check. Target is set only for
// redirects.
type Decision struct {
	Action Action
	Target string
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Action: ActionAllow}
}

// RedirectTo returns a denying decision pointing at target.
func RedirectTo(target string) Decision {
	return Decision{Action: ActionRedirect, Target: target}
}

// Request describes the navigation being gated.
type Request struct {
	// Path is the route being entered.
	Path string

	// RequiredRoles lists the role names allowed in. Empty means any
	// authenticated user.
	RequiredRoles []string

	// GuestOnly marks routes meant for signed-out users (login,
	// registration); an authenticated user is redirected home.
	GuestOnly bool
}

// Decide applies the access rules:
//
//	no session            -> redirect to login with returnUrl
//	guest-only route      -> redirect home when authenticated
//	role not in required  -> redirect home
//	otherwise             -> allow
//
// OAuth callback paths are exempt from all of it.
func Decide(sess *session.Session, req Request) Decision {
	if oauthCallbackPaths[req.Path] {
		return Allow()
	}

	if !sess.Authenticated() {
		if req.GuestOnly {
			return Allow()
		}
		return RedirectTo(loginRedirect(req.Path))
	}

	if req.GuestOnly {
		return RedirectTo(DefaultHome)
	}

	if len(req.RequiredRoles) == 0 {
		return Allow()
	}
	for _, role := range req.RequiredRoles {
		if sess.Claims.RoleName == role {
			return Allow()
		}
	}
	return RedirectTo(DefaultHome)
}

func loginRedirect(returnPath string) string {
	if returnPath == "" || returnPath == LoginPath {
		return LoginPath
	}
	return LoginPath + "?returnUrl=" + url.QueryEscape(returnPath)
}
