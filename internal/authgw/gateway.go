// Package authgw performs credential and OAuth exchanges against the
// identity endpoints. Every successful exchange hands the resulting
// session to the session store; failures surface as *AuthError and
// never touch it.
package authgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/communitas-app/session_layer/internal/logging"
	"github.com/communitas-app/session_layer/internal/session"
	"github.com/communitas-app/session_layer/internal/timers"
)

// Config configures the gateway.
type Config struct {
	// BaseURL is the identity API root, e.g. https://api.example.org.
	BaseURL string

	// Sessions receives every successfully exchanged session.
	Sessions *session.Store

	// HTTPClient defaults to a 30s-timeout client.
	HTTPClient *http.Client

	// Scheduler drives the resend cooldown; defaults to real timers.
	Scheduler timers.Scheduler

	// CooldownDuration defaults to DefaultCooldown.
	CooldownDuration time.Duration

	Logger *logging.Logger
}

// Gateway wraps login, registration, and the two-phase Google OAuth
// flow.
type Gateway struct {
	baseURL  string
	client   *http.Client
	sessions *session.Store
	logger   *logging.Logger
	cooldown *Cooldown
}

// New creates a gateway from cfg.
func New(cfg Config) *Gateway {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Gateway{
		baseURL:  cfg.BaseURL,
		client:   client,
		sessions: cfg.Sessions,
		logger:   cfg.Logger.OrDiscard(),
		cooldown: NewCooldown(cfg.Scheduler, cfg.CooldownDuration),
	}
}

// Cooldown exposes the resend-code timer machine for the registration
// UI (countdown label, cancel on navigation away).
func (g *Gateway) Cooldown() *Cooldown {
	return g.cooldown
}

// =============================================================================
// Wire DTOs
// =============================================================================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

type googleRequest struct {
	IDToken string `json:"id_token"`
}

type googleCompleteRequest struct {
	RegistrationToken string `json:"registration_token"`
	Password          string `json:"password"`
	Code              string `json:"code"`
}

type authResponse struct {
	Token string         `json:"token"`
	User  session.Claims `json:"user"`
}

type googleResponse struct {
	RequiresCompletion bool            `json:"requires_completion"`
	Token              string          `json:"token,omitempty"`
	User               *session.Claims `json:"user,omitempty"`
	RegistrationToken  string          `json:"registration_token,omitempty"`
	Prefill            *Prefill        `json:"prefill,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Prefill seeds the completion form with what the identity provider
// already knows about the user.
type Prefill struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// RegistrationChallenge is the transient mid-OAuth value produced when
// the provider recognizes an unregistered email. It lives until the
// user completes or abandons the flow and is never persisted.
type RegistrationChallenge struct {
	RegistrationToken string
	Prefill           Prefill
}

// GoogleOutcome is the tagged result of the first OAuth phase: exactly
// one of Session and Completion is set.
type GoogleOutcome struct {
	Session    *session.Session
	Completion *RegistrationChallenge
}

// =============================================================================
// Operations
// =============================================================================

// Login exchanges email/password for a session.
func (g *Gateway) Login(ctx context.Context, email, password string) (*session.Session, error) {
	var resp authResponse
	if err := g.post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return g.adopt(resp.Token, resp.User)
}

// RegisterInput is the completed registration form.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Code     string
}

// Register completes the email verification-code registration flow and
// signs the new user in.
func (g *Gateway) Register(ctx context.Context, in RegisterInput) (*session.Session, error) {
	var resp authResponse
	req := registerRequest{Name: in.Name, Email: in.Email, Password: in.Password, Code: in.Code}
	if err := g.post(ctx, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return g.adopt(resp.Token, resp.User)
}

// SendRegistrationCode asks the server to email a verification code and
// starts the resend cooldown.
func (g *Gateway) SendRegistrationCode(ctx context.Context, email string) error {
	if err := g.post(ctx, "/auth/register/send-code", sendCodeRequest{Email: email}, nil); err != nil {
		return err
	}
	g.cooldown.Start()
	return nil
}

// ResendVerificationCode re-sends the code. While the cooldown is
// active the request is rejected locally with ErrCooldownActive and no
// network call is made.
func (g *Gateway) ResendVerificationCode(ctx context.Context, email string) error {
	if g.cooldown.Active() {
		return ErrCooldownActive
	}
	if err := g.post(ctx, "/auth/resend-verification-code", sendCodeRequest{Email: email}, nil); err != nil {
		return err
	}
	g.cooldown.Start()
	return nil
}

// LoginWithGoogle runs the first OAuth phase. A fully known identity
// yields an authenticated session; a partially known one yields a
// RegistrationChallenge for CompleteGoogle.
func (g *Gateway) LoginWithGoogle(ctx context.Context, idToken string) (GoogleOutcome, error) {
	var resp googleResponse
	if err := g.post(ctx, "/auth/google", googleRequest{IDToken: idToken}, &resp); err != nil {
		return GoogleOutcome{}, err
	}

	if resp.RequiresCompletion {
		challenge := &RegistrationChallenge{RegistrationToken: resp.RegistrationToken}
		if resp.Prefill != nil {
			challenge.Prefill = *resp.Prefill
		}
		return GoogleOutcome{Completion: challenge}, nil
	}

	var claims session.Claims
	if resp.User != nil {
		claims = *resp.User
	}
	sess, err := g.adopt(resp.Token, claims)
	if err != nil {
		return GoogleOutcome{}, err
	}
	return GoogleOutcome{Session: sess}, nil
}

// CompleteGoogle runs the second OAuth phase: the registration token
// from the challenge plus the password and most recent verification
// code collected from the user.
func (g *Gateway) CompleteGoogle(ctx context.Context, challenge *RegistrationChallenge, password, code string) (*session.Session, error) {
	if challenge == nil || challenge.RegistrationToken == "" {
		return nil, invalidCredentials("registration challenge missing")
	}
	var resp authResponse
	req := googleCompleteRequest{
		RegistrationToken: challenge.RegistrationToken,
		Password:          password,
		Code:              code,
	}
	if err := g.post(ctx, "/auth/google/complete", req, &resp); err != nil {
		return nil, err
	}
	return g.adopt(resp.Token, resp.User)
}

// adopt turns a successful exchange into the process session. Claims
// missing from the response body are recovered from the token itself.
func (g *Gateway) adopt(token string, claims session.Claims) (*session.Session, error) {
	if token == "" {
		return nil, serverRejected("response carried no token")
	}
	if claims.UserID == "" {
		decoded, err := session.DecodeClaims(token)
		if err != nil {
			g.logger.WithError(err).Warn("Token claims decode failed, keeping response claims")
		} else {
			claims = decoded
		}
	}
	if err := g.sessions.SetSession(token, claims); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	g.logger.WithFields(map[string]interface{}{
		"user_id": claims.UserID,
		"role":    claims.RoleName,
	}).Info("Authenticated")
	return g.sessions.Current(), nil
}

func (g *Gateway) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithField("path", path).Warn("Identity request failed")
		return networkFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return serverRejected("malformed response body")
		}
		return nil
	}

	message := readErrorMessage(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnprocessableEntity:
		if message == "" {
			message = "credentials rejected"
		}
		return invalidCredentials(message)
	default:
		if message == "" {
			message = resp.Status
		}
		return serverRejected(message)
	}
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body errorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
