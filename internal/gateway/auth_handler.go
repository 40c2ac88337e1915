// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samber/oops"

	"github.com/quizhub/quizhub/internal/auth"
)

func (h *ConnectionHandler) handleRegister(ctx context.Context, data json.RawMessage) {
	if h.identity != nil {
		h.send(Response{Type: RespRegistration, Message: "already logged in"})
		return
	}

	var creds CredentialsData
	if err := json.Unmarshal(data, &creds); err != nil {
		h.send(Response{Type: RespRegistration, Message: "username and password required"})
		return
	}

	account, err := h.deps.Auth.Register(ctx, creds.Username, creds.Password)
	if err != nil {
		h.send(h.authFailure(RespRegistration, err))
		return
	}

	slog.Info("account registered",
		"conn_id", h.connID.String(),
		"username", account.Username,
	)
	h.send(Response{
		Type:    RespRegistration,
		OK:      true,
		Message: "account created, you can log in now",
	})
}

func (h *ConnectionHandler) handleLogin(ctx context.Context, data json.RawMessage) {
	if h.identity != nil {
		h.send(Response{Type: RespLogin, Message: "already logged in"})
		return
	}

	var creds CredentialsData
	if err := json.Unmarshal(data, &creds); err != nil {
		h.send(Response{Type: RespLogin, Message: "username and password required"})
		return
	}

	account, err := h.deps.Auth.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		h.recordLogin("password", "failure")
		h.send(h.authFailure(RespLogin, err))
		return
	}

	identity := auth.Registered{AccountID: account.ID, Username: account.Username}
	h.establish(identity)
	h.recordLogin("password", "success")

	slog.Info("login",
		"conn_id", h.connID.String(),
		"username", account.Username,
	)
	h.send(Response{
		Type: RespLogin,
		OK:   true,
		Data: LoginResultData{
			Username:    account.Username,
			HighScore:   account.HighScore,
			GamesPlayed: account.GamesPlayed,
			ResumeToken: h.issueToken(identity),
		},
	})
}

func (h *ConnectionHandler) handleGuestLogin() {
	if h.identity != nil {
		h.send(Response{Type: RespLogin, Message: "already logged in"})
		return
	}

	guest := h.deps.Auth.GuestLogin()
	h.establish(guest)
	h.recordLogin("guest", "success")

	slog.Info("guest login",
		"conn_id", h.connID.String(),
		"name", guest.Name,
	)
	h.send(Response{
		Type: RespLogin,
		OK:   true,
		Data: LoginResultData{
			Username:    guest.Name,
			Guest:       true,
			ResumeToken: h.issueToken(guest),
		},
	})
}

func (h *ConnectionHandler) handleResume(data json.RawMessage) {
	if h.identity != nil {
		h.send(Response{Type: RespLogin, Message: "already logged in"})
		return
	}
	if h.deps.Tokens == nil {
		h.send(Response{Type: RespLogin, Message: "session resume is not enabled"})
		return
	}

	var resume ResumeData
	if err := json.Unmarshal(data, &resume); err != nil || resume.Token == "" {
		h.send(Response{Type: RespLogin, Message: "resume token required"})
		return
	}

	identity, err := h.deps.Tokens.Verify(resume.Token)
	if err != nil {
		h.recordLogin("resume", "failure")
		h.send(Response{Type: RespLogin, Message: "invalid or expired resume token"})
		return
	}

	h.establish(identity)
	h.recordLogin("resume", "success")

	slog.Info("session resumed",
		"conn_id", h.connID.String(),
		"name", identity.DisplayName(),
	)
	h.send(Response{
		Type: RespLogin,
		OK:   true,
		Data: LoginResultData{
			Username: identity.DisplayName(),
			Guest:    identity.IsGuest(),
		},
	})
}

func (h *ConnectionHandler) handleLogout() {
	if h.identity == nil {
		h.send(Response{Type: RespLogout, Message: "not logged in"})
		return
	}

	name := h.identity.DisplayName()
	h.teardown()

	slog.Info("logout",
		"conn_id", h.connID.String(),
		"name", name,
	)
	h.send(Response{Type: RespLogout, OK: true, Message: "goodbye"})
}

// issueToken signs a resume token for identity, or returns "" when the
// issuer is disabled or signing fails. A login must not fail because
// its optional token did.
func (h *ConnectionHandler) issueToken(identity auth.Identity) string {
	if h.deps.Tokens == nil {
		return ""
	}
	token, err := h.deps.Tokens.Issue(identity)
	if err != nil {
		slog.Warn("failed to issue resume token",
			"conn_id", h.connID.String(),
			"name", identity.DisplayName(),
			"error", err,
		)
		return ""
	}
	return token
}

func (h *ConnectionHandler) recordLogin(kind, result string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.LoginsTotal.WithLabelValues(kind, result).Inc()
	}
}

// authFailure maps an authentication or registration error to a client
// response. Internal detail stays in the logs; the client gets a short
// message plus the lockout or retry numbers when they apply.
func (h *ConnectionHandler) authFailure(respType string, err error) Response {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		slog.Error("authentication failed",
			"conn_id", h.connID.String(),
			"error", err,
		)
		return Response{Type: respType, Message: "something went wrong, try again"}
	}

	ctxMap := oopsErr.Context()
	switch oopsErr.Code() {
	case "AUTH_ACCOUNT_LOCKED":
		remaining := intFromContext(ctxMap, "remaining_seconds")
		if h.deps.Metrics != nil {
			h.deps.Metrics.LockoutsTotal.Inc()
		}
		return Response{
			Type:    respType,
			Message: fmt.Sprintf("account locked, try again in %d seconds", remaining),
			Data:    LockoutData{RemainingSeconds: remaining},
		}
	case "AUTH_INVALID_PASSWORD":
		left := intFromContext(ctxMap, "attempts_left")
		return Response{
			Type:    respType,
			Message: fmt.Sprintf("invalid password, %d attempts left", left),
			Data:    LockoutData{AttemptsLeft: left},
		}
	case "AUTH_USER_NOT_FOUND":
		return Response{Type: respType, Message: "unknown username"}
	case "AUTH_USERNAME_TAKEN":
		return Response{Type: respType, Message: "username already taken"}
	case "AUTH_INVALID_USERNAME", "AUTH_EMPTY_PASSWORD":
		return Response{Type: respType, Message: oopsErr.Error()}
	default:
		slog.Error("authentication failed",
			"conn_id", h.connID.String(),
			"code", oopsErr.Code(),
			"error", err,
		)
		return Response{Type: respType, Message: "something went wrong, try again"}
	}
}

// intFromContext reads an int attached to an oops error. Values arrive
// as int from With(); json round-trips turn them into float64.
func intFromContext(ctxMap map[string]any, key string) int {
	switch v := ctxMap[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
