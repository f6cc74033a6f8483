package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/twofactor"
	"github.com/MrEthical07/twofactor/middleware"
	"github.com/MrEthical07/twofactor/session"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 10

type codeRequest struct {
	Code string `json:"code"`
}

type regenerateRequest struct {
	TOTPCode string `json:"totpCode"`
}

type disableRequest struct {
	Code         string `json:"code"`
	IsBackupCode bool   `json:"isBackupCode"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	subj, ctx := subjectOf(r)
	st, err := a.engine.Status(ctx, subj)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *api) beginSetup(w http.ResponseWriter, r *http.Request) {
	subj, ctx := subjectOf(r)
	res, err := a.engine.BeginSetup(ctx, subj)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) completeSetup(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if !decode(w, r, &body) {
		return
	}
	subj, ctx := subjectOf(r)
	res, err := a.engine.CompleteSetup(ctx, subj, body.Code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) verify(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if !decode(w, r, &body) {
		return
	}
	subj, ctx := subjectOf(r)
	res, err := a.engine.VerifyCode(ctx, subj, body.Code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) verifyBackup(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if !decode(w, r, &body) {
		return
	}
	subj, ctx := subjectOf(r)
	res, err := a.engine.VerifyBackupCode(ctx, subj, body.Code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) regenerate(w http.ResponseWriter, r *http.Request) {
	var body regenerateRequest
	if !decode(w, r, &body) {
		return
	}
	subj, ctx := subjectOf(r)
	res, err := a.engine.RegenerateBackupCodes(ctx, subj, body.TOTPCode)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) disable(w http.ResponseWriter, r *http.Request) {
	var body disableRequest
	if !decode(w, r, &body) {
		return
	}
	subj, ctx := subjectOf(r)
	res, err := a.engine.Disable(ctx, subj, body.Code, body.IsBackupCode)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	subj, ctx := subjectOf(r)
	if err := a.engine.RevokeSession(ctx, subj); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("two-factor request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", twofactor.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// StatusForError maps engine errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, twofactor.ErrAlreadyEnabled):
		return http.StatusConflict
	case errors.Is(err, twofactor.ErrSessionRequired):
		return http.StatusBadRequest
	case errors.Is(err, twofactor.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, twofactor.ErrSessionUnverified):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// subjectOf returns the authenticated subject. middleware.Authenticate runs
// first on every route, so the subject is always present.
func subjectOf(r *http.Request) (session.Subject, context.Context) {
	subj, _ := middleware.SubjectFromContext(r.Context())
	return subj, r.Context()
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
