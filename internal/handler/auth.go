package handler

import (
	"mime"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
	"github.com/xenking/pharmacy-storefront/pkg/httpmiddleware"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentials(w, r)
	if err != nil || creds.Username == "" || creds.Password == "" {
		httpmiddleware.WriteMessage(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	ctx := r.Context()
	cookie, sess, err := h.auth.Login(ctx, creds.Username, creds.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.countLogin(ctx, "invalid")
		zctx.From(ctx).Info("Login rejected", zap.String("username", creds.Username))
		httpmiddleware.WriteMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	case errors.Is(err, auth.ErrTooManyAttempts):
		h.countLogin(ctx, "throttled")
		zctx.From(ctx).Warn("Login throttled", zap.String("username", creds.Username))
		httpmiddleware.WriteMessage(w, http.StatusTooManyRequests, msgTooManyAttempts)
		return
	default:
		h.serverError(w, r, "Login", err)
		return
	}

	h.countLogin(ctx, "success")
	zctx.From(ctx).Info("Login", zap.String("username", sess.Username))
	h.setSessionCookie(w, cookie, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeMessage(e, msgLoginOK, func(e *jx.Encoder) {
			e.FieldStart("username")
			e.Str(sess.Username)
		})
	})
}

// credentials accepts both JSON and form-encoded login bodies.
func (h *Handler) credentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := r.ParseForm(); err != nil {
			return credentials{}, errors.Wrap(err, "parse form")
		}
		return credentials{
			Username: r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}, nil
	}

	data, err := readBody(w, r)
	if err != nil {
		return credentials{}, err
	}
	return decodeCredentials(data)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookieName); err == nil && c.Value != "" {
		if err := h.auth.Logout(r.Context(), c.Value); err != nil {
			h.serverError(w, r, "Logout", err)
			return
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeMessage(e, msgLogoutOK, nil)
	})
}

func (h *Handler) checkAuth(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil && !errors.Is(err, auth.ErrUnauthorized) {
		h.serverError(w, r, "Check auth", err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("authenticated")
		e.Bool(sess != nil)
		if sess != nil {
			e.FieldStart("username")
			e.Str(sess.Username)
		}
		e.ObjEnd()
	})
}
