// Package handler serves the storefront REST API under /api: the public
// catalog, the session-gated product mutations and the login endpoints.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
	"github.com/xenking/pharmacy-storefront/internal/domain/product"
	"github.com/xenking/pharmacy-storefront/pkg/httpmiddleware"
)

// DefaultCookieName is the session cookie used by the storefront pages.
const DefaultCookieName = "pharma.sid"

// maxBodySize bounds request bodies of product and login requests.
const maxBodySize = 1 << 20

// Response messages shared with the storefront pages.
const (
	msgUnauthorized       = "Unauthorized. Please log in."
	msgInvalidProduct     = "Invalid product data."
	msgProductNotFound    = "Product not found."
	msgProductAdded       = "Product added!"
	msgProductUpdated     = "Product updated successfully!"
	msgProductDeleted     = "Product deleted successfully!"
	msgLoginOK            = "Login successful"
	msgInvalidCredentials = "Invalid username or password"
	msgTooManyAttempts    = "Too many login attempts. Please try again later."
	msgInvalidBody        = "Invalid request body."
	msgLogoutOK           = "Logout successful"
	msgServerError        = "Server error"
	msgNotFound           = "Not found"
	msgMethodNotAllowed   = "Method not allowed"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// CookieName defaults to DefaultCookieName.
	CookieName string
	// SecureCookie marks the session cookie Secure. Enable behind HTTPS.
	SecureCookie bool
}

// Handler implements the /api routes on top of the product and auth services.
type Handler struct {
	products   *product.Service
	auth       *auth.Service
	cookieName string
	secure     bool

	logins    metric.Int64Counter
	mutations metric.Int64Counter
}

// New constructs a Handler. Metrics are recorded with mp.
func New(cfg Config, products *product.Service, authService *auth.Service, mp metric.MeterProvider) (*Handler, error) {
	meter := mp.Meter("github.com/xenking/pharmacy-storefront/internal/handler")

	logins, err := meter.Int64Counter("storefront.login.attempts",
		metric.WithDescription("Login attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create login counter")
	}
	mutations, err := meter.Int64Counter("storefront.product.mutations",
		metric.WithDescription("Successful product mutations by operation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create mutation counter")
	}

	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	return &Handler{
		products:   products,
		auth:       authService,
		cookieName: name,
		secure:     cfg.SecureCookie,
		logins:     logins,
		mutations:  mutations,
	}, nil
}

// Routes returns the API router. Mount it under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteMessage(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteMessage(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)
	})

	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Get("/check-auth", h.checkAuth)
	return r
}

// requireSession rejects requests without a live session before they reach
// the store.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.session(r)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				httpmiddleware.WriteMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			h.serverError(w, r, "Authenticate", err)
			return
		}
		ctx := zctx.With(r.Context(), zap.String("user", sess.Username))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) session(r *http.Request) (*auth.Session, error) {
	c, err := r.Cookie(h.cookieName)
	if err != nil || c.Value == "" {
		return nil, auth.ErrUnauthorized
	}
	return h.auth.Authenticate(r.Context(), c.Value)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(h.auth.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	zctx.From(r.Context()).Error(op, zap.Error(err))
	httpmiddleware.WriteMessage(w, http.StatusInternalServerError, msgServerError)
}

func (h *Handler) countMutation(ctx context.Context, op string) {
	h.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (h *Handler) countLogin(ctx context.Context, result string) {
	h.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
