package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/placementcell/campus-api/internal/apierror"
	"github.com/placementcell/campus-api/internal/metrics"
	"github.com/placementcell/campus-api/internal/middleware"
	"github.com/placementcell/campus-api/internal/policy"
)

// Middleware authenticates the bearer token and stores the token and its
// role in the request context. bootstrap may be nil.
func Middleware(v *Validator, bootstrap *BootstrapService, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearerToken(r)
			if raw == "" {
				metrics.RecordAuthFailure("missing_token")
				apierror.Write(w, http.StatusUnauthorized, apierror.CodeInvalidCredentials, "missing bearer token")
				return
			}

			if bootstrap != nil && bootstrap.IsBootstrapKey(raw) {
				ok, err := bootstrap.ValidateBootstrapKey(r.Context(), raw)
				if err != nil {
					logger.Error("bootstrap state check failed",
						"request_id", middleware.GetRequestID(r.Context()),
						"error", err,
					)
					apierror.Write(w, http.StatusInternalServerError, apierror.CodeInternalError, "internal error")
					return
				}
				if !ok {
					metrics.RecordAuthFailure("invalid_token")
					apierror.Write(w, http.StatusUnauthorized, apierror.CodeInvalidCredentials,
						"bootstrap key is disabled once an admin token exists")
					return
				}
				ctx := WithBootstrap(WithRole(r.Context(), bootstrap.Role()), true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, err := v.ValidateToken(r.Context(), raw)
			if err != nil {
				if errors.Is(err, ErrInvalidToken) {
					metrics.RecordAuthFailure("invalid_token")
					apierror.Write(w, http.StatusUnauthorized, apierror.CodeInvalidCredentials, "invalid token")
					return
				}
				logger.Error("token validation failed",
					"request_id", middleware.GetRequestID(r.Context()),
					"error", err,
				)
				apierror.Write(w, http.StatusInternalServerError, apierror.CodeInternalError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
		})
	}
}

// RequireAdmin restricts a route to roles in the registry's admin bypass set.
func RequireAdmin(registry *policy.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok || !registry.IsAdminBypass(role) {
				metrics.RecordAuthFailure("forbidden")
				apierror.Write(w, http.StatusForbidden, apierror.CodeForbidden, "this endpoint requires an admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken gets token from "Authorization: Bearer <token>" header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
