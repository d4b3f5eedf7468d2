// Copyright 2026 The AuthCore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/elementmedica/authcore/internal/observability/logger"
)

// Tenant Context Principles:
// 1. Tenant context comes only from the gateway assertion, never from a
//    client-controlled header or query parameter.
// 2. The engine re-checks tenant isolation on every decision; this layer is
//    not the only line of defense.

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// principalClaims is the shape of the gateway-issued assertion. Identity and
// tenant are established upstream; the shared-secret signature only proves
// the assertion was minted by the gateway, it is not an authentication layer.
type principalClaims struct {
	TenantID string `json:"tid"`
	jwt.RegisteredClaims
}

// PrincipalMiddleware unpacks the gateway assertion and injects the
// principal and tenant into the request context.
func PrincipalMiddleware(secret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				respondError(w, http.StatusUnauthorized, "missing principal assertion")
				return
			}

			claims := &principalClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				respondError(w, http.StatusUnauthorized, "invalid principal assertion")
				return
			}
			if claims.Subject == "" || claims.TenantID == "" {
				respondError(w, http.StatusUnauthorized, "assertion missing principal or tenant")
				return
			}

			// Reject tenant spoofing attempts: tenant context is derived
			// exclusively from the assertion.
			if r.Header.Get("X-Tenant-ID") != "" {
				slog.WarnContext(r.Context(), "tenant header rejected on asserted request",
					logger.UserID(claims.Subject),
				)
				respondError(w, http.StatusBadRequest, "X-Tenant-ID header is not allowed; tenant is derived from the assertion")
				return
			}

			ctx := context.WithValue(r.Context(), personIDKey, claims.Subject)
			ctx = context.WithValue(ctx, tenantIDKey, claims.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
