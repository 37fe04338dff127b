package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
)

type ctxKey string

const (
	sessionIDKey  ctxKey = "session_id"
	newSessionKey ctxKey = "new_session"
)

// SessionMiddleware resolves the cart session from the X-Session-ID header or the
// session_id cookie and issues a new one when neither is present.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(sessionHeader)
		if sessionID == "" {
			if c, err := r.Cookie(sessionCookie); err == nil {
				sessionID = c.Value
			}
		}
		ctx := r.Context()
		if sessionID == "" {
			sessionID = uuid.NewString()
			ctx = context.WithValue(ctx, newSessionKey, true)
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   60 * 60 * 24 * 90,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		w.Header().Set(sessionHeader, sessionID)
		ctx = context.WithValue(ctx, sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isNewSession reports whether the session id was issued by this request, so nothing
// can be stored for it yet.
func isNewSession(ctx context.Context) bool {
	isNew, _ := ctx.Value(newSessionKey).(bool)
	return isNew
}

func getSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggingMiddleware writes one structured entry per request.
func LoggingMiddleware(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
				"session_id": getSessionID(r.Context()),
			}).Info("request handled")
		})
	}
}
