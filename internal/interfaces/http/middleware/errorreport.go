package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// SetupErrorReporting initializes the Sentry client. An empty dsn leaves it
// disabled and every capture becomes a no-op.
func SetupErrorReporting(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	return nil
}

// FlushErrorReporting waits for buffered reports before process exit
func FlushErrorReporting() {
	sentry.Flush(2 * time.Second)
}

// ErrorReporting reports panics and 5xx responses. Panics are re-raised, so
// it must run inside the recovery middleware.
func ErrorReporting() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		hub.Scope().SetTag("request_id", c.GetString(RequestIDKey))

		defer func() {
			if r := recover(); r != nil {
				tagScope(hub, c)
				hub.RecoverWithContext(c.Request.Context(), r)
				panic(r)
			}
		}()

		c.Next()

		if c.Writer.Status() < 500 {
			return
		}
		tagScope(hub, c)
		if len(c.Errors) > 0 {
			hub.CaptureException(c.Errors.Last().Err)
			return
		}
		hub.CaptureMessage(fmt.Sprintf("%s %s returned %d", c.Request.Method, c.FullPath(), c.Writer.Status()))
	}
}

func tagScope(hub *sentry.Hub, c *gin.Context) {
	claims := GetJWTClaims(c)
	if claims == nil {
		return
	}
	hub.Scope().SetTag("tenant_id", strconv.FormatInt(claims.TenantID, 10))
	hub.Scope().SetUser(sentry.User{ID: strconv.FormatInt(claims.UserID, 10), Username: claims.Username})
}
