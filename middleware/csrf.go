package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/blog/utils"
)

const (
	csrfSessionKey = "csrf_token"
	// CSRFFormField is the hidden input every POST form carries.
	CSRFFormField = "csrf_token"
	// CSRFHeader is accepted instead of the form field.
	CSRFHeader = "X-CSRF-Token"
)

// CSRF keeps a per-session token and rejects unsafe requests that do not echo it.
func CSRF(log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		session := sessions.Default(ctx)
		token, _ := session.Get(csrfSessionKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(csrfSessionKey, token)
			if err := session.Save(); err != nil {
				log.Error("save csrf token failed", zap.Error(err))
			}
		}
		ctx.Set(utils.ContextCSRFKey, token)

		switch ctx.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			ctx.Next()
			return
		}

		got := ctx.PostForm(CSRFFormField)
		if got == "" {
			got = ctx.GetHeader(CSRFHeader)
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Warn("csrf token rejected", zap.String("path", ctx.Request.URL.Path), zap.String("ip", ctx.ClientIP()))
			utils.ErrorPage(ctx, http.StatusForbidden, "The form has expired or the CSRF token is invalid. Please reload the page and try again.")
			return
		}
		ctx.Next()
	}
}
