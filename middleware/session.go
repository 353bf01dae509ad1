package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/blog/config"
	"github.com/cppla/blog/utils"
)

// Sessions installs the signed cookie session used for flashes and the CSRF token.
func Sessions(secret string, cfg config.SessionConfig) gin.HandlerFunc {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.TokenTTLHours * 3600,
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(cfg.FlashCookie, store)
}

// Site exposes site chrome and the request logger to handlers and templates.
func Site(site config.SiteConfig, log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(utils.ContextSiteKey, site)
		ctx.Set(utils.ContextLoggerKey, log)
		ctx.Next()
	}
}
