package utils

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/cppla/blog/models"
)

// Keys used to pass request scoped values between middleware and handlers.
const (
	ContextUserKey   = "currentUser"
	ContextSiteKey   = "site"
	ContextCSRFKey   = "csrfToken"
	ContextLoggerKey = "logger"
)

// CurrentUser returns the authenticated user or nil.
func CurrentUser(ctx *gin.Context) *models.User {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// Render writes an HTML page. Every page receives the current user, flashes,
// the CSRF token and site chrome in addition to data.
func Render(ctx *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	user := CurrentUser(ctx)
	data["CurrentUser"] = user
	data["LoggedIn"] = user != nil
	data["IsAdmin"] = user.IsAdmin()
	data["CSRFToken"] = ctx.GetString(ContextCSRFKey)
	data["Year"] = time.Now().Year()
	if site, ok := ctx.Get(ContextSiteKey); ok {
		data["Site"] = site
	}
	if _, ok := ctx.Get(sessions.DefaultKey); ok {
		data["Flashes"] = Flashes(ctx)
	}
	ctx.HTML(status, name, data)
}

// ErrorPage renders the shared error template and aborts the chain.
func ErrorPage(ctx *gin.Context, status int, message string) {
	Render(ctx, status, "error.html", gin.H{
		"Status":  status,
		"Title":   http.StatusText(status),
		"Message": message,
	})
	ctx.Abort()
}

// Redirect sends the client to location with a GET.
func Redirect(ctx *gin.Context, location string) {
	ctx.Redirect(http.StatusSeeOther, location)
}
