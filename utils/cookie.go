package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// IdentityCookie writes and clears the signed identity cookie.
type IdentityCookie struct {
	Name   string
	Secure bool
}

// Set stores token until expires.
func (c IdentityCookie) Set(ctx *gin.Context, token string, expires time.Time) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.Name, token, int(time.Until(expires).Seconds()), "/", "", c.Secure, true)
}

// Clear expires the cookie on the client.
func (c IdentityCookie) Clear(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.Name, "", -1, "/", "", c.Secure, true)
}

// Read returns the raw cookie value, if any.
func (c IdentityCookie) Read(ctx *gin.Context) string {
	v, err := ctx.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return v
}
