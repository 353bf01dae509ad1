package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/blog/models"
	"github.com/cppla/blog/repository"
	"github.com/cppla/blog/utils"
)

// ContextClaimsKey stores the parsed identity token so logout can revoke it.
const ContextClaimsKey = "tokenClaims"

// LoginRequiredMessage is flashed when an anonymous visitor hits a guarded page.
const LoginRequiredMessage = "You need to be logged in to access this page."

// UserLoader resolves the user referenced by an identity token.
type UserLoader interface {
	UserByID(ctx context.Context, id uint) (*models.User, error)
}

// Revocations reports whether a token ID was revoked before expiry.
type Revocations interface {
	Exists(ctx context.Context, key string) bool
}

// Identity loads the user named by the identity cookie, if any. Invalid,
// expired or revoked cookies are cleared and the request continues anonymously.
func Identity(tokens *utils.TokenIssuer, revoked Revocations, users UserLoader, cookie utils.IdentityCookie, log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := cookie.Read(ctx)
		if raw == "" {
			ctx.Next()
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			cookie.Clear(ctx)
			ctx.Next()
			return
		}
		if revoked.Exists(ctx.Request.Context(), claims.ID) {
			cookie.Clear(ctx)
			ctx.Next()
			return
		}

		user, err := users.UserByID(ctx.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				cookie.Clear(ctx)
			} else {
				log.Error("load session user failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
			}
			ctx.Next()
			return
		}

		ctx.Set(utils.ContextUserKey, user)
		ctx.Set(ContextClaimsKey, claims)
		ctx.Next()
	}
}

// AdminOnly allows only authenticated admins. Anonymous visitors are sent to
// /login, other users get 403.
func AdminOnly() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user := utils.CurrentUser(ctx)
		if user == nil {
			utils.AddFlash(ctx, LoginRequiredMessage)
			utils.Redirect(ctx, "/login")
			ctx.Abort()
			return
		}
		if !user.IsAdmin() {
			utils.ErrorPage(ctx, http.StatusForbidden, "You do not have permission to access this page.")
			return
		}
		ctx.Next()
	}
}
