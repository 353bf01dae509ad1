package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/blog/controllers"
	"github.com/cppla/blog/middleware"
	"github.com/cppla/blog/templates"
	"github.com/cppla/blog/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(env *controllers.Env) (*gin.Engine, error) {
	cfg := env.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Access logs go to their own rolling file when configured, otherwise to the app logger.
	accessLog := env.Log
	if cfg.Log.GinPath != "" {
		gl, err := utils.NewRollingFileLogger(cfg.Log.GinPath, cfg.Log)
		if err != nil {
			env.Log.Warn("gin access log unavailable, using app logger", zap.Error(err))
		} else {
			accessLog = gl
		}
	}
	r.Use(ginzap.Ginzap(accessLog, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(accessLog, true))

	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.Config{
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", middleware.CSRFHeader},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
		if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
			corsCfg.AllowAllOrigins = true
			corsCfg.AllowCredentials = false
		} else {
			corsCfg.AllowOrigins = cfg.AllowedOrigins
		}
		r.Use(cors.New(corsCfg))
	}

	tmpl, err := templates.Load()
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		if err := env.Store.Ping(pingCtx); err != nil {
			env.Log.Warn("health check failed", zap.Error(err))
			ctx.String(http.StatusServiceUnavailable, "database unavailable")
			return
		}
		ctx.String(http.StatusOK, "ok")
	})

	r.Use(middleware.Site(cfg.Site, env.Log))
	r.Use(middleware.Sessions(cfg.SecretKey, cfg.Session))
	r.Use(middleware.Identity(env.Tokens, env.Revoked, env.Store, env.Cookie, env.Log))
	r.Use(middleware.CSRF(env.Log))

	authController := controllers.NewAuthController(env)
	postController := controllers.NewPostController(env)
	pageController := controllers.NewPageController(env)
	authLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	r.GET("/", postController.ListPosts)

	r.GET("/register", authController.RegisterPage)
	r.POST("/register", authLimiter.Handler(), authController.Register)
	r.GET("/login", authController.LoginPage)
	r.POST("/login", authLimiter.Handler(), authController.Login)
	r.GET("/logout", authController.Logout)
	r.GET("/auth/:provider/login", authController.OAuthRedirect)
	r.GET("/auth/:provider/callback", authController.OAuthCallback)

	r.GET("/post/:id", postController.ShowPost)
	r.POST("/post/:id", postController.CreateComment)

	admin := r.Group("")
	admin.Use(middleware.AdminOnly())
	admin.GET("/new-post", postController.NewPostPage)
	admin.POST("/new-post", postController.CreatePost)
	admin.GET("/edit-post/:id", postController.EditPostPage)
	admin.POST("/edit-post/:id", postController.UpdatePost)
	admin.GET("/delete/:id", postController.DeletePost)

	r.GET("/about", pageController.About)
	r.GET("/contact", pageController.ContactPage)
	r.POST("/contact", pageController.SubmitContact)

	r.NoRoute(func(ctx *gin.Context) {
		utils.ErrorPage(ctx, http.StatusNotFound, "The page you are looking for does not exist.")
	})

	return r, nil
}
