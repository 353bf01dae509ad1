package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/cppla/blog/forms"
	"github.com/cppla/blog/middleware"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/repository"
	"github.com/cppla/blog/utils"
)

// Flash messages shown by the authentication pages.
const (
	MsgAlreadyRegistered = "You've already signed up with that email, log in instead!"
	MsgUnknownEmail      = "That email does not exist, please try again."
	MsgWrongPassword     = "Password incorrect, please try again."
	MsgRegisterFailed    = "We could not create your account. Please try again."
)

const oauthStateTTL = 10 * time.Minute

// AuthController handles registration, login, logout and social login.
type AuthController struct {
	*Env
}

// NewAuthController creates an AuthController.
func NewAuthController(env *Env) *AuthController {
	return &AuthController{Env: env}
}

// RegisterPage shows the empty registration form.
func (a *AuthController) RegisterPage(ctx *gin.Context) {
	utils.Render(ctx, http.StatusOK, "register.html", gin.H{"PageTitle": "Register", "Form": forms.RegisterForm{}})
}

// Register creates a local account and logs it in.
func (a *AuthController) Register(ctx *gin.Context) {
	var form forms.RegisterForm
	errs, err := forms.Bind(ctx, &form)
	if err != nil {
		utils.ErrorPage(ctx, http.StatusBadRequest, "Malformed form submission.")
		return
	}
	rerender := func(status int, errs forms.Errors) {
		form.Password = ""
		utils.Render(ctx, status, "register.html", gin.H{"PageTitle": "Register", "Form": form, "Errors": errs})
	}
	if errs != nil {
		rerender(http.StatusUnprocessableEntity, errs)
		return
	}

	reqCtx := ctx.Request.Context()
	if _, err := a.Store.UserByEmail(reqCtx, form.Email); err == nil {
		utils.AddFlash(ctx, MsgAlreadyRegistered)
		utils.Redirect(ctx, "/login")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		a.Log.Error("lookup user by email failed", zap.Error(err))
		utils.AddFlash(ctx, MsgRegisterFailed)
		rerender(http.StatusInternalServerError, nil)
		return
	}

	hash, err := utils.HashPassword(form.Password)
	if err != nil {
		a.Log.Error("hash password failed", zap.Error(err))
		utils.AddFlash(ctx, MsgRegisterFailed)
		rerender(http.StatusInternalServerError, nil)
		return
	}

	role, err := a.roleFor(reqCtx, form.Email)
	if err != nil {
		a.Log.Error("count users failed", zap.Error(err))
		utils.AddFlash(ctx, MsgRegisterFailed)
		rerender(http.StatusInternalServerError, nil)
		return
	}

	user := &models.User{
		Email:        form.Email,
		PasswordHash: hash,
		Name:         form.Name,
		Role:         role,
	}
	if err := a.Store.CreateUser(reqCtx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// lost a race with a concurrent registration
			utils.AddFlash(ctx, MsgAlreadyRegistered)
			utils.Redirect(ctx, "/login")
			return
		}
		a.Log.Error("create user failed", zap.Error(err))
		utils.AddFlash(ctx, MsgRegisterFailed)
		rerender(http.StatusInternalServerError, nil)
		return
	}

	a.Log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	if !a.startSession(ctx, user) {
		return
	}
	utils.Redirect(ctx, "/")
}

// roleFor grants admin to configured admin emails and to the very first account.
func (a *AuthController) roleFor(ctx context.Context, email string) (string, error) {
	if a.Config.IsAdminEmail(email) {
		return models.RoleAdmin, nil
	}
	n, err := a.Store.CountUsers(ctx)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return models.RoleAdmin, nil
	}
	return models.RoleUser, nil
}

// LoginPage shows the login form.
func (a *AuthController) LoginPage(ctx *gin.Context) {
	utils.Render(ctx, http.StatusOK, "login.html", gin.H{"PageTitle": "Log In", "Form": forms.LoginForm{}})
}

// Login verifies credentials and establishes the identity cookie.
func (a *AuthController) Login(ctx *gin.Context) {
	var form forms.LoginForm
	errs, err := forms.Bind(ctx, &form)
	if err != nil {
		utils.ErrorPage(ctx, http.StatusBadRequest, "Malformed form submission.")
		return
	}
	rerender := func(status int, errs forms.Errors) {
		form.Password = ""
		utils.Render(ctx, status, "login.html", gin.H{"PageTitle": "Log In", "Form": form, "Errors": errs})
	}
	if errs != nil {
		rerender(http.StatusUnprocessableEntity, errs)
		return
	}

	user, err := a.Store.UserByEmail(ctx.Request.Context(), form.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.AddFlash(ctx, MsgUnknownEmail)
			rerender(http.StatusUnauthorized, nil)
			return
		}
		a.Log.Error("lookup user by email failed", zap.Error(err))
		utils.AddFlash(ctx, "Login is temporarily unavailable. Please try again.")
		rerender(http.StatusInternalServerError, nil)
		return
	}

	if !utils.CheckPassword(user.PasswordHash, form.Password) {
		utils.AddFlash(ctx, MsgWrongPassword)
		rerender(http.StatusUnauthorized, nil)
		return
	}

	if !a.startSession(ctx, user) {
		return
	}
	utils.Redirect(ctx, "/")
}

// Logout revokes the current identity token and clears the session. Safe to call when logged out.
func (a *AuthController) Logout(ctx *gin.Context) {
	if v, ok := ctx.Get(middleware.ContextClaimsKey); ok {
		if claims, ok := v.(*utils.Claims); ok && claims.ExpiresAt != nil {
			if err := a.Revoked.Put(ctx.Request.Context(), claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
				a.Log.Warn("revoke token failed", zap.Error(err))
			}
		}
	}
	a.Cookie.Clear(ctx)

	session := sessions.Default(ctx)
	session.Clear()
	if err := session.Save(); err != nil {
		a.Log.Warn("clear session failed", zap.Error(err))
	}
	utils.Redirect(ctx, "/")
}

// startSession issues an identity token for user. On failure it renders an error page and returns false.
func (a *AuthController) startSession(ctx *gin.Context, user *models.User) bool {
	token, claims, err := a.Tokens.Issue(user.ID)
	if err != nil {
		a.Log.Error("issue identity token failed", zap.Uint("user_id", user.ID), zap.Error(err))
		utils.ErrorPage(ctx, http.StatusInternalServerError, "We could not log you in. Please try again.")
		return false
	}
	a.Cookie.Set(ctx, token, claims.ExpiresAt.Time)
	return true
}

// OAuthRedirect sends the browser to the provider's consent screen.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	provider := ctx.Param("provider")
	cfg, err := a.oauthConfig(provider)
	if err != nil {
		utils.ErrorPage(ctx, http.StatusNotFound, err.Error())
		return
	}

	state := uuid.NewString()
	if err := a.States.Put(ctx.Request.Context(), state, oauthStateTTL); err != nil {
		a.Log.Error("save oauth state failed", zap.Error(err))
		utils.ErrorPage(ctx, http.StatusInternalServerError, "Social login is temporarily unavailable.")
		return
	}
	ctx.Redirect(http.StatusFound, cfg.AuthCodeURL(state))
}

// OAuthCallback exchanges the authorization code, then logs in the matching
// account or creates one without a password.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := ctx.Param("provider")
	code := ctx.Query("code")
	state := ctx.Query("state")

	if code == "" || state == "" {
		utils.ErrorPage(ctx, http.StatusBadRequest, "Missing code or state.")
		return
	}
	reqCtx := ctx.Request.Context()
	if !a.States.Consume(reqCtx, state) {
		utils.ErrorPage(ctx, http.StatusBadRequest, "Invalid or expired login attempt, please try again.")
		return
	}

	cfg, err := a.oauthConfig(provider)
	if err != nil {
		utils.ErrorPage(ctx, http.StatusNotFound, err.Error())
		return
	}

	token, err := cfg.Exchange(reqCtx, code)
	if err != nil {
		a.Log.Warn("oauth code exchange failed", zap.String("provider", provider), zap.Error(err))
		utils.ErrorPage(ctx, http.StatusBadRequest, "Failed to exchange code.")
		return
	}

	info, err := fetchOAuthUser(reqCtx, provider, cfg.Client(reqCtx, token))
	if err != nil {
		a.Log.Error("fetch oauth user failed", zap.String("provider", provider), zap.Error(err))
		utils.ErrorPage(ctx, http.StatusBadGateway, "Could not read your profile from "+provider+".")
		return
	}
	if info.Email == "" {
		utils.ErrorPage(ctx, http.StatusBadRequest, "Your "+provider+" account has no verified email address.")
		return
	}

	user, err := a.findOrCreateOAuthUser(reqCtx, provider, info)
	if err != nil {
		a.Log.Error("persist oauth user failed", zap.String("provider", provider), zap.Error(err))
		utils.ErrorPage(ctx, http.StatusInternalServerError, "Failed to persist user.")
		return
	}

	if !a.startSession(ctx, user) {
		return
	}
	utils.Redirect(ctx, "/")
}

func (a *AuthController) oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := a.Config.OAuth
	switch provider {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github login is not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  fmt.Sprintf("%s/auth/github/callback", strings.TrimRight(cfg.RedirectBase, "/")),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google login is not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/auth/google/callback", strings.TrimRight(cfg.RedirectBase, "/")),
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func (a *AuthController) findOrCreateOAuthUser(ctx context.Context, provider string, info *oauthUser) (*models.User, error) {
	user, err := a.Store.UserByEmail(ctx, info.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	role, err := a.roleFor(ctx, info.Email)
	if err != nil {
		return nil, err
	}
	user = &models.User{
		Email:    info.Email,
		Name:     fallback(info.DisplayName, info.Email),
		Role:     role,
		Provider: provider,
	}
	if err := a.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return a.Store.UserByEmail(ctx, info.Email)
		}
		return nil, err
	}
	return user, nil
}

type oauthUser struct {
	DisplayName string
	Email       string
}

// Profile endpoints, overridable in tests.
var (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
	googleUserURL   = "https://www.googleapis.com/oauth2/v2/userinfo"
)

func fetchOAuthUser(ctx context.Context, provider string, client *http.Client) (*oauthUser, error) {
	switch provider {
	case "github":
		return fetchGitHubUser(ctx, client)
	case "google":
		return fetchGoogleUser(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fetchGitHubUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var payload struct {
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, githubUserURL, &payload); err != nil {
		return nil, err
	}

	email := payload.Email
	if email == "" {
		var err error
		if email, err = fetchGitHubEmail(ctx, client); err != nil {
			return nil, err
		}
	}
	return &oauthUser{DisplayName: fallback(payload.Name, payload.Login), Email: email}, nil
}

func fetchGitHubEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, githubEmailsURL, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func fetchGoogleUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var payload struct {
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
	}
	if err := getJSON(ctx, client, googleUserURL, &payload); err != nil {
		return nil, err
	}
	if !payload.VerifiedEmail {
		payload.Email = ""
	}
	return &oauthUser{DisplayName: payload.Name, Email: payload.Email}, nil
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
