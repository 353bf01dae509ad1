package routes

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blog/config"
	"github.com/cppla/blog/models"
)

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	resp, body := app.client().get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestEmptyListing(t *testing.T) {
	app := newTestApp(t)
	resp, body := app.client().get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "There are no posts yet.")
	assert.Contains(t, body, "Test Blog")
}

func TestRegisterLoginAndWrongPassword(t *testing.T) {
	app := newTestApp(t)
	c := app.client()

	resp := c.register("a@x.com", "pw", "A")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	require.NotNil(t, c.cookie("blog_token"))

	_, body := c.get("/")
	assert.Contains(t, body, "Log Out")

	resp, _ = c.get("/logout")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Nil(t, c.cookie("blog_token"))

	resp, _ = c.login("a@x.com", "pw")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.NotNil(t, c.cookie("blog_token"))

	c.get("/logout")

	resp, body = c.login("a@x.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Password incorrect, please try again.")
	assert.Nil(t, c.cookie("blog_token"))
	assert.NotContains(t, body, "Log Out")

	resp, body = c.login("nobody@x.com", "pw")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "That email does not exist, please try again.")
	assert.Nil(t, c.cookie("blog_token"))
}

func TestLogoutIsIdempotent(t *testing.T) {
	app := newTestApp(t)
	c := app.client()

	for i := 0; i < 2; i++ {
		resp, _ := c.get("/logout")
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
	}
}

func TestDuplicateRegistration(t *testing.T) {
	app := newTestApp(t)

	require.Equal(t, http.StatusSeeOther, app.client().register("a@x.com", "pw", "A").StatusCode)

	second := app.client()
	resp := second.register("A@x.com", "other", "B")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Nil(t, second.cookie("blog_token"))

	_, body := second.get("/login")
	assert.Contains(t, body, "already signed up with that email, log in instead!")
	assert.Equal(t, int64(1), app.count(&models.User{}, "email = ?", "a@x.com"))
}

func TestRegistrationValidation(t *testing.T) {
	app := newTestApp(t)
	c := app.client()

	resp, body := c.post("/register", url.Values{"email": {"not-an-email"}, "password": {""}, "name": {"Kept"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Invalid email address.")
	assert.Contains(t, body, "This field is required.")
	assert.Contains(t, body, `value="Kept"`)
	assert.Zero(t, app.count(&models.User{}, ""))
}

func TestFirstUserAndConfiguredEmailsAreAdmins(t *testing.T) {
	app := newTestApp(t)

	app.client().register("first@x.com", "pw", "First")
	app.client().register("second@x.com", "pw", "Second")
	app.client().register("admin@x.com", "pw", "Boss")

	var users []models.User
	require.NoError(t, app.db.Order("id").Find(&users).Error)
	require.Len(t, users, 3)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
	assert.Equal(t, models.RoleUser, users[1].Role)
	assert.Equal(t, models.RoleAdmin, users[2].Role)
}

func TestAdminPostLifecycle(t *testing.T) {
	app := newTestApp(t)
	admin := app.client()
	require.Equal(t, http.StatusSeeOther, admin.register("admin@x.com", "pw", "Admin").StatusCode)

	resp, _ := admin.get("/new-post")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = admin.post("/new-post", postValues("T1", "First subtitle"))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, body := admin.get("/")
	assert.Contains(t, body, "T1")
	assert.Contains(t, body, "First subtitle")
	assert.True(t, app.mr.Exists("cache:posts:list"))

	post := app.postByTitle("T1")
	assert.NotContains(t, post.Body, "<script>")
	assert.Equal(t, "<p>Hello</p>", post.Body)
	assert.NotEmpty(t, post.Date)

	reader := app.client()
	reader.register("reader@x.com", "pw", "Reader")
	resp, _ = reader.post(postPath("/post/", post.ID), url.Values{"comment_text": {"Nice post"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, postPath("/post/", post.ID), resp.Header.Get("Location"))
	_, body = reader.get(postPath("/post/", post.ID))
	assert.Contains(t, body, "Nice post")
	assert.Contains(t, body, "https://www.gravatar.com/avatar/")
	assert.Equal(t, int64(1), app.count(&models.Comment{}, "post_id = ?", post.ID))

	_, body = admin.get(postPath("/edit-post/", post.ID))
	assert.Contains(t, body, `value="First subtitle"`)

	resp, _ = admin.post(postPath("/edit-post/", post.ID), postValues("T1", "Edited subtitle"))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, postPath("/post/", post.ID), resp.Header.Get("Location"))

	_, body = admin.get("/")
	assert.Contains(t, body, "Edited subtitle")
	assert.NotContains(t, body, "First subtitle")
	edited := app.postByTitle("T1")
	assert.Equal(t, post.Date, edited.Date)
	assert.Equal(t, post.AuthorID, edited.AuthorID)

	resp, _ = admin.get(postPath("/delete/", post.ID))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, body = admin.get("/")
	assert.NotContains(t, body, "Edited subtitle")
	assert.Contains(t, body, "There are no posts yet.")
	assert.Zero(t, app.count(&models.Post{}, ""))
	assert.Zero(t, app.count(&models.Comment{}, "post_id = ?", post.ID))

	resp, _ = admin.get(postPath("/post/", post.ID))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostValidationAndDuplicateTitle(t *testing.T) {
	app := newTestApp(t)
	admin := app.client()
	admin.register("admin@x.com", "pw", "Admin")

	values := postValues("Draft", "Sub")
	values.Set("img_url", "not a url")
	resp, body := admin.post("/new-post", values)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Invalid URL.")
	assert.Contains(t, body, `value="Draft"`)
	assert.Zero(t, app.count(&models.Post{}, ""))

	resp, _ = admin.post("/new-post", postValues("T1", "Sub"))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, body = admin.post("/new-post", postValues("T1", "Again"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "A post with that title already exists.")
	assert.Equal(t, int64(1), app.count(&models.Post{}, ""))
}

func TestNonAdminCannotMutatePosts(t *testing.T) {
	app := newTestApp(t)
	admin := app.client()
	admin.register("admin@x.com", "pw", "Admin")
	admin.post("/new-post", postValues("T1", "First draft"))
	post := app.postByTitle("T1")

	user := app.client()
	user.register("user@x.com", "pw", "User")

	resp, body := user.get("/new-post")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "You do not have permission to access this page.")

	resp, _ = user.post("/new-post", postValues("T2", "Sneaky"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = user.get(postPath("/edit-post/", post.ID))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = user.post(postPath("/edit-post/", post.ID), postValues("T1", "Hijacked"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = user.get(postPath("/delete/", post.ID))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Equal(t, int64(1), app.count(&models.Post{}, ""))
	assert.Equal(t, "First draft", app.postByTitle("T1").Subtitle)
}

func TestAnonymousVisitorIsSentToLogin(t *testing.T) {
	app := newTestApp(t)
	admin := app.client()
	admin.register("admin@x.com", "pw", "Admin")
	admin.post("/new-post", postValues("T1", "Sub"))
	post := app.postByTitle("T1")

	anon := app.client()
	for _, p := range []string{"/new-post", postPath("/edit-post/", post.ID), postPath("/delete/", post.ID)} {
		resp, _ := anon.get(p)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, p)
		assert.Equal(t, "/login", resp.Header.Get("Location"), p)
	}
	_, body := anon.get("/login")
	assert.Contains(t, body, "You need to be logged in to access this page.")

	resp, _ := anon.get(postPath("/post/", post.ID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = anon.post(postPath("/post/", post.ID), url.Values{"comment_text": {"drive-by"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	_, body = anon.get("/login")
	assert.Contains(t, body, "You need to login or register to comment.")

	resp, _ = anon.post("/post/999", url.Values{"comment_text": {"drive-by"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Zero(t, app.count(&models.Comment{}, ""))
	assert.Equal(t, int64(1), app.count(&models.Post{}, ""))
}

func TestUnknownPostIs404(t *testing.T) {
	app := newTestApp(t)
	admin := app.client()
	admin.register("admin@x.com", "pw", "Admin")

	for _, p := range []string{"/post/999", "/post/abc", "/post/0", "/edit-post/999", "/delete/999", "/no-such-page"} {
		resp, body := admin.get(p)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
		assert.Contains(t, body, "Not Found", p)
	}

	resp, _ := admin.post("/post/999", url.Values{"comment_text": {"hello"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, app.count(&models.Comment{}, ""))
}

func TestEmptyCommentIsRejected(t *testing.T) {
	app := newTestApp(t)
	admin := app.client()
	admin.register("admin@x.com", "pw", "Admin")
	admin.post("/new-post", postValues("T1", "Sub"))
	post := app.postByTitle("T1")

	resp, body := admin.post(postPath("/post/", post.ID), url.Values{"comment_text": {"   "}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "This field is required.")
	assert.Zero(t, app.count(&models.Comment{}, ""))
}

func TestContactForm(t *testing.T) {
	app := newTestApp(t)
	c := app.client()

	resp, body := c.get("/contact")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Contact Me")

	resp, body = c.post("/contact", url.Values{"name": {"N"}, "email": {"n@x.com"}, "phone": {"123"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "This field is required.")
	assert.Zero(t, app.count(&models.Contact{}, ""))

	resp, body = c.post("/contact", url.Values{"name": {"N"}, "email": {"n@x.com"}, "phone": {"123"}, "message": {"Hello there"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Successfully sent your message")
	assert.Equal(t, int64(1), app.count(&models.Contact{}, "message = ?", "Hello there"))

	resp, body = c.post("/contact", url.Values{"name": {"N"}, "email": {"n@x.com"}, "phone": {""}, "message": {"hi"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Successfully sent your message")
	assert.Equal(t, int64(1), app.count(&models.Contact{}, "message = ? AND phone = ?", "hi", ""))
}

func TestCSRFTokenRequired(t *testing.T) {
	app := newTestApp(t)
	c := app.client()
	c.csrfToken()

	values := url.Values{"name": {"N"}, "email": {"n@x.com"}, "phone": {"1"}, "message": {"m"}}
	resp, _ := c.postRaw("/contact", values)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	values.Set("csrf_token", "forged")
	resp, _ = c.postRaw("/contact", values)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = c.postRaw("/register", url.Values{"email": {"a@x.com"}, "password": {"pw"}, "name": {"A"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Zero(t, app.count(&models.Contact{}, ""))
	assert.Zero(t, app.count(&models.User{}, ""))
}

func TestLogoutRevokesCopiedCookie(t *testing.T) {
	app := newTestApp(t)
	c := app.client()
	c.register("a@x.com", "pw", "A")
	token := c.cookie("blog_token")
	require.NotNil(t, token)

	c.get("/logout")

	thief := app.client()
	u, _ := url.Parse(app.srv.URL)
	thief.http.Jar.SetCookies(u, []*http.Cookie{{Name: "blog_token", Value: token.Value, Path: "/"}})
	_, body := thief.get("/")
	assert.NotContains(t, body, "Log Out")
	assert.Contains(t, body, "Login")
}

func TestRateLimitOnLogin(t *testing.T) {
	app := newTestApp(t, func(cfg *config.AppConfig) { cfg.RateLimitPerMinute = 2 })
	c := app.client()

	resp, _ := c.login("a@x.com", "pw")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := c.login("a@x.com", "pw")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, "Too many requests")
}

func TestOAuthRoutes(t *testing.T) {
	app := newTestApp(t, func(cfg *config.AppConfig) {
		cfg.OAuth.GitHubClientID = "client"
		cfg.OAuth.GitHubClientSecret = "secret"
		cfg.Site.OAuthProviders = cfg.OAuth.EnabledProviders()
	})
	c := app.client()

	_, body := c.get("/login")
	assert.Contains(t, body, `href="/auth/github/login"`)

	resp, _ := c.get("/auth/github/login")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", loc.Host)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	assert.True(t, app.mr.Exists("oauth:state:"+state))
	assert.Equal(t, "http://localhost:8080/auth/github/callback", loc.Query().Get("redirect_uri"))

	resp, _ = c.get("/auth/github/callback?code=abc&state=forged")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.get("/auth/google/login")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
