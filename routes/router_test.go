package routes

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/blog/config"
	"github.com/cppla/blog/controllers"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/repository"
	"github.com/cppla/blog/utils"
)

type testApp struct {
	t   *testing.T
	srv *httptest.Server
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func newTestApp(t *testing.T, mutate ...func(*config.AppConfig)) *testApp {
	t.Helper()

	cfg := config.AppConfig{
		GinMode:            "test",
		SecretKey:          "test-secret",
		AdminEmails:        []string{"admin@x.com"},
		RateLimitPerMinute: 1000,
		Session: config.SessionConfig{
			CookieName:    "blog_token",
			FlashCookie:   "blog_session",
			TokenTTLHours: 1,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Name:   filepath.Join(t.TempDir(), "blog.db"),
		},
		OAuth: config.OAuthConfig{RedirectBase: "http://localhost:8080"},
		Site:  config.SiteConfig{Title: "Test Blog", Tagline: "Notes"},
	}
	for _, m := range mutate {
		m(&cfg)
	}

	log := zap.NewNop()
	db, err := config.InitDatabase(cfg.Database, "silent", log, models.All()...)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &controllers.Env{
		Store:   repository.New(db),
		Config:  cfg,
		Tokens:  utils.NewTokenIssuer(cfg.SecretKey, time.Hour),
		Revoked: utils.NewTTLStore(rdb, "jwt:revoked:"),
		States:  utils.NewTTLStore(rdb, "oauth:state:"),
		Cache:   utils.NewCache(rdb, log),
		Mailer:  utils.NewMailer(cfg.SMTP),
		Cookie:  utils.IdentityCookie{Name: cfg.Session.CookieName},
		Log:     log,
	}
	r, err := SetupRouter(env)
	require.NoError(t, err)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testApp{t: t, srv: srv, db: db, mr: mr}
}

type client struct {
	app  *testApp
	http *http.Client
}

func (a *testApp) client() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &client{
		app: a,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *client) do(req *http.Request) (*http.Response, string) {
	t := c.app.t
	t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (c *client) get(path string) (*http.Response, string) {
	c.app.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.app.srv.URL+path, nil)
	require.NoError(c.app.t, err)
	return c.do(req)
}

var csrfMeta = regexp.MustCompile(`<meta name="csrf-token" content="([^"]+)">`)

func (c *client) csrfToken() string {
	c.app.t.Helper()
	_, body := c.get("/about")
	m := csrfMeta.FindStringSubmatch(body)
	require.Len(c.app.t, m, 2, "csrf meta tag missing")
	return m[1]
}

// postRaw submits values exactly as given.
func (c *client) postRaw(path string, values url.Values) (*http.Response, string) {
	c.app.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.app.srv.URL+path, strings.NewReader(values.Encode()))
	require.NoError(c.app.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// post submits values with a valid CSRF token.
func (c *client) post(path string, values url.Values) (*http.Response, string) {
	c.app.t.Helper()
	values.Set("csrf_token", c.csrfToken())
	return c.postRaw(path, values)
}

func (c *client) cookie(name string) *http.Cookie {
	u, _ := url.Parse(c.app.srv.URL)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func (c *client) register(email, password, name string) *http.Response {
	c.app.t.Helper()
	resp, _ := c.post("/register", url.Values{"email": {email}, "password": {password}, "name": {name}})
	return resp
}

func (c *client) login(email, password string) (*http.Response, string) {
	c.app.t.Helper()
	return c.post("/login", url.Values{"email": {email}, "password": {password}})
}

func postValues(title, subtitle string) url.Values {
	return url.Values{
		"title":    {title},
		"subtitle": {subtitle},
		"img_url":  {"https://example.com/img.jpg"},
		"body":     {"<p>Hello</p><script>alert(1)</script>"},
	}
}

func (a *testApp) count(model interface{}, query string, args ...interface{}) int64 {
	a.t.Helper()
	var n int64
	q := a.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(a.t, q.Count(&n).Error)
	return n
}

func (a *testApp) postByTitle(title string) models.Post {
	a.t.Helper()
	var p models.Post
	require.NoError(a.t, a.db.Where("title = ?", title).First(&p).Error)
	return p
}

func postPath(prefix string, id uint) string {
	return prefix + strconv.FormatUint(uint64(id), 10)
}
