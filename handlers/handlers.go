// Package handlers serves the user administration web interface.
package handlers

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/dchest/captcha"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/csrf"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"useradmin/auth"
	"useradmin/config"
	"useradmin/credential"
	"useradmin/i18n"
	"useradmin/invite"
	"useradmin/store"
	"useradmin/web"
)

var pageNames = []string{
	"index.html",
	"login.html",
	"register.html",
	"add_user.html",
	"edit_user.html",
}

// App holds everything the request handlers share. All fields are set by New
// and never reassigned.
type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	users    store.Users
	sessions *auth.Sessions
	invite   *invite.Gate
	hasher   credential.Hasher
	pages    map[string]*template.Template

	// dummyHash is verified against when a login names an unknown user, so
	// both outcomes take the same time.
	dummyHash string

	loginLimiter    *rateLimiter
	registerLimiter *rateLimiter
}

// New builds an App, parsing the embedded templates once.
func New(cfg *config.Config, log zerolog.Logger, users store.Users, gate *invite.Gate, hasher credential.Hasher) (*App, error) {
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &App{
		cfg:             cfg,
		log:             log,
		users:           users,
		sessions:        auth.NewSessions(cfg.SessionKey, cfg.SessionMaxAge, cfg.SecureCookies),
		invite:          gate,
		hasher:          hasher,
		pages:           pages,
		dummyHash:       dummy,
		loginLimiter:    newRateLimiter(),
		registerLimiter: newRateLimiter(),
	}, nil
}

func parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{"T": i18n.T}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(web.Templates, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// Routes returns the application router without CSRF protection.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(a.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Handle("/static/*", http.FileServer(http.FS(web.Static)))
	r.Handle("/captcha/*", captcha.Server(captcha.StdWidth, captcha.StdHeight))

	r.Get("/login", a.loginForm)
	r.Post("/login", a.loginSubmit)
	r.Get("/logout", a.logout)
	r.Get("/register", a.registerForm)
	r.Post("/register", a.registerSubmit)

	r.Group(func(r chi.Router) {
		r.Use(a.RequireLogin)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/index", http.StatusSeeOther)
		})
		r.Get("/index", a.index)
		r.Get("/add_user", a.addUserForm)
		r.Post("/add_user", a.addUserSubmit)
		r.Get("/edit_user/{id:[0-9]+}", a.editUserForm)
		r.Post("/edit_user/{id:[0-9]+}", a.editUserSubmit)
		r.Get("/delete_user/{id:[0-9]+}", a.deleteUser)
		r.Post("/delete_user/{id:[0-9]+}", a.deleteUser)
	})

	r.Route("/api/v1", func(r chi.Router) {
		if len(a.cfg.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   a.cfg.CORSOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders:   []string{"Accept", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(a.requireAPIIdentity)
		r.Get("/users", a.apiListUsers)
	})

	return r
}

// Handler wraps Routes with CSRF protection and the security headers. It is
// what the server serves.
func (a *App) Handler() http.Handler {
	key := sha256.Sum256([]byte(a.cfg.SessionKey + "csrf"))
	protect := csrf.Protect(key[:],
		csrf.Secure(a.cfg.SecureCookies),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(a.cfg.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(a.csrfFailure)),
	)

	h := protect(a.Routes())
	if !a.cfg.SecureCookies {
		// Without TLS the origin checks must not expect an https referer.
		inner := h
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inner.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
	return SecurityHeadersMiddleware(h)
}

func (a *App) csrfFailure(w http.ResponseWriter, r *http.Request) {
	a.log.Warn().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		AnErr("reason", csrf.FailureReason(r)).
		Msg("rejected request with invalid CSRF token")
	http.Error(w, i18n.T(i18n.DetectLanguage(r), "RequestRejected"), http.StatusForbidden)
}

// renderTemplate executes the named page inside the layout. AppName, Lang,
// csrfField, CurrentUser and pending Flashes are added to data.
func (a *App) renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	tmpl, ok := a.pages[name]
	if !ok {
		a.log.Error().Str("template", name).Msg("unknown template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = make(map[string]any)
	}
	data["AppName"] = a.cfg.AppName
	data["Lang"] = i18n.DetectLanguage(r)
	data["csrfField"] = csrf.TemplateField(r)
	if id, ok := a.sessions.Identity(r); ok {
		data["CurrentUser"] = id.Username
	}
	flashes, err := a.sessions.Flashes(w, r)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to pop flashes")
	}
	data["Flashes"] = flashes

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		a.log.Error().Err(err).Str("template", name).Msg("failed to render template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// flash queues a translated notice for the next page.
func (a *App) flash(w http.ResponseWriter, r *http.Request, category, key string) {
	if err := a.sessions.AddFlash(w, r, auth.Flash{Category: category, Message: key}); err != nil {
		a.log.Error().Err(err).Str("flash", key).Msg("failed to save flash")
	}
}

// userID parses the {id} route parameter.
func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
