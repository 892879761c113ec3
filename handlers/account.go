package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dchest/captcha"

	"useradmin/auth"
	"useradmin/credential"
	"useradmin/store"
)

const minPasswordLength = 6

func (a *App) authenticated(r *http.Request) bool {
	_, ok := a.sessions.Identity(r)
	return ok
}

func (a *App) loginForm(w http.ResponseWriter, r *http.Request) {
	if a.authenticated(r) {
		http.Redirect(w, r, "/index", http.StatusSeeOther)
		return
	}
	a.renderTemplate(w, r, http.StatusOK, "login.html", map[string]any{
		"Next": safeNext(r.URL.Query().Get("next")),
	})
}

func (a *App) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if a.authenticated(r) {
		http.Redirect(w, r, "/index", http.StatusSeeOther)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := strings.TrimSpace(r.PostFormValue("password"))
	next := safeNext(r.PostFormValue("next"))
	data := map[string]any{"Next": next, "FormUsername": username}

	ip := getClientIP(r)
	if !a.loginLimiter.Allow(ip) {
		data["Error"] = "TooManyAttempts"
		a.renderTemplate(w, r, http.StatusTooManyRequests, "login.html", data)
		return
	}

	if username == "" || password == "" {
		data["Error"] = "LoginRequired"
		a.renderTemplate(w, r, http.StatusOK, "login.html", data)
		return
	}

	user, err := a.users.GetByUsername(r.Context(), username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		a.log.Error().Err(err).Str("username", username).Msg("failed to look up user")
		data["Error"] = "SystemError"
		a.renderTemplate(w, r, http.StatusOK, "login.html", data)
		return
	}

	stored := user.Password
	if err != nil {
		stored = a.dummyHash
	}
	match := a.hasher.Verify(password, stored)
	if err != nil || !match {
		a.loginLimiter.RecordFailure(ip)
		a.log.Info().Str("username", username).Str("ip", ip).Msg("failed login")
		data["Error"] = "InvalidCredentials"
		a.renderTemplate(w, r, http.StatusOK, "login.html", data)
		return
	}

	a.loginLimiter.Reset(ip)
	if err := a.sessions.SetIdentity(w, r, auth.Identity{UserID: user.ID, Username: user.Username}); err != nil {
		a.log.Error().Err(err).Msg("failed to save session")
		data["Error"] = "SystemError"
		a.renderTemplate(w, r, http.StatusOK, "login.html", data)
		return
	}
	a.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user logged in")
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Clear(w, r); err != nil {
		a.log.Error().Err(err).Msg("failed to clear session")
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// withCaptcha adds a fresh challenge to data when the captcha is enabled.
func (a *App) withCaptcha(data map[string]any) map[string]any {
	if a.cfg.RegisterCaptcha {
		data["CaptchaID"] = captcha.New()
	}
	return data
}

func (a *App) registerForm(w http.ResponseWriter, r *http.Request) {
	if a.authenticated(r) {
		http.Redirect(w, r, "/index", http.StatusSeeOther)
		return
	}
	a.renderTemplate(w, r, http.StatusOK, "register.html", a.withCaptcha(map[string]any{}))
}

func (a *App) registerSubmit(w http.ResponseWriter, r *http.Request) {
	if a.authenticated(r) {
		http.Redirect(w, r, "/index", http.StatusSeeOther)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := strings.TrimSpace(r.PostFormValue("password"))
	confirm := strings.TrimSpace(r.PostFormValue("confirm_password"))
	code := strings.TrimSpace(r.PostFormValue("invite_code"))

	ip := getClientIP(r)
	fail := func(status int, key string) {
		data := a.withCaptcha(map[string]any{"FormUsername": username, "Error": key})
		a.renderTemplate(w, r, status, "register.html", data)
	}

	if !a.registerLimiter.Allow(ip) {
		fail(http.StatusTooManyRequests, "TooManyAttempts")
		return
	}
	if username == "" || password == "" || confirm == "" || code == "" {
		fail(http.StatusOK, "AllFieldsRequired")
		return
	}
	if password != confirm {
		fail(http.StatusOK, "PasswordMismatch")
		return
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		fail(http.StatusOK, "PasswordTooShort")
		return
	}
	if !a.invite.Check(code) {
		a.registerLimiter.RecordFailure(ip)
		a.log.Info().Str("ip", ip).Msg("registration with invalid invite code")
		fail(http.StatusOK, "InvalidInviteCode")
		return
	}
	if a.cfg.RegisterCaptcha && !captcha.VerifyString(r.PostFormValue("captcha_id"), r.PostFormValue("captcha_solution")) {
		a.registerLimiter.RecordFailure(ip)
		fail(http.StatusOK, "InvalidCaptcha")
		return
	}

	hash, err := a.hasher.Hash(password)
	if errors.Is(err, credential.ErrPasswordTooLong) {
		fail(http.StatusOK, "PasswordTooLong")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("failed to hash password")
		fail(http.StatusOK, "RegisterFailed")
		return
	}

	id, err := a.users.Create(r.Context(), username, hash)
	if errors.Is(err, store.ErrUsernameTaken) {
		fail(http.StatusOK, "UsernameExists")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Str("username", username).Msg("failed to register user")
		fail(http.StatusOK, "RegisterFailed")
		return
	}

	a.log.Info().Int64("user_id", id).Str("username", username).Msg("user registered")
	if err := a.sessions.SetIdentity(w, r, auth.Identity{UserID: id, Username: username}); err != nil {
		a.log.Error().Err(err).Msg("failed to save session")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	a.flash(w, r, auth.FlashSuccess, "RegisterSuccess")
	http.Redirect(w, r, "/index", http.StatusSeeOther)
}
