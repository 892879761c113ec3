package handlers

import (
	"errors"
	"net/http"
	"strings"

	"useradmin/auth"
	"useradmin/credential"
	"useradmin/models"
	"useradmin/store"
)

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	users, err := a.users.List(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("failed to list users")
		data["Error"] = "ListUsersFailed"
	} else {
		data["Users"] = users
	}
	a.renderTemplate(w, r, http.StatusOK, "index.html", data)
}

func (a *App) addUserForm(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, r, http.StatusOK, "add_user.html", nil)
}

func (a *App) addUserSubmit(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := strings.TrimSpace(r.PostFormValue("password"))
	data := map[string]any{"FormUsername": username}

	if username == "" || password == "" {
		data["Error"] = "UsernamePasswordRequired"
		a.renderTemplate(w, r, http.StatusOK, "add_user.html", data)
		return
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		data["Error"] = a.hashErrorKey(err, "AddUserFailed")
		a.renderTemplate(w, r, http.StatusOK, "add_user.html", data)
		return
	}

	id, err := a.users.Create(r.Context(), username, hash)
	if errors.Is(err, store.ErrUsernameTaken) {
		data["Error"] = "UsernameExists"
		a.renderTemplate(w, r, http.StatusOK, "add_user.html", data)
		return
	}
	if err != nil {
		a.log.Error().Err(err).Str("username", username).Msg("failed to add user")
		data["Error"] = "AddUserFailed"
		a.renderTemplate(w, r, http.StatusOK, "add_user.html", data)
		return
	}

	a.log.Info().
		Int64("user_id", id).
		Str("username", username).
		Int64("by", identityFrom(r.Context()).UserID).
		Msg("user added")
	a.flash(w, r, auth.FlashSuccess, "UserAdded")
	http.Redirect(w, r, "/index", http.StatusSeeOther)
}

func (a *App) editUserForm(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	user, err := a.users.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		a.flash(w, r, auth.FlashDanger, "UserNotFound")
		http.Redirect(w, r, "/index", http.StatusSeeOther)
		return
	}
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", id).Msg("failed to load user")
		a.flash(w, r, auth.FlashDanger, "LoadUserFailed")
		http.Redirect(w, r, "/index", http.StatusSeeOther)
		return
	}

	a.renderTemplate(w, r, http.StatusOK, "edit_user.html", map[string]any{
		"User": models.User{ID: user.ID, Username: user.Username},
	})
}

func (a *App) editUserSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := strings.TrimSpace(r.PostFormValue("password"))
	data := map[string]any{"User": models.User{ID: id, Username: username}}

	if username == "" {
		data["Error"] = "UsernameRequired"
		a.renderTemplate(w, r, http.StatusOK, "edit_user.html", data)
		return
	}

	// An empty password leaves the stored credential untouched.
	var hash string
	if password != "" {
		var err error
		if hash, err = a.hasher.Hash(password); err != nil {
			data["Error"] = a.hashErrorKey(err, "UpdateUserFailed")
			a.renderTemplate(w, r, http.StatusOK, "edit_user.html", data)
			return
		}
	}

	err := a.users.Update(r.Context(), id, username, hash)
	if errors.Is(err, store.ErrUsernameTaken) {
		data["Error"] = "UsernameInUse"
		a.renderTemplate(w, r, http.StatusOK, "edit_user.html", data)
		return
	}
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", id).Msg("failed to update user")
		data["Error"] = "UpdateUserFailed"
		a.renderTemplate(w, r, http.StatusOK, "edit_user.html", data)
		return
	}

	a.log.Info().
		Int64("user_id", id).
		Bool("password_changed", hash != "").
		Int64("by", identityFrom(r.Context()).UserID).
		Msg("user updated")
	a.flash(w, r, auth.FlashSuccess, "UserUpdated")
	http.Redirect(w, r, "/index", http.StatusSeeOther)
}

// deleteUser removes the record whether or not it exists.
func (a *App) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if err := a.users.Delete(r.Context(), id); err != nil {
		a.log.Error().Err(err).Int64("user_id", id).Msg("failed to delete user")
		a.flash(w, r, auth.FlashDanger, "DeleteUserFailed")
		http.Redirect(w, r, "/index", http.StatusSeeOther)
		return
	}

	a.log.Info().Int64("user_id", id).Int64("by", identityFrom(r.Context()).UserID).Msg("user deleted")
	a.flash(w, r, auth.FlashSuccess, "UserDeleted")
	http.Redirect(w, r, "/index", http.StatusSeeOther)
}

// hashErrorKey maps a hashing failure to the message shown to the operator.
func (a *App) hashErrorKey(err error, fallback string) string {
	if errors.Is(err, credential.ErrPasswordTooLong) {
		return "PasswordTooLong"
	}
	a.log.Error().Err(err).Msg("failed to hash password")
	return fallback
}
