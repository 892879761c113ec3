package handlers

import (
	"encoding/json"
	"net/http"

	"useradmin/i18n"
	"useradmin/models"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// requireAPIIdentity answers 401 with a JSON body instead of redirecting to
// the login form.
func (a *App) requireAPIIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.sessions.Identity(r)
		if !ok {
			lang := i18n.DetectLanguage(r)
			sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

func (a *App) apiListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.List(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("failed to list users")
		lang := i18n.DetectLanguage(r)
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "ListUsersFailed")})
		return
	}
	if users == nil {
		users = []models.User{}
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Data: users})
}
