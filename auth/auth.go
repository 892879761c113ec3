package auth

import (
	"crypto/sha256"
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
)

const SessionName = "useradmin-session"

const (
	keyUserID   = "user_id"
	keyUsername = "username"
)

// Flash categories.
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
)

// Flash is a one-time notice shown on the next rendered page. Message is a
// translation key.
type Flash struct {
	Category string
	Message  string
}

func init() {
	gob.Register(Flash{})
}

// Identity is the authenticated user carried by the session.
type Identity struct {
	UserID   int64
	Username string
}

// Sessions reads and writes the per-client session cookie.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions derives signing and encryption keys from secret.
func NewSessions(secret string, maxAge int, secure bool) *Sessions {
	authKey := sha256.Sum256([]byte(secret + "auth"))
	encKey := sha256.Sum256([]byte(secret + "encryption"))

	store := sessions.NewCookieStore(authKey[:], encKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(maxAge)

	return &Sessions{store: store}
}

// get returns the request's session. A cookie that fails to decode (for
// example after a key rotation) yields a fresh, empty session.
func (s *Sessions) get(r *http.Request) *sessions.Session {
	session, _ := s.store.Get(r, SessionName)
	return session
}

// Identity returns the authenticated user, if any.
func (s *Sessions) Identity(r *http.Request) (Identity, bool) {
	session := s.get(r)
	id, ok := session.Values[keyUserID].(int64)
	if !ok {
		return Identity{}, false
	}
	username, _ := session.Values[keyUsername].(string)
	return Identity{UserID: id, Username: username}, true
}

// SetIdentity marks the session as authenticated.
func (s *Sessions) SetIdentity(w http.ResponseWriter, r *http.Request, id Identity) error {
	session := s.get(r)
	session.Values[keyUserID] = id.UserID
	session.Values[keyUsername] = id.Username
	return session.Save(r, w)
}

// Clear removes all session state and expires the cookie.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) error {
	session := s.get(r)
	session.Values = map[any]any{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// AddFlash queues a notice for the next rendered page.
func (s *Sessions) AddFlash(w http.ResponseWriter, r *http.Request, f Flash) error {
	session := s.get(r)
	session.AddFlash(f)
	return session.Save(r, w)
}

// Flashes pops every queued notice. The cookie is only rewritten when there
// was something to pop.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) ([]Flash, error) {
	session := s.get(r)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}
	flashes := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			flashes = append(flashes, f)
		}
	}
	return flashes, session.Save(r, w)
}
