package workflow

import "github.com/sakif/apfiles/internal/model"

// Session is the signed-in identity an operation runs as. A nil or
// logged-out Session is anonymous. Sessions are not shared between
// goroutines; the HTTP layer builds one per request.
type Session struct {
	user *model.User
}

// NewSession returns a session signed in as u.
func NewSession(u model.User) *Session {
	return &Session{user: &u}
}

// User returns the signed-in user, if any.
func (s *Session) User() (model.User, bool) {
	if s == nil || s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// IsAdmin reports whether the session belongs to the Builder.
func (s *Session) IsAdmin() bool {
	return s != nil && model.IsAdmin(s.user)
}

func (s *Session) clear() {
	if s != nil {
		s.user = nil
	}
}
