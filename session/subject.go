package session

import (
	"errors"
	"strings"
)

// SubjectSeparator joins the user and session parts of an encoded subject.
const SubjectSeparator = "|"

// ErrInvalidSubject is returned when an encoded subject has no user part.
var ErrInvalidSubject = errors.New("invalid subject")

// Subject identifies the caller of an operation: a user and the login session
// the request belongs to. SessionID may be empty when the identity provider
// issued a subject without a session part.
type Subject struct {
	UserID    string
	SessionID string
}

// ParseSubject decodes the composite "userId|sessionId" form issued by the
// identity provider. It splits on the first separator only.
func ParseSubject(raw string) (Subject, error) {
	userID, sessionID, _ := strings.Cut(raw, SubjectSeparator)
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" {
		return Subject{}, ErrInvalidSubject
	}
	return Subject{UserID: userID, SessionID: sessionID}, nil
}

// String re-encodes s in its composite form.
func (s Subject) String() string {
	if s.SessionID == "" {
		return s.UserID
	}
	return s.UserID + SubjectSeparator + s.SessionID
}

// HasSession reports whether s carries a session identifier.
func (s Subject) HasSession() bool {
	return s.SessionID != ""
}
