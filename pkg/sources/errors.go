package sources

import "fmt"

// SessionError means the credentials are unusable or expired. It is fatal:
// the only way out is a fresh login.
type SessionError struct {
	Detail string
}

func (e *SessionError) Error() string {
	msg := "API: out-of-session"
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	return msg + ", use `safaridl login` in order to authenticate again"
}

// RetrievalError means the manifest, a chapter page or the TOC came back
// malformed or empty. Fatal for the whole run, never retried.
type RetrievalError struct {
	Op     string
	Detail string
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("API: %s: %s", e.Op, e.Detail)
}
