package mock

import (
	"aaronromeo.com/imaparchiver/pkg/base"
)

// Sessioner hands Client to every session body. When Err is set the session
// fails to open and the body is never run.
type Sessioner struct {
	Client base.Client
	Err    error
	Opened int
}

func (s *Sessioner) WithSession(fn func(c base.Client) error) error {
	s.Opened++
	if s.Err != nil {
		return s.Err
	}
	return fn(s.Client)
}
