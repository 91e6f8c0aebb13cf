package sessionlog

import "time"

// Summary is the terminal record of one recording session.
type Summary struct {
	SessionID string
	Account   string
	Username  string
	Tags      []string
	Notes     string
	StartedAt time.Time
	EndedAt   time.Time
	Reason    string
	Error     string
	VideoPath string

	Comments int
	Gifts    int
	Follows  int
	Shares   int
	Joins    int
	Unknown  int
}

// Duration is the wall-clock length of the session.
func (s Summary) Duration() time.Duration {
	if s.EndedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
