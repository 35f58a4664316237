package domain

import "time"

// AccessToken is a signed bearer credential handed out at login. It is never
// stored server-side.
type AccessToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t *AccessToken) IsExpired(reference time.Time) bool {
	if t == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !t.ExpiresAt.After(reference)
}
