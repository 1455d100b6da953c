package users

import (
	"net/mail"
	"strings"
	"time"
)

// User is a token identity remembered so analysis results can be mailed back.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Notifiable reports whether job notifications can be addressed to u.
func (u User) Notifiable() bool {
	if strings.TrimSpace(u.Email) == "" {
		return false
	}
	_, err := mail.ParseAddress(u.Email)
	return err == nil
}
