package model

import "errors"

// Member is a person known to the system, resolved from the chat platform.
type Member struct {
	UserID                string `json:"user_id"`
	DisplayName           string `json:"display_name"`
	IsAdmin               bool   `json:"is_admin"`
	OpenID                string `json:"open_id,omitempty"`
	UnionID               string `json:"union_id,omitempty"`
	CardMessageID         string `json:"card_message_id,omitempty"`
	CardMessageCreateTime int64  `json:"card_message_create_time,omitempty"`
	PasswordHash          string `json:"-"`
}

// Holds reports whether the member is the holder recorded on an item.
// Holders are stored by display name; the user id is accepted as well.
func (m *Member) Holds(holder string) bool {
	if holder == "" {
		return false
	}
	return holder == m.DisplayName || holder == m.UserID
}

// MinPasswordLength is the minimum length for API login passwords.
const MinPasswordLength = 8

// ValidatePassword checks password requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
