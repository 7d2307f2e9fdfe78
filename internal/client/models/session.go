// Package models defines client-side data models used by the foliokeeper CLI.
package models

import "time"

// Session is the locally persisted login. At most one exists at a time.
type Session struct {
	Email        string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// User is the profile returned by /auth/me. Email and FullName are set for
// self-hosted accounts, Username and Groups for delegated ones.
type User struct {
	Sub      string   `json:"sub"`
	Email    string   `json:"email"`
	FullName *string  `json:"full_name"`
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

type AuthStatus struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user"`
}

type ResetResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token"`
}
