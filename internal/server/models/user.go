// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID             string
	Email          string
	HashedPassword string
	FullName       *string
	IsActive       bool
	IsVerified     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
