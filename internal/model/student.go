// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — plain records with no behaviour
// beyond a few small helper methods. The `json:"..."` struct tags control how
// each record is serialized by encoding/json when it crosses the API boundary.
package model

import "time"

// Student represents a registered library member.
//
// StudentID is the externally assigned identifier (roll number, card number)
// and is the key every other part of the system uses to refer to a student —
// loans reference it, not a surrogate row id. It is UNIQUE in the database.
//
// Phone, Department and Year are optional. We use empty strings as the
// zero value rather than nullable pointers — simpler to work with and safe
// to display.
type Student struct {
	StudentID  string    `json:"studentId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Department string    `json:"department,omitempty"`
	Year       string    `json:"year,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
