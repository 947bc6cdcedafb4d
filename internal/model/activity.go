// Package model holds the domain types shared across the backend.
package model

import "time"

// ActivityRecord is one logged hub or collaborator event.
type ActivityRecord struct {
	ID        int64     `json:"id"`
	Module    string    `json:"module"`
	Event     string    `json:"event"`
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
