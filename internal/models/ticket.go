package models

import "time"

// Ticket field names match the persisted JSON under the "tickets" key, so
// objects written by earlier versions of the app remain readable.
type Ticket struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusClosed     = "closed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type TicketStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"inProgress"`
	Closed     int `json:"closed"`
}

// CountStats tallies one collection snapshot, so counts always agree with
// the tickets they were computed from.
func CountStats(tickets []Ticket) TicketStats {
	stats := TicketStats{Total: len(tickets)}
	for _, ticket := range tickets {
		switch ticket.Status {
		case StatusOpen:
			stats.Open++
		case StatusInProgress:
			stats.InProgress++
		case StatusClosed:
			stats.Closed++
		}
	}
	return stats
}
