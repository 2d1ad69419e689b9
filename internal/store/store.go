package store

import (
	"context"

	"ticketapp/internal/models"
)

type CreateTicketInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
}

// UpdateTicketInput carries a partial update: only non-nil fields are merged
// onto the stored ticket.
type UpdateTicketInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
}

type TicketStore interface {
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	GetTicket(ctx context.Context, id int64) (models.Ticket, bool, error)
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, error)
	UpdateTicket(ctx context.Context, id int64, input UpdateTicketInput) (models.Ticket, bool, error)
	DeleteTicket(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (models.TicketStats, error)
}
