package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ticketapp/internal/kvstore"
	"ticketapp/internal/models"
	"ticketapp/internal/store"
)

const (
	ticketsKey = "tickets"
	seededKey  = "tickets_seeded"
)

// Store implements store.TicketStore over a KV backend. The collection is
// read whole and written whole on every mutation; the mutex keeps the
// read-modify-write sequence at-most-one-writer.
type Store struct {
	mu  sync.Mutex
	kv  kvstore.KV
	now func() time.Time
}

func NewStore(kv kvstore.KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

func (s *Store) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) GetTicket(ctx context.Context, id int64) (models.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.load(ctx)
	if err != nil {
		return models.Ticket{}, false, err
	}
	for _, ticket := range tickets {
		if ticket.ID == id {
			return ticket, true, nil
		}
	}
	return models.Ticket{}, false, nil
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.load(ctx)
	if err != nil {
		return models.Ticket{}, err
	}

	status := input.Status
	if status == "" {
		status = models.StatusOpen
	}
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	now := s.now().UTC()
	ticket := models.Ticket{
		ID:          nextID(tickets),
		Title:       input.Title,
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tickets = append(tickets, ticket)
	if err := s.save(ctx, tickets); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) UpdateTicket(ctx context.Context, id int64, input store.UpdateTicketInput) (models.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.load(ctx)
	if err != nil {
		return models.Ticket{}, false, err
	}

	for i, ticket := range tickets {
		if ticket.ID != id {
			continue
		}
		if input.Title != nil {
			ticket.Title = *input.Title
		}
		if input.Description != nil {
			ticket.Description = *input.Description
		}
		if input.Status != nil {
			ticket.Status = *input.Status
		}
		if input.Priority != nil {
			ticket.Priority = *input.Priority
		}
		updated := s.now().UTC()
		// The wall clock may not have advanced since the last mutation;
		// updatedAt must still strictly increase.
		if !updated.After(ticket.UpdatedAt) {
			updated = ticket.UpdatedAt.Add(time.Millisecond)
		}
		ticket.UpdatedAt = updated
		tickets[i] = ticket
		if err := s.save(ctx, tickets); err != nil {
			return models.Ticket{}, false, err
		}
		return ticket, true, nil
	}
	return models.Ticket{}, false, nil
}

func (s *Store) DeleteTicket(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	remaining := tickets[:0:0]
	for _, ticket := range tickets {
		if ticket.ID != id {
			remaining = append(remaining, ticket)
		}
	}
	if len(remaining) == len(tickets) {
		return false, nil
	}
	if err := s.save(ctx, remaining); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Stats(ctx context.Context) (models.TicketStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.load(ctx)
	if err != nil {
		return models.TicketStats{}, err
	}
	return models.CountStats(tickets), nil
}

// load returns the persisted collection, seeding it with the sample tickets
// exactly once per backend. The sentinel key keeps a collection that was
// emptied by deletion from being reseeded.
func (s *Store) load(ctx context.Context) ([]models.Ticket, error) {
	raw, ok, err := s.kv.Get(ctx, ticketsKey)
	if err != nil {
		return nil, err
	}

	var tickets []models.Ticket
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &tickets); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", kvstore.ErrCorrupt, ticketsKey, err)
		}
	}
	if len(tickets) > 0 {
		return tickets, nil
	}

	_, seeded, err := s.kv.Get(ctx, seededKey)
	if err != nil {
		return nil, err
	}
	if seeded {
		return tickets, nil
	}

	tickets = sampleTickets(s.now().UTC())
	if err := s.save(ctx, tickets); err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, seededKey, "1"); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) save(ctx context.Context, tickets []models.Ticket) error {
	data, err := json.Marshal(tickets)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, ticketsKey, string(data))
}

// nextID hands out max+1 so identifiers never collide within the current
// collection, unlike the wall-clock ids of the original client.
func nextID(tickets []models.Ticket) int64 {
	var max int64
	for _, ticket := range tickets {
		if ticket.ID > max {
			max = ticket.ID
		}
	}
	return max + 1
}

func sampleTickets(now time.Time) []models.Ticket {
	return []models.Ticket{
		{
			ID:          1,
			Title:       "Login page not responsive",
			Description: "The login page is not displaying correctly on mobile devices",
			Status:      models.StatusOpen,
			Priority:    models.PriorityHigh,
			CreatedAt:   now.Add(-24 * time.Hour),
			UpdatedAt:   now.Add(-24 * time.Hour),
		},
		{
			ID:          2,
			Title:       "Dashboard statistics loading slowly",
			Description: "The dashboard is taking more than 5 seconds to load statistics",
			Status:      models.StatusInProgress,
			Priority:    models.PriorityMedium,
			CreatedAt:   now.Add(-48 * time.Hour),
			UpdatedAt:   now.Add(-12 * time.Hour),
		},
		{
			ID:          3,
			Title:       "User profile update issue",
			Description: "Users are unable to update their profile information",
			Status:      models.StatusClosed,
			Priority:    models.PriorityLow,
			CreatedAt:   now.Add(-72 * time.Hour),
			UpdatedAt:   now.Add(-24 * time.Hour),
		},
	}
}
