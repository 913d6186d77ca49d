package ticket

import "context"

// Store describes the persistence operations the guard layer requires.
type Store interface {
	Tickets() TicketStore
	Comments() CommentStore
	Pins() PinStore
}

// TicketStore manages tickets.
type TicketStore interface {
	Create(ctx context.Context, t *Ticket) error
	// Projection fetches the ownership fields without materializing the
	// full row. Missing tickets report ErrNotFound.
	Projection(ctx context.Context, id int64) (Projection, error)
	Get(ctx context.Context, id int64) (Ticket, error)
	Update(ctx context.Context, t *Ticket) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Ticket, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Ticket, error)
	// AssigneeExists validates an assignment target.
	AssigneeExists(ctx context.Context, userID int64) (bool, error)
}

// CommentStore manages ticket comments.
type CommentStore interface {
	Create(ctx context.Context, c *Comment) error
	// Projection joins the comment with its parent ticket's assignee.
	Projection(ctx context.Context, id int64) (CommentProjection, error)
	Get(ctx context.Context, id int64) (Comment, error)
	UpdateText(ctx context.Context, id int64, text string) error
	Delete(ctx context.Context, id int64) error
	ListByTicket(ctx context.Context, ticketID int64) ([]Comment, error)
}

// PinStore manages per-user kanban pins.
type PinStore interface {
	ListTicketIDs(ctx context.Context, userID int64) ([]int64, error)
	Add(ctx context.Context, pin Pin) error
	Remove(ctx context.Context, pin Pin) error
	// Replace reconciles the user's pin set to exactly ticketIDs.
	Replace(ctx context.Context, userID int64, ticketIDs []int64) error
}
