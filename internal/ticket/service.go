package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticketdesk.org/internal/access"
	"ticketdesk.org/internal/auth"
)

// Service guards every ticket, comment and pin operation: it fetches the
// minimal ownership projection, consults the access evaluator, and only
// then touches the full resource through the store.
//
// Denials on read paths are shaped as ErrNotFound so existence leaks
// nothing. Denials on delete, which the actor reaches only after a read
// already confirmed existence, are explicit ErrForbidden.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the guard layer over the given store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ticket: store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateTicket is the input for ticket creation.
type CreateTicket struct {
	Title        string
	Description  string
	Status       Status
	AssignedToID int64
}

// UpdateTicket is the input for ticket edits.
type UpdateTicket struct {
	Title        string
	Description  string
	Status       Status
	AssignedToID int64
}

// ListAll returns every ticket. The administrative index is admin-only,
// unconditionally.
func (s *Service) ListAll(ctx context.Context, actor auth.Session) ([]Ticket, error) {
	if !access.CanListAllTickets(actor.Role) {
		return nil, ErrForbidden
	}
	return s.store.Tickets().List(ctx)
}

// ListMine returns the actor's own tickets; the scope is the query filter
// itself, no post-filtering.
func (s *Service) ListMine(ctx context.Context, actor auth.Session) ([]Ticket, error) {
	return s.store.Tickets().ListByOwner(ctx, actor.UserID)
}

// Get returns a ticket with its comments. Tickets outside the actor's
// visibility report ErrNotFound, indistinguishable from absence.
func (s *Service) Get(ctx context.Context, actor auth.Session, id int64) (Ticket, []Comment, error) {
	proj, err := s.store.Tickets().Projection(ctx, id)
	if err != nil {
		return Ticket{}, nil, err
	}
	if !access.CanAccess(actor.Role, actor.UserID, proj.OwnerID, proj.AssignedToID, access.ActionRead) {
		return Ticket{}, nil, ErrNotFound
	}
	t, err := s.store.Tickets().Get(ctx, id)
	if err != nil {
		return Ticket{}, nil, err
	}
	comments, err := s.store.Comments().ListByTicket(ctx, id)
	if err != nil {
		return Ticket{}, nil, err
	}
	return t, comments, nil
}

// Create opens a new ticket owned by the actor.
func (s *Service) Create(ctx context.Context, actor auth.Session, in CreateTicket) (Ticket, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return Ticket{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Status == "" {
		in.Status = StatusOpen
	}
	if !ValidStatus(in.Status) {
		return Ticket{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	if err := s.checkAssignee(ctx, in.AssignedToID); err != nil {
		return Ticket{}, err
	}

	t := Ticket{
		Title:        in.Title,
		Description:  strings.TrimSpace(in.Description),
		Status:       in.Status,
		OwnerID:      actor.UserID,
		AssignedToID: in.AssignedToID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Tickets().Create(ctx, &t); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// Update edits a ticket. Assignment alone does not grant edit, so the
// evaluator only passes owners and admins; everyone else sees ErrNotFound,
// matching the ownership filter an edit lookup applies.
func (s *Service) Update(ctx context.Context, actor auth.Session, id int64, in UpdateTicket) (Ticket, error) {
	proj, err := s.store.Tickets().Projection(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	if !access.CanAccess(actor.Role, actor.UserID, proj.OwnerID, proj.AssignedToID, access.ActionUpdate) {
		return Ticket{}, ErrNotFound
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return Ticket{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !ValidStatus(in.Status) {
		return Ticket{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	if err := s.checkAssignee(ctx, in.AssignedToID); err != nil {
		return Ticket{}, err
	}

	t, err := s.store.Tickets().Get(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	t.Title = in.Title
	t.Description = strings.TrimSpace(in.Description)
	t.Status = in.Status
	t.AssignedToID = in.AssignedToID
	if err := s.store.Tickets().Update(ctx, &t); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// Delete removes a ticket. The confirmation step already showed the actor
// the ticket, so a policy denial here is an explicit ErrForbidden rather
// than concealment.
func (s *Service) Delete(ctx context.Context, actor auth.Session, id int64) error {
	proj, err := s.store.Tickets().Projection(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanAccess(actor.Role, actor.UserID, proj.OwnerID, proj.AssignedToID, access.ActionDelete) {
		return ErrForbidden
	}
	return s.store.Tickets().Delete(ctx, id)
}

// AddComment attaches a comment to a ticket the actor may comment on:
// owner, assignee or admin.
func (s *Service) AddComment(ctx context.Context, actor auth.Session, ticketID int64, text string) (Comment, error) {
	proj, err := s.store.Tickets().Projection(ctx, ticketID)
	if err != nil {
		return Comment{}, err
	}
	if !access.CanAccess(actor.Role, actor.UserID, proj.OwnerID, proj.AssignedToID, access.ActionComment) {
		return Comment{}, ErrForbidden
	}

	text, err = normalizeCommentText(text)
	if err != nil {
		return Comment{}, err
	}

	c := Comment{
		TicketID:  ticketID,
		AuthorID:  actor.UserID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Comments().Create(ctx, &c); err != nil {
		return Comment{}, err
	}
	return c, nil
}

// EditComment rewrites a comment's text. Only the author or an admin may
// edit; ticket assignment does not extend to comment edits.
func (s *Service) EditComment(ctx context.Context, actor auth.Session, commentID int64, text string) (Comment, error) {
	proj, err := s.store.Comments().Projection(ctx, commentID)
	if err != nil {
		return Comment{}, err
	}
	if !access.CanAccessComment(actor.Role, actor.UserID, proj.AuthorID, proj.TicketAssignedID, access.ActionUpdate) {
		return Comment{}, ErrForbidden
	}

	text, err = normalizeCommentText(text)
	if err != nil {
		return Comment{}, err
	}

	if err := s.store.Comments().UpdateText(ctx, commentID, text); err != nil {
		return Comment{}, err
	}
	return s.store.Comments().Get(ctx, commentID)
}

// normalizeCommentText trims and caps comment text. The cap counts
// characters, not bytes, so multi-byte text is never cut mid-rune.
func normalizeCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: comment cannot be empty", ErrInvalidInput)
	}
	if runes := []rune(text); len(runes) > maxCommentLength {
		text = string(runes[:maxCommentLength])
	}
	return text, nil
}

// DeleteComment removes a comment: author, parent ticket's assignee, or
// admin.
func (s *Service) DeleteComment(ctx context.Context, actor auth.Session, commentID int64) error {
	proj, err := s.store.Comments().Projection(ctx, commentID)
	if err != nil {
		return err
	}
	if !access.CanAccessComment(actor.Role, actor.UserID, proj.AuthorID, proj.TicketAssignedID, access.ActionDelete) {
		return ErrForbidden
	}
	return s.store.Comments().Delete(ctx, commentID)
}

// Pins returns the ticket ids pinned to the actor's board.
func (s *Service) Pins(ctx context.Context, actor auth.Session) ([]int64, error) {
	return s.store.Pins().ListTicketIDs(ctx, actor.UserID)
}

// AddPin pins a ticket to the actor's own board.
func (s *Service) AddPin(ctx context.Context, actor auth.Session, ticketID int64) error {
	pin := Pin{UserID: actor.UserID, TicketID: ticketID}
	if !access.CanAccessPin(actor.UserID, pin.UserID) {
		return ErrForbidden
	}
	return s.store.Pins().Add(ctx, pin)
}

// RemovePin unpins a ticket from the actor's own board.
func (s *Service) RemovePin(ctx context.Context, actor auth.Session, ticketID int64) error {
	pin := Pin{UserID: actor.UserID, TicketID: ticketID}
	if !access.CanAccessPin(actor.UserID, pin.UserID) {
		return ErrForbidden
	}
	return s.store.Pins().Remove(ctx, pin)
}

// SavePins reconciles the actor's board to exactly the given set, deduped.
func (s *Service) SavePins(ctx context.Context, actor auth.Session, ticketIDs []int64) error {
	if !access.CanAccessPin(actor.UserID, actor.UserID) {
		return ErrForbidden
	}
	seen := make(map[int64]struct{}, len(ticketIDs))
	deduped := make([]int64, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	return s.store.Pins().Replace(ctx, actor.UserID, deduped)
}

func (s *Service) checkAssignee(ctx context.Context, userID int64) error {
	if userID == access.NoAssignee {
		return nil
	}
	ok, err := s.store.Tickets().AssigneeExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: assignee %d does not exist", ErrInvalidInput, userID)
	}
	return nil
}
