package ticket

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"ticketdesk.org/internal/access"
	"ticketdesk.org/internal/auth"
)

// memStore is an in-memory Store for guard tests.
type memStore struct {
	tickets  map[int64]Ticket
	comments map[int64]Comment
	pins     map[int64][]int64
	users    map[int64]bool
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		tickets:  make(map[int64]Ticket),
		comments: make(map[int64]Comment),
		pins:     make(map[int64][]int64),
		users:    make(map[int64]bool),
		nextID:   1,
	}
}

func (m *memStore) Tickets() TicketStore   { return (*memTickets)(m) }
func (m *memStore) Comments() CommentStore { return (*memComments)(m) }
func (m *memStore) Pins() PinStore         { return (*memPins)(m) }

type memTickets memStore

func (m *memTickets) Create(_ context.Context, t *Ticket) error {
	t.ID = m.nextID
	m.nextID++
	m.tickets[t.ID] = *t
	return nil
}

func (m *memTickets) Projection(_ context.Context, id int64) (Projection, error) {
	t, ok := m.tickets[id]
	if !ok {
		return Projection{}, ErrNotFound
	}
	return Projection{ID: t.ID, OwnerID: t.OwnerID, AssignedToID: t.AssignedToID}, nil
}

func (m *memTickets) Get(_ context.Context, id int64) (Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

func (m *memTickets) Update(_ context.Context, t *Ticket) error {
	if _, ok := m.tickets[t.ID]; !ok {
		return ErrNotFound
	}
	m.tickets[t.ID] = *t
	return nil
}

func (m *memTickets) Delete(_ context.Context, id int64) error {
	if _, ok := m.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(m.tickets, id)
	return nil
}

func (m *memTickets) List(context.Context) ([]Ticket, error) {
	out := make([]Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		out = append(out, t)
	}
	return out, nil
}

func (m *memTickets) ListByOwner(_ context.Context, ownerID int64) ([]Ticket, error) {
	var out []Ticket
	for _, t := range m.tickets {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTickets) AssigneeExists(_ context.Context, userID int64) (bool, error) {
	return m.users[userID], nil
}

type memComments memStore

func (m *memComments) Create(_ context.Context, c *Comment) error {
	c.ID = m.nextID
	m.nextID++
	m.comments[c.ID] = *c
	return nil
}

func (m *memComments) Projection(_ context.Context, id int64) (CommentProjection, error) {
	c, ok := m.comments[id]
	if !ok {
		return CommentProjection{}, ErrNotFound
	}
	t := m.tickets[c.TicketID]
	return CommentProjection{ID: c.ID, TicketID: c.TicketID, AuthorID: c.AuthorID, TicketAssignedID: t.AssignedToID}, nil
}

func (m *memComments) Get(_ context.Context, id int64) (Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return Comment{}, ErrNotFound
	}
	return c, nil
}

func (m *memComments) UpdateText(_ context.Context, id int64, text string) error {
	c, ok := m.comments[id]
	if !ok {
		return ErrNotFound
	}
	c.Text = text
	m.comments[id] = c
	return nil
}

func (m *memComments) Delete(_ context.Context, id int64) error {
	if _, ok := m.comments[id]; !ok {
		return ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

func (m *memComments) ListByTicket(_ context.Context, ticketID int64) ([]Comment, error) {
	var out []Comment
	for _, c := range m.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memPins memStore

func (m *memPins) ListTicketIDs(_ context.Context, userID int64) ([]int64, error) {
	return append([]int64(nil), m.pins[userID]...), nil
}

func (m *memPins) Add(_ context.Context, pin Pin) error {
	for _, id := range m.pins[pin.UserID] {
		if id == pin.TicketID {
			return nil
		}
	}
	m.pins[pin.UserID] = append(m.pins[pin.UserID], pin.TicketID)
	return nil
}

func (m *memPins) Remove(_ context.Context, pin Pin) error {
	kept := m.pins[pin.UserID][:0]
	for _, id := range m.pins[pin.UserID] {
		if id != pin.TicketID {
			kept = append(kept, id)
		}
	}
	m.pins[pin.UserID] = kept
	return nil
}

func (m *memPins) Replace(_ context.Context, userID int64, ticketIDs []int64) error {
	m.pins[userID] = append([]int64(nil), ticketIDs...)
	return nil
}

func sessionFor(id int64, role access.Role) auth.Session {
	return auth.Session{UserID: id, Role: role}
}

func newGuard(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestOwnershipAndAssignmentScenario(t *testing.T) {
	svc, store := newGuard(t)
	ctx := context.Background()

	owner := sessionFor(7, access.RoleCustomer)
	other := sessionFor(9, access.RoleCustomer)
	store.users[9] = true

	created, err := svc.Create(ctx, owner, CreateTicket{Title: "printer on fire"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.OwnerID != 7 {
		t.Fatalf("owner not stamped from actor: %+v", created)
	}

	// Unrelated user: ticket is invisible, not forbidden.
	if _, _, err := svc.Get(ctx, other, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger read: got %v, want ErrNotFound", err)
	}

	// Assign to user 9: read and comment open up, delete stays closed.
	if _, err := svc.Update(ctx, owner, created.ID, UpdateTicket{Title: created.Title, Status: StatusOpen, AssignedToID: 9}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, _, err := svc.Get(ctx, other, created.ID); err != nil {
		t.Fatalf("assignee read: %v", err)
	}
	if _, err := svc.AddComment(ctx, other, created.ID, "looking into it"); err != nil {
		t.Fatalf("assignee comment: %v", err)
	}
	if err := svc.Delete(ctx, other, created.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("assignee delete: got %v, want ErrForbidden", err)
	}

	// Owner deletes fine.
	if err := svc.Delete(ctx, owner, created.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestAdminIndexOnly(t *testing.T) {
	svc, _ := newGuard(t)
	ctx := context.Background()

	if _, err := svc.ListAll(ctx, sessionFor(1, access.RoleAdmin)); err != nil {
		t.Fatalf("admin index: %v", err)
	}
	for _, role := range []access.Role{access.RoleAgent, access.RoleCustomer} {
		if _, err := svc.ListAll(ctx, sessionFor(2, role)); !errors.Is(err, ErrForbidden) {
			t.Fatalf("%s index: got %v, want ErrForbidden", role, err)
		}
	}
}

func TestUpdateConcealsFromNonOwners(t *testing.T) {
	svc, _ := newGuard(t)
	ctx := context.Background()

	owner := sessionFor(7, access.RoleCustomer)
	created, err := svc.Create(ctx, owner, CreateTicket{Title: "t"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Edit lookups filter by ownership, so a denied edit looks like absence.
	stranger := sessionFor(8, access.RoleCustomer)
	if _, err := svc.Update(ctx, stranger, created.ID, UpdateTicket{Title: "x", Status: StatusOpen}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger edit: got %v, want ErrNotFound", err)
	}

	// Admin passes.
	if _, err := svc.Update(ctx, sessionFor(1, access.RoleAdmin), created.ID, UpdateTicket{Title: "x", Status: StatusClosed}); err != nil {
		t.Fatalf("admin edit: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, store := newGuard(t)
	ctx := context.Background()
	actor := sessionFor(7, access.RoleCustomer)

	if _, err := svc.Create(ctx, actor, CreateTicket{Title: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank title: got %v", err)
	}
	if _, err := svc.Create(ctx, actor, CreateTicket{Title: "t", Status: "weird"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad status: got %v", err)
	}
	if _, err := svc.Create(ctx, actor, CreateTicket{Title: "t", AssignedToID: 404}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing assignee: got %v", err)
	}

	store.users[5] = true
	created, err := svc.Create(ctx, actor, CreateTicket{Title: "t", AssignedToID: 5})
	if err != nil {
		t.Fatalf("valid create: %v", err)
	}
	if created.Status != StatusOpen {
		t.Fatalf("default status: %s", created.Status)
	}
}

func TestCommentPolicyThroughGuard(t *testing.T) {
	svc, store := newGuard(t)
	ctx := context.Background()

	owner := sessionFor(7, access.RoleCustomer)
	assignee := sessionFor(9, access.RoleCustomer)
	stranger := sessionFor(11, access.RoleCustomer)
	store.users[9] = true

	created, err := svc.Create(ctx, owner, CreateTicket{Title: "t", AssignedToID: 9})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.AddComment(ctx, stranger, created.ID, "hi"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger comment: got %v, want ErrForbidden", err)
	}
	if _, err := svc.AddComment(ctx, owner, created.ID, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty comment: got %v", err)
	}

	c, err := svc.AddComment(ctx, owner, created.ID, "  original  ")
	if err != nil {
		t.Fatalf("owner comment: %v", err)
	}
	if c.Text != "original" {
		t.Fatalf("text not trimmed: %q", c.Text)
	}

	// Assignee may delete the owner's comment but not edit it.
	if _, err := svc.EditComment(ctx, assignee, c.ID, "rewrite"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("assignee edit: got %v, want ErrForbidden", err)
	}
	if err := svc.DeleteComment(ctx, assignee, c.ID); err != nil {
		t.Fatalf("assignee delete: %v", err)
	}

	// Author edits their own comment.
	c2, err := svc.AddComment(ctx, assignee, created.ID, "note")
	if err != nil {
		t.Fatalf("assignee comment: %v", err)
	}
	edited, err := svc.EditComment(ctx, assignee, c2.ID, "revised note")
	if err != nil {
		t.Fatalf("author edit: %v", err)
	}
	if edited.Text != "revised note" {
		t.Fatalf("edit not applied: %q", edited.Text)
	}
	if err := svc.DeleteComment(ctx, stranger, c2.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger comment delete: got %v, want ErrForbidden", err)
	}
}

func TestCommentTextCapped(t *testing.T) {
	svc, _ := newGuard(t)
	ctx := context.Background()
	owner := sessionFor(7, access.RoleCustomer)

	created, err := svc.Create(ctx, owner, CreateTicket{Title: "t"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c, err := svc.AddComment(ctx, owner, created.ID, strings.Repeat("a", maxCommentLength+500))
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(c.Text) != maxCommentLength {
		t.Fatalf("text length %d, want %d", len(c.Text), maxCommentLength)
	}

	// The cap counts characters, so multi-byte text keeps the same number
	// of runes and stays valid UTF-8.
	c, err = svc.AddComment(ctx, owner, created.ID, strings.Repeat("й", maxCommentLength+500))
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if got := utf8.RuneCountInString(c.Text); got != maxCommentLength {
		t.Fatalf("rune count %d, want %d", got, maxCommentLength)
	}
	if !utf8.ValidString(c.Text) {
		t.Fatal("capped text is not valid UTF-8")
	}

	edited, err := svc.EditComment(ctx, owner, c.ID, strings.Repeat("語", maxCommentLength+1))
	if err != nil {
		t.Fatalf("EditComment: %v", err)
	}
	if got := utf8.RuneCountInString(edited.Text); got != maxCommentLength {
		t.Fatalf("edited rune count %d, want %d", got, maxCommentLength)
	}
	if !utf8.ValidString(edited.Text) {
		t.Fatal("edited capped text is not valid UTF-8")
	}
}

func TestPinsScopedToActor(t *testing.T) {
	svc, store := newGuard(t)
	ctx := context.Background()

	alice := sessionFor(4, access.RoleCustomer)
	bob := sessionFor(5, access.RoleCustomer)

	if err := svc.AddPin(ctx, alice, 100); err != nil {
		t.Fatalf("AddPin: %v", err)
	}
	if err := svc.AddPin(ctx, alice, 100); err != nil {
		t.Fatalf("duplicate AddPin: %v", err)
	}
	if err := svc.AddPin(ctx, bob, 200); err != nil {
		t.Fatalf("AddPin: %v", err)
	}

	pins, err := svc.Pins(ctx, alice)
	if err != nil {
		t.Fatalf("Pins: %v", err)
	}
	if len(pins) != 1 || pins[0] != 100 {
		t.Fatalf("alice pins: %v", pins)
	}

	// Save reconciles with dedupe and drops non-positive ids.
	if err := svc.SavePins(ctx, alice, []int64{300, 300, 0, -1, 400}); err != nil {
		t.Fatalf("SavePins: %v", err)
	}
	pins, _ = svc.Pins(ctx, alice)
	if len(pins) != 2 || pins[0] != 300 || pins[1] != 400 {
		t.Fatalf("reconciled pins: %v", pins)
	}

	// Bob's board untouched.
	if got := store.pins[5]; len(got) != 1 || got[0] != 200 {
		t.Fatalf("bob pins: %v", got)
	}

	if err := svc.RemovePin(ctx, alice, 300); err != nil {
		t.Fatalf("RemovePin: %v", err)
	}
	pins, _ = svc.Pins(ctx, alice)
	if len(pins) != 1 || pins[0] != 400 {
		t.Fatalf("after remove: %v", pins)
	}
}
