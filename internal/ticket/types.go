package ticket

import "time"

// Status is a ticket's workflow state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// ValidStatus reports whether s is a known workflow state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Ticket is a tracked issue. OwnerID is the creator; AssignedToID is the
// designated handler, zero when unassigned.
type Ticket struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	OwnerID      int64     `json:"owner_id"`
	AssignedToID int64     `json:"assigned_to_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comment is a note on a ticket. AuthorID owns the comment.
type Comment struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	AuthorID  int64     `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Pin marks a ticket placed on a user's private kanban board.
type Pin struct {
	UserID   int64 `json:"user_id"`
	TicketID int64 `json:"ticket_id"`
}

// Projection is the minimal slice of a ticket needed for an access
// decision, fetched before the full resource is materialized.
type Projection struct {
	ID           int64
	OwnerID      int64
	AssignedToID int64
}

// CommentProjection carries the fields an access decision on a comment
// needs: the author and the parent ticket's assignee.
type CommentProjection struct {
	ID               int64
	TicketID         int64
	AuthorID         int64
	TicketAssignedID int64
}

// maxCommentLength caps stored comment text.
const maxCommentLength = 2000
