// Package access decides, per request, whether an actor may act on a
// resource. Decisions are pure functions of (role, actor id, owner id,
// assignee id) and the requested action; request metadata never enters the
// evaluation.
package access

import "strings"

// Role is the coarse privilege tier carried in the session.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

// ParseRole maps a stored or token-carried role string onto a known role.
// Unrecognized values resolve to the least-privileged role, never to admin.
func ParseRole(s string) Role {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleAgent:
		return RoleAgent
	default:
		return RoleCustomer
	}
}

// Action is an operation an actor attempts against a resource.
type Action string

const (
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionComment Action = "comment"
)

// NoAssignee marks a ticket without an assigned handler.
const NoAssignee int64 = 0

// relation tags how the actor stands to the resource.
type relation int

const (
	relOwner relation = iota
	relAssignee
)

// Policy tables. Admin is short-circuited before table lookup; the tables
// enumerate which relations grant each action to everyone else.
var (
	ticketPolicy = map[Action][]relation{
		ActionRead:    {relOwner, relAssignee},
		ActionUpdate:  {relOwner},
		ActionDelete:  {relOwner},
		ActionComment: {relOwner, relAssignee},
	}

	// Comment ownership is the comment author; the assignee relation refers
	// to the parent ticket. Assignment grants comment deletion but not edit.
	commentPolicy = map[Action][]relation{
		ActionRead:   {relOwner, relAssignee},
		ActionUpdate: {relOwner},
		ActionDelete: {relOwner, relAssignee},
	}
)

// CanAccess evaluates the ticket policy: may the actor perform action on a
// ticket owned by ownerID and assigned to assignedID (NoAssignee when
// unassigned)?
func CanAccess(role Role, actorID, ownerID, assignedID int64, action Action) bool {
	return evaluate(ticketPolicy, role, actorID, ownerID, assignedID, action)
}

// CanAccessComment evaluates the comment policy. authorID is the comment's
// author; ticketAssignedID is the parent ticket's assignee.
func CanAccessComment(role Role, actorID, authorID, ticketAssignedID int64, action Action) bool {
	return evaluate(commentPolicy, role, actorID, authorID, ticketAssignedID, action)
}

// CanAccessPin reports whether the actor may touch a kanban pin. Pins are
// user-private: ownership is the only grant, with no admin override.
func CanAccessPin(actorID, pinOwnerID int64) bool {
	return actorID != 0 && actorID == pinOwnerID
}

// CanListAllTickets gates the administrative ticket index.
func CanListAllTickets(role Role) bool {
	return role == RoleAdmin
}

func evaluate(policy map[Action][]relation, role Role, actorID, ownerID, assignedID int64, action Action) bool {
	if actorID == 0 {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	for _, rel := range policy[action] {
		switch rel {
		case relOwner:
			if actorID == ownerID {
				return true
			}
		case relAssignee:
			if assignedID != NoAssignee && actorID == assignedID {
				return true
			}
		}
	}
	return false
}
