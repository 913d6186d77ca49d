package access

import "testing"

var allActions = []Action{ActionRead, ActionUpdate, ActionDelete, ActionComment}

func TestAdminAlwaysAllowedOnTickets(t *testing.T) {
	for _, action := range allActions {
		if !CanAccess(RoleAdmin, 1, 99, 42, action) {
			t.Fatalf("admin denied %s", action)
		}
		if !CanAccessComment(RoleAdmin, 1, 99, 42, action) {
			t.Fatalf("admin denied comment %s", action)
		}
	}
}

func TestOwnerFullAccess(t *testing.T) {
	const uid = 7
	for _, action := range allActions {
		if !CanAccess(RoleCustomer, uid, uid, NoAssignee, action) {
			t.Fatalf("owner denied %s", action)
		}
	}
}

func TestAssignmentGrantsReadAndCommentOnly(t *testing.T) {
	// Ticket T1: owned by 7, later assigned to 9.
	const owner, assignee = 7, 9

	if CanAccess(RoleCustomer, assignee, owner, NoAssignee, ActionRead) {
		t.Fatal("stranger could read an unassigned ticket")
	}

	for _, tc := range []struct {
		action Action
		want   bool
	}{
		{ActionRead, true},
		{ActionComment, true},
		{ActionUpdate, false},
		{ActionDelete, false},
	} {
		if got := CanAccess(RoleCustomer, assignee, owner, assignee, tc.action); got != tc.want {
			t.Fatalf("assignee %s: got %v, want %v", tc.action, got, tc.want)
		}
	}
}

func TestAgentHasNoImplicitPrivilege(t *testing.T) {
	if CanAccess(RoleAgent, 3, 7, NoAssignee, ActionRead) {
		t.Fatal("agent role alone must not grant access")
	}
	if !CanAccess(RoleAgent, 3, 7, 3, ActionRead) {
		t.Fatal("assigned agent should read the ticket")
	}
}

func TestCommentPolicy(t *testing.T) {
	const author, assignee, stranger = 5, 9, 11

	// Author edits and deletes own comment.
	if !CanAccessComment(RoleCustomer, author, author, NoAssignee, ActionUpdate) {
		t.Fatal("author denied edit")
	}
	if !CanAccessComment(RoleCustomer, author, author, NoAssignee, ActionDelete) {
		t.Fatal("author denied delete")
	}

	// Ticket assignee may delete but not edit someone else's comment.
	if CanAccessComment(RoleCustomer, assignee, author, assignee, ActionUpdate) {
		t.Fatal("assignment must not grant comment edit")
	}
	if !CanAccessComment(RoleCustomer, assignee, author, assignee, ActionDelete) {
		t.Fatal("assignee should be able to delete a comment on their ticket")
	}

	if CanAccessComment(RoleCustomer, stranger, author, assignee, ActionDelete) {
		t.Fatal("stranger deleted a comment")
	}
}

func TestPinsAreUserPrivate(t *testing.T) {
	if !CanAccessPin(4, 4) {
		t.Fatal("owner denied own pin")
	}
	if CanAccessPin(1, 4) {
		t.Fatal("pins must not be shared, even with admins")
	}
	if CanAccessPin(0, 0) {
		t.Fatal("zero actor must never match")
	}
}

func TestTicketIndexIsAdminOnly(t *testing.T) {
	if !CanListAllTickets(RoleAdmin) {
		t.Fatal("admin denied index")
	}
	if CanListAllTickets(RoleAgent) || CanListAllTickets(RoleCustomer) {
		t.Fatal("index must be admin only")
	}
}

func TestParseRoleDefaultsToLeastPrivilege(t *testing.T) {
	cases := map[string]Role{
		"Admin":      RoleAdmin,
		"admin":      RoleAdmin,
		" AGENT ":    RoleAgent,
		"customer":   RoleCustomer,
		"root":       RoleCustomer,
		"superadmin": RoleCustomer,
		"":           RoleCustomer,
	}
	for input, want := range cases {
		if got := ParseRole(input); got != want {
			t.Fatalf("ParseRole(%q)=%q, want %q", input, got, want)
		}
	}
}
