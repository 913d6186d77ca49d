package pg

import (
	"context"
	"database/sql"
	"errors"

	"ticketdesk.org/internal/ticket"
)

type ticketStore Store

func (s *ticketStore) Create(ctx context.Context, t *ticket.Ticket) error {
	return s.db.QueryRowContext(ctx,
		`insert into tickets(title, description, status, owner_id, assigned_to_id, created_at)
		 values ($1, $2, $3, $4, $5, $6)
		 returning id`,
		t.Title, t.Description, string(t.Status), t.OwnerID, nullableID(t.AssignedToID), t.CreatedAt,
	).Scan(&t.ID)
}

func (s *ticketStore) Projection(ctx context.Context, id int64) (ticket.Projection, error) {
	var (
		p        ticket.Projection
		assigned sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`select id, owner_id, assigned_to_id from tickets where id=$1`, id,
	).Scan(&p.ID, &p.OwnerID, &assigned)
	if errors.Is(err, sql.ErrNoRows) {
		return ticket.Projection{}, ticket.ErrNotFound
	}
	if err != nil {
		return ticket.Projection{}, err
	}
	p.AssignedToID = assigned.Int64
	return p, nil
}

func (s *ticketStore) Get(ctx context.Context, id int64) (ticket.Ticket, error) {
	var (
		t        ticket.Ticket
		status   string
		assigned sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`select id, title, description, status, owner_id, assigned_to_id, created_at
		 from tickets where id=$1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &status, &t.OwnerID, &assigned, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ticket.Ticket{}, ticket.ErrNotFound
	}
	if err != nil {
		return ticket.Ticket{}, err
	}
	t.Status = ticket.Status(status)
	t.AssignedToID = assigned.Int64
	return t, nil
}

func (s *ticketStore) Update(ctx context.Context, t *ticket.Ticket) error {
	res, err := s.db.ExecContext(ctx,
		`update tickets set title=$1, description=$2, status=$3, assigned_to_id=$4 where id=$5`,
		t.Title, t.Description, string(t.Status), nullableID(t.AssignedToID), t.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *ticketStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from tickets where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *ticketStore) List(ctx context.Context) ([]ticket.Ticket, error) {
	return s.scanTickets(ctx,
		`select id, title, description, status, owner_id, assigned_to_id, created_at
		 from tickets order by created_at desc`)
}

func (s *ticketStore) ListByOwner(ctx context.Context, ownerID int64) ([]ticket.Ticket, error) {
	return s.scanTickets(ctx,
		`select id, title, description, status, owner_id, assigned_to_id, created_at
		 from tickets where owner_id=$1 order by created_at desc`, ownerID)
}

func (s *ticketStore) AssigneeExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where id=$1)`, userID,
	).Scan(&exists)
	return exists, err
}

func (s *ticketStore) scanTickets(ctx context.Context, query string, args ...any) ([]ticket.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ticket.Ticket
	for rows.Next() {
		var (
			t        ticket.Ticket
			status   string
			assigned sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &status, &t.OwnerID, &assigned, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Status = ticket.Status(status)
		t.AssignedToID = assigned.Int64
		out = append(out, t)
	}
	return out, rows.Err()
}

type commentStore Store

func (s *commentStore) Create(ctx context.Context, c *ticket.Comment) error {
	return s.db.QueryRowContext(ctx,
		`insert into comments(ticket_id, author_id, body, created_at)
		 values ($1, $2, $3, $4)
		 returning id`,
		c.TicketID, c.AuthorID, c.Text, c.CreatedAt,
	).Scan(&c.ID)
}

func (s *commentStore) Projection(ctx context.Context, id int64) (ticket.CommentProjection, error) {
	var (
		p        ticket.CommentProjection
		assigned sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`select c.id, c.ticket_id, c.author_id, t.assigned_to_id
		 from comments c join tickets t on t.id = c.ticket_id
		 where c.id=$1`, id,
	).Scan(&p.ID, &p.TicketID, &p.AuthorID, &assigned)
	if errors.Is(err, sql.ErrNoRows) {
		return ticket.CommentProjection{}, ticket.ErrNotFound
	}
	if err != nil {
		return ticket.CommentProjection{}, err
	}
	p.TicketAssignedID = assigned.Int64
	return p, nil
}

func (s *commentStore) Get(ctx context.Context, id int64) (ticket.Comment, error) {
	var c ticket.Comment
	err := s.db.QueryRowContext(ctx,
		`select id, ticket_id, author_id, body, created_at from comments where id=$1`, id,
	).Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Text, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ticket.Comment{}, ticket.ErrNotFound
	}
	return c, err
}

func (s *commentStore) UpdateText(ctx context.Context, id int64, text string) error {
	res, err := s.db.ExecContext(ctx, `update comments set body=$1 where id=$2`, text, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *commentStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from comments where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *commentStore) ListByTicket(ctx context.Context, ticketID int64) ([]ticket.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, ticket_id, author_id, body, created_at
		 from comments where ticket_id=$1 order by created_at`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ticket.Comment
	for rows.Next() {
		var c ticket.Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type pinStore Store

func (s *pinStore) ListTicketIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`select ticket_id from kanban_pins where user_id=$1 order by ticket_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *pinStore) Add(ctx context.Context, pin ticket.Pin) error {
	_, err := s.db.ExecContext(ctx,
		`insert into kanban_pins(user_id, ticket_id) values ($1, $2)
		 on conflict (user_id, ticket_id) do nothing`,
		pin.UserID, pin.TicketID)
	return err
}

func (s *pinStore) Remove(ctx context.Context, pin ticket.Pin) error {
	_, err := s.db.ExecContext(ctx,
		`delete from kanban_pins where user_id=$1 and ticket_id=$2`,
		pin.UserID, pin.TicketID)
	return err
}

func (s *pinStore) Replace(ctx context.Context, userID int64, ticketIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from kanban_pins where user_id=$1`, userID); err != nil {
		return err
	}
	for _, id := range ticketIDs {
		if _, err := tx.ExecContext(ctx,
			`insert into kanban_pins(user_id, ticket_id) values ($1, $2)`, userID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ticket.ErrNotFound
	}
	return nil
}
