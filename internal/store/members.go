package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
)

const memberColumns = `user_id, display_name, is_admin, open_id, union_id,
	card_message_id, card_message_create_time, password_hash`

func scanMember(row interface{ Scan(...any) error }) (*model.Member, error) {
	m := &model.Member{}
	var openID, unionID, cardID, hash sql.NullString
	var cardTime sql.NullInt64
	if err := row.Scan(&m.UserID, &m.DisplayName, &m.IsAdmin, &openID, &unionID, &cardID, &cardTime, &hash); err != nil {
		return nil, err
	}
	m.OpenID = openID.String
	m.UnionID = unionID.String
	m.CardMessageID = cardID.String
	m.CardMessageCreateTime = cardTime.Int64
	m.PasswordHash = hash.String
	return m, nil
}

// UpsertMember creates the member or updates its directory fields. The
// password hash is left untouched on update.
func UpsertMember(ctx context.Context, q db.Querier, m *model.Member) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO members (user_id, display_name, is_admin, open_id, union_id,
		                      card_message_id, card_message_create_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     display_name = excluded.display_name,
		     is_admin = excluded.is_admin,
		     open_id = excluded.open_id,
		     union_id = excluded.union_id,
		     card_message_id = excluded.card_message_id,
		     card_message_create_time = excluded.card_message_create_time`,
		m.UserID, m.DisplayName, m.IsAdmin, nullString(m.OpenID), nullString(m.UnionID),
		nullString(m.CardMessageID), m.CardMessageCreateTime,
	)
	if err != nil {
		return fmt.Errorf("upserting member: %w", err)
	}
	return nil
}

// GetMember returns a member by user ID.
func GetMember(ctx context.Context, q db.Querier, userID string) (*model.Member, error) {
	m, err := scanMember(q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE user_id = ?`, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting member: %w", err)
	}
	return m, nil
}

// ListMembers returns all members ordered by user ID.
func ListMembers(ctx context.Context, q db.Querier) ([]model.Member, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// SetMemberPassword stores a bcrypt hash for API logins.
func SetMemberPassword(ctx context.Context, q db.Querier, userID, passwordHash string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE members SET password_hash = ? WHERE user_id = ?`, passwordHash, userID,
	)
	if err != nil {
		return fmt.Errorf("setting member password: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return model.Errorf(model.KindNotFound, "member %s not found", userID)
	}
	return nil
}
