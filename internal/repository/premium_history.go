package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// ListPremiumActionsParams filters a page of a user's action history.
// ActionType and Since are optional.
type ListPremiumActionsParams struct {
	UserID     uuid.UUID
	ActionType string
	Since      sql.NullTime
	Limit      uint64
	Offset     uint64
}

// ListPremiumActions returns the newest actions first.
//
// Hand-written rather than generated because the filters are optional.
func (q *Queries) ListPremiumActions(ctx context.Context, arg ListPremiumActionsParams) ([]PremiumAction, error) {
	query, args, err := buildListPremiumActions(arg)
	if err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PremiumAction
	for rows.Next() {
		var i PremiumAction
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.ActionType,
			&i.Metadata,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func buildListPremiumActions(arg ListPremiumActionsParams) (string, []interface{}, error) {
	builder := sq.Select("id", "user_id", "action_type", "metadata", "created_at").
		From("premium_actions").
		Where(sq.Eq{"user_id": arg.UserID}).
		PlaceholderFormat(sq.Dollar)

	if arg.ActionType != "" {
		builder = builder.Where(sq.Eq{"action_type": arg.ActionType})
	}
	if arg.Since.Valid {
		builder = builder.Where(sq.GtOrEq{"created_at": arg.Since.Time})
	}

	return builder.
		OrderBy("created_at DESC", "id").
		Limit(arg.Limit).
		Offset(arg.Offset).
		ToSql()
}
