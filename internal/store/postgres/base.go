package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/loqui/chat-server-go/internal/pagination"
)

func uuidArray(ids []uuid.UUID) interface{} {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}

// table describes one entity's relation: its name, primary key column and
// the whitelist mapping exposed sort fields to columns. Anything not in the
// whitelist is rejected before it reaches a query.
type table struct {
	name    string
	idCol   string
	sorts   map[string]string
	defSort string
}

func (t table) sortCol(s pagination.Sort) (string, error) {
	field := s.Field
	if field == "" {
		field = t.defSort
	}
	col, ok := t.sorts[field]
	if !ok {
		return "", pagination.ErrUnsupportedSort
	}
	return col, nil
}

// handleNotFound converts sql.ErrNoRows into a nil result: a missing row
// is not an error condition for Find* operations.
func handleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return result, nil
}

func getOne[E any](ctx context.Context, q queryer, query string, args ...interface{}) (*E, error) {
	var e E
	err := q.GetContext(ctx, &e, query, args...)
	return handleNotFound(&e, err)
}

func selectMany[E any](ctx context.Context, q queryer, query string, args ...interface{}) ([]*E, error) {
	var rows []E
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrap(err)
	}
	out := make([]*E, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func execRows(ctx context.Context, q queryer, query string, args ...interface{}) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrap(err)
	}
	return res.RowsAffected()
}

func findByID[E any](ctx context.Context, q queryer, t table, id interface{}) (*E, error) {
	return getOne[E](ctx, q, fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1`, t.name, t.idCol), id)
}

func findAll[E any](ctx context.Context, q queryer, t table) ([]*E, error) {
	col, _ := t.sortCol(pagination.Sort{})
	return selectMany[E](ctx, q, fmt.Sprintf(
		`SELECT * FROM %s ORDER BY %s ASC, %s ASC`, t.name, col, t.idCol))
}

func existsByID(ctx context.Context, q queryer, t table, id interface{}) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists, fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, t.name, t.idCol), id)
	if err != nil {
		return false, wrap(err)
	}
	return exists, nil
}

func countAll(ctx context.Context, q queryer, t table) (int64, error) {
	var n int64
	if err := q.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.name)); err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func deleteByID(ctx context.Context, q queryer, t table, id interface{}) error {
	_, err := execRows(ctx, q, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.name, t.idCol), id)
	return err
}

func deleteAll(ctx context.Context, q queryer, t table) error {
	_, err := execRows(ctx, q, fmt.Sprintf(`DELETE FROM %s`, t.name))
	return err
}

// findPage selects one page under keyset or offset pagination. Extra WHERE
// fragments must number their placeholders $1..$len(args). The has-next
// answer always comes from a one-extra-row probe; a count query runs only
// when the request asks for a total. A cursor whose anchor row no longer
// matches the filtered set is invalid.
func findPage[E any](
	ctx context.Context,
	q queryer,
	t table,
	req pagination.Request,
	s pagination.Sort,
	key func(*E) string,
	where []string,
	args []interface{},
) (*pagination.Page[*E], error) {
	req = req.Normalize()
	col, err := t.sortCol(s)
	if err != nil {
		return nil, err
	}

	dir, cmp := "ASC", ">"
	if s.Direction == pagination.Desc {
		dir, cmp = "DESC", "<"
	}

	conds := append([]string{}, where...)
	queryArgs := append([]interface{}{}, args...)

	if req.After != "" {
		anchor, err := pagination.DecodeCursor(req.After)
		if err != nil {
			return nil, err
		}

		existsConds := append(append([]string{}, where...),
			fmt.Sprintf("%s = $%d", t.idCol, len(queryArgs)+1))
		var anchorOK bool
		err = q.GetContext(ctx, &anchorOK, fmt.Sprintf(
			`SELECT EXISTS (SELECT 1 FROM %s WHERE %s)`,
			t.name, strings.Join(existsConds, " AND ")),
			append(append([]interface{}{}, args...), anchor)...)
		if err != nil {
			return nil, wrap(err)
		}
		if !anchorOK {
			return nil, pagination.ErrInvalidCursor
		}

		conds = append(conds, fmt.Sprintf(
			"(%s, %s) %s (SELECT %s, %s FROM %s WHERE %s = $%d)",
			col, t.idCol, cmp, col, t.idCol, t.name, t.idCol, len(queryArgs)+1))
		queryArgs = append(queryArgs, anchor)
	}

	whereSQL := ""
	if len(conds) > 0 {
		whereSQL = " WHERE " + strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT * FROM %s%s ORDER BY %s %s, %s %s LIMIT %d`,
		t.name, whereSQL, col, dir, t.idCol, dir, req.Limit+1)
	if req.After == "" && req.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", req.Offset)
	}

	items, err := selectMany[E](ctx, q, query, queryArgs...)
	if err != nil {
		return nil, err
	}

	var page pagination.Page[*E]
	if len(items) > req.Limit {
		page.HasNext = true
		items = items[:req.Limit]
	}
	page.Items = items

	if req.WithCount {
		countWhere := ""
		if len(where) > 0 {
			countWhere = " WHERE " + strings.Join(where, " AND ")
		}
		var total int64
		if err := q.GetContext(ctx, &total, fmt.Sprintf(
			`SELECT COUNT(*) FROM %s%s`, t.name, countWhere), args...); err != nil {
			return nil, wrap(err)
		}
		page.Total = &total
	}

	if page.HasNext && len(page.Items) > 0 {
		page.NextCursor = pagination.EncodeCursor(key(page.Items[len(page.Items)-1]))
	}
	return &page, nil
}
