package sqlite

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// Row is a column -> value map used by the bulk operations. Slices and maps
// are stored as canonical JSON, bools as 0/1 and times as RFC3339.
type Row map[string]any

// tableColumns whitelists what the bulk operations may touch.
var tableColumns = map[string][]string{
	"works": {
		"slug", "url", "provider_id", "name", "authors", "scanlators", "genres", "synopsis",
		"status", "background_color", "borders_crop", "reading_mode", "scaling", "sort_order",
		"last_read", "last_update",
	},
	"chapters": {
		"work_id", "slug", "url", "title", "scanlators", "pages", "scrambled", "date", "rank",
		"downloaded", "recent", "read", "last_page_read_index",
	},
	"downloads":        {"chapter_id", "status", "percent", "errors", "date"},
	"categories":       {"label"},
	"categories_works": {"category_id", "work_id"},
}

func checkColumns(table string, cols []string) error {
	allowed, ok := tableColumns[table]
	if !ok {
		return errors.Validationf("unknown table %q", table)
	}
	for _, c := range cols {
		if c != "id" && !slices.Contains(allowed, c) {
			return errors.Validationf("unknown column %s.%s", table, c)
		}
	}
	return nil
}

// rowColumns returns the sorted column set shared by every row.
func rowColumns(table string, rows []Row) ([]string, error) {
	cols := slices.Sorted(maps.Keys(rows[0]))
	if len(cols) == 0 {
		return nil, errors.Validation("row has no columns")
	}
	for _, r := range rows[1:] {
		if !slices.Equal(cols, slices.Sorted(maps.Keys(r))) {
			return nil, errors.Validation("rows must share the same columns")
		}
	}
	return cols, checkColumns(table, cols)
}

func columnValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return boolInt(x), nil
	case time.Time:
		return formatTime(x), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return formatTime(*x), nil
	case *int:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case *bool:
		if x == nil {
			return nil, nil
		}
		return boolInt(*x), nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Map, reflect.Struct:
		if reflect.ValueOf(v).Kind() == reflect.Slice && reflect.ValueOf(v).IsNil() {
			return nil, nil
		}
		return canonicalJSON(v)
	case reflect.String:
		return reflect.ValueOf(v).String(), nil
	default:
		return v, nil
	}
}

// dateColumns hold calendar dates rather than timestamps.
var dateColumns = map[string]bool{"chapters.date": true}

func rowArgs(table string, r Row, cols []string) ([]any, error) {
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		if dateColumns[table+"."+c] {
			args = append(args, dateValue(r[c]))
			continue
		}
		v, err := columnValue(r[c])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		args = append(args, v)
	}
	return args, nil
}

func dateValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(dateLayout)
	case *time.Time:
		if d := nullDate(x); d.Valid {
			return d.String
		}
		return nil
	default:
		return v
	}
}

// InsertRows inserts rows with one prepared statement and returns their ids.
func (q *Queries) InsertRows(ctx context.Context, table string, rows []Row) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols, err := rowColumns(table, rows)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	stmt, err := q.q.PrepareContext(ctx, query)
	if err != nil {
		return nil, mapError(err, table)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		args, err := rowArgs(table, r, cols)
		if err != nil {
			return nil, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, mapError(err, table)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, mapError(err, table)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpdateRows sets rows[i] on the row with id ids[i] using one prepared statement.
func (q *Queries) UpdateRows(ctx context.Context, table string, ids []int64, rows []Row) error {
	if len(ids) != len(rows) {
		return errors.Validationf("got %d ids for %d rows", len(ids), len(rows))
	}
	if len(rows) == 0 {
		return nil
	}
	cols, err := rowColumns(table, rows)
	if err != nil {
		return err
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	stmt, err := q.q.PrepareContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", ")))
	if err != nil {
		return mapError(err, table)
	}
	defer stmt.Close()

	for i, r := range rows {
		args, err := rowArgs(table, r, cols)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, append(args, ids[i])...); err != nil {
			return mapError(err, table)
		}
	}
	return nil
}

// DeleteRows deletes rows by id using one prepared statement.
func (q *Queries) DeleteRows(ctx context.Context, table string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	matches := make([]Row, len(ids))
	for i, id := range ids {
		matches[i] = Row{"id": id}
	}
	return q.DeleteRowsWhere(ctx, table, matches)
}

// DeleteRowsWhere deletes rows matching every column of each match.
func (q *Queries) DeleteRowsWhere(ctx context.Context, table string, matches []Row) (int64, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	cols, err := rowColumns(table, matches)
	if err != nil {
		return 0, err
	}

	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = c + " = ?"
	}
	stmt, err := q.q.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", table, strings.Join(conds, " AND ")))
	if err != nil {
		return 0, mapError(err, table)
	}
	defer stmt.Close()

	var total int64
	for _, m := range matches {
		args, err := rowArgs(table, m, cols)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, mapError(err, table)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Bulk variants on Store wrap the statement in a single transaction.

// InsertRows inserts rows in one transaction.
func (s *Store) InsertRows(ctx context.Context, table string, rows []Row) ([]int64, error) {
	var ids []int64
	err := s.InTx(ctx, func(q *Queries) error {
		var err error
		ids, err = q.InsertRows(ctx, table, rows)
		return err
	})
	return ids, err
}

// UpdateRows updates rows in one transaction.
func (s *Store) UpdateRows(ctx context.Context, table string, ids []int64, rows []Row) error {
	return s.InTx(ctx, func(q *Queries) error {
		return q.UpdateRows(ctx, table, ids, rows)
	})
}

// DeleteRows deletes rows in one transaction.
func (s *Store) DeleteRows(ctx context.Context, table string, ids []int64) (int64, error) {
	var n int64
	err := s.InTx(ctx, func(q *Queries) error {
		var err error
		n, err = q.DeleteRows(ctx, table, ids)
		return err
	})
	return n, err
}

// DeleteRowsWhere deletes matching rows in one transaction.
func (s *Store) DeleteRowsWhere(ctx context.Context, table string, matches []Row) (int64, error) {
	var n int64
	err := s.InTx(ctx, func(q *Queries) error {
		var err error
		n, err = q.DeleteRowsWhere(ctx, table, matches)
		return err
	})
	return n, err
}
