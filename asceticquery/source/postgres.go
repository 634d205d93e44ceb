package source

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/plan"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Querier is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Table reads a PostgreSQL table page by page with LIMIT/OFFSET
// pagination ordered by key. Rows become map[string]any keyed by column.
type Table struct {
	querier  Querier
	table    string
	key      string
	columns  []string
	where    sq.Sqlizer
	pageSize uint64
	dataset  string
}

type TableOption func(*Table)

func WithColumns(columns ...string) TableOption {
	return func(t *Table) {
		t.columns = columns
	}
}

// WithWhere restricts the rows read, e.g. sq.Eq{"active": true}.
func WithWhere(where sq.Sqlizer) TableOption {
	return func(t *Table) {
		t.where = where
	}
}

func WithPageSize(size uint64) TableOption {
	return func(t *Table) {
		if size > 0 {
			t.pageSize = size
		}
	}
}

func NewTable(querier Querier, table, key string, opts ...TableOption) *Table {
	t := &Table{
		querier:  querier,
		table:    table,
		key:      key,
		columns:  []string{"*"},
		pageSize: 256,
		dataset:  "postgres:" + table,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table) pageQuery(offset uint64) (string, []any, error) {
	query := psql.Select(t.columns...).From(t.table)
	if t.where != nil {
		query = query.Where(t.where)
	}
	return query.OrderBy(t.key).Limit(t.pageSize).Offset(offset).ToSql()
}

func (t *Table) readPage(ctx context.Context, offset uint64) ([]any, error) {
	sql, args, err := t.pageQuery(offset)
	if err != nil {
		return nil, errors.Wrapf(err, "build page query of %s", t.table)
	}
	rows, err := t.querier.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", t.table)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", t.table)
	}
	items := make([]any, len(records))
	for i, r := range records {
		items[i] = r
	}
	return items, nil
}

func (t *Table) Iterator(ctx context.Context) (chunk.Iterator[any], error) {
	var offset uint64
	done := false
	return chunk.FromFunc(func(ctx context.Context) ([]any, bool, error) {
		if done {
			return nil, false, nil
		}
		items, err := t.readPage(ctx, offset)
		if err != nil {
			return nil, false, err
		}
		offset += uint64(len(items))
		if uint64(len(items)) < t.pageSize {
			done = true
		}
		return items, len(items) > 0, nil
	}, func() error {
		done = true
		return nil
	}), nil
}

func (t *Table) ImplicatedDataset() string {
	return t.dataset
}

func (t *Table) Optimize(p *plan.Plan, _ option.Option[*plan.HopPlan]) *plan.Plan {
	return plan.NewPlan(t, p.Derivations()...)
}
