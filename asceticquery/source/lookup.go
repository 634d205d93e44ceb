package source

import (
	"context"
	"reflect"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/fieldpath"
)

// Lookup resolves a to-many relation stored in a PostgreSQL table. Fetch
// loads the children of a whole chunk of parents with a single
// "WHERE foreign_key IN (...)" query, to be used with plan.BatchHop.
type Lookup struct {
	table      *Table
	foreignKey string
	parentKey  fieldpath.Path
}

// NewLookup reads table rows whose foreignKey column equals the value at
// parentKey of a parent. Children of one parent keep the order of key.
func NewLookup(querier Querier, table, foreignKey, key string, parentKey fieldpath.Path, opts ...TableOption) *Lookup {
	return &Lookup{
		table:      NewTable(querier, table, key, opts...),
		foreignKey: foreignKey,
		parentKey:  parentKey,
	}
}

func (l *Lookup) Name() string {
	return l.table.table
}

func (l *Lookup) ImplicatedDataset() string {
	return l.table.dataset
}

func (l *Lookup) query(keys []any) (string, []any, error) {
	query := psql.Select(l.table.columns...).From(l.table.table).Where(sq.Eq{l.foreignKey: keys})
	if l.table.where != nil {
		query = query.Where(l.table.where)
	}
	return query.OrderBy(l.foreignKey, l.table.key).ToSql()
}

// Fetch returns one collection per parent. Foreign key values are matched
// against parent keys by equality of the decoded values, so both must decode
// to the same Go type.
func (l *Lookup) Fetch(ctx context.Context, parents []any) ([][]any, error) {
	groups := make([][]any, len(parents))
	parentKeys := make([]any, len(parents))
	var keys []any
	seen := map[any]bool{}
	for i, parent := range parents {
		key, err := l.parentKey.Get(parent)
		if err != nil {
			return nil, err
		}
		if key == nil {
			continue
		}
		if !reflect.ValueOf(key).Comparable() {
			return nil, errors.Errorf("parent key %T is not comparable", key)
		}
		parentKeys[i] = key
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return groups, nil
	}

	sql, args, err := l.query(keys)
	if err != nil {
		return nil, errors.Wrapf(err, "build lookup query of %s", l.table.table)
	}
	rows, err := l.table.querier.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", l.table.table)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", l.table.table)
	}

	children := map[any][]any{}
	for _, r := range records {
		fk := r[l.foreignKey]
		if fk == nil {
			continue
		}
		if !reflect.ValueOf(fk).Comparable() {
			return nil, errors.Errorf("foreign key %T of %s is not comparable", fk, l.table.table)
		}
		children[fk] = append(children[fk], r)
	}
	for i, key := range parentKeys {
		if key != nil {
			groups[i] = children[key]
		}
	}
	return groups, nil
}
