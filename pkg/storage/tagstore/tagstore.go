// Package tagstore is the production-shaped Tag Store of spec §3/§4.6:
// partitioned by (kind, group, year, bucket), clustered by
// (timestamp DESC, item), queried through a cursor pager that survives
// ties on the clustering key. Grounded on common/pkg/database/client's
// squirrel-built SelectApiKeys (column list, limit/offset, Eq filter)
// and on jmoiron/sqlx for scanning rows into structs without manual
// field-by-field Scan calls.
package tagstore

import (
	"context"
	"database/sql"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// Cursor is the opaque pagination token of spec §9's CursorPager
// capability: the clustering key's (timestamp, item) pair, so a page
// boundary falling mid-tie resumes correctly instead of skipping or
// repeating rows.
type Cursor struct {
	Timestamp time.Time
	Item      string
}

// Store is the squirrel+sqlx backed Tag Store.
type Store struct {
	db *sqlx.DB
}

func Open(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

func (s *Store) checkReady() error {
	if s.db == nil {
		return thoriumerrors.NewInternalError("db has not been initialized")
	}
	return nil
}

// row mirrors types.Tag's columns for sqlx.StructScan.
type row struct {
	Kind      string    `db:"kind"`
	GroupName string    `db:"group_name"`
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	Item      string    `db:"item"`
	Timestamp time.Time `db:"ts"`
	Year      int       `db:"year"`
	Bucket    int       `db:"bucket"`
}

func toTag(r row) types.Tag {
	return types.Tag{Kind: types.TagKind(r.Kind), Group: r.GroupName, Key: r.Key, Value: r.Value, Item: r.Item, Timestamp: r.Timestamp, Year: r.Year, Bucket: r.Bucket}
}

// InsertTag implements pkg/tags.Store over a real table, relying on the
// (kind, group, year, bucket, key, value, item) primary key for
// idempotency via ON CONFLICT DO NOTHING.
func (s *Store) InsertTag(t types.Tag) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	q, args, err := sqrl.Insert("tags").
		Columns("kind", "group_name", "key", "value", "item", "ts", "year", "bucket").
		Values(string(t.Kind), t.Group, t.Key, t.Value, t.Item, t.Timestamp, t.Year, t.Bucket).
		Suffix("ON CONFLICT (kind, group_name, year, bucket, key, value, item) DO NOTHING").
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return thoriumerrors.Wrap(err, "building tag insert")
	}
	_, err = s.db.ExecContext(context.Background(), q, args...)
	if err != nil {
		return thoriumerrors.Wrap(err, "inserting tag")
	}
	return nil
}

func (s *Store) DeleteTag(kind types.TagKind, group, key, value, item string) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	q, args, err := sqrl.Delete("tags").
		Where(sqrl.Eq{"kind": string(kind), "group_name": group, "key": key, "value": value, "item": item}).
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return thoriumerrors.Wrap(err, "building tag delete")
	}
	_, err = s.db.ExecContext(context.Background(), q, args...)
	return err
}

func (s *Store) ListTags(kind types.TagKind, item string, groups map[string]struct{}) ([]types.Tag, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	groupNames := make([]string, 0, len(groups))
	for g := range groups {
		groupNames = append(groupNames, g)
	}
	q, args, err := sqrl.Select("kind", "group_name", "key", "value", "item", "ts", "year", "bucket").
		From("tags").
		Where(sqrl.Eq{"kind": string(kind), "item": item, "group_name": groupNames}).
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return nil, thoriumerrors.Wrap(err, "building tag list query")
	}
	var rows []row
	if err := s.db.SelectContext(context.Background(), &rows, q, args...); err != nil {
		return nil, thoriumerrors.Wrap(err, "listing tags")
	}
	out := make([]types.Tag, 0, len(rows))
	for _, r := range rows {
		out = append(out, toTag(r))
	}
	return out, nil
}

func (s *Store) Query(kind types.TagKind, group, key, value string) ([]types.Tag, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	eq := sqrl.Eq{"kind": string(kind), "group_name": group, "key": key}
	if value != "" {
		eq["value"] = value
	}
	q, args, err := sqrl.Select("kind", "group_name", "key", "value", "item", "ts", "year", "bucket").
		From("tags").Where(eq).PlaceholderFormat(sqrl.Dollar).ToSql()
	if err != nil {
		return nil, thoriumerrors.Wrap(err, "building tag query")
	}
	var rows []row
	if err := s.db.SelectContext(context.Background(), &rows, q, args...); err != nil {
		return nil, thoriumerrors.Wrap(err, "querying tags")
	}
	out := make([]types.Tag, 0, len(rows))
	for _, r := range rows {
		out = append(out, toTag(r))
	}
	return out, nil
}

// Page implements spec §9's CursorPager capability over the clustering
// key (timestamp DESC, item): results ordered newest-first, the cursor
// is the last row's (timestamp, item) pair, and a tie on timestamp is
// broken by item so no row is skipped or repeated across a page
// boundary.
func (s *Store) Page(kind types.TagKind, group string, after *Cursor, limit int) ([]types.Tag, *Cursor, error) {
	if err := s.checkReady(); err != nil {
		return nil, nil, err
	}
	builder := sqrl.Select("kind", "group_name", "key", "value", "item", "ts", "year", "bucket").
		From("tags").
		Where(sqrl.Eq{"kind": string(kind), "group_name": group}).
		OrderBy("ts DESC", "item DESC").
		Limit(uint64(limit))
	if after != nil {
		builder = builder.Where(sqrl.Or{
			sqrl.Lt{"ts": after.Timestamp},
			sqrl.And{sqrl.Eq{"ts": after.Timestamp}, sqrl.Lt{"item": after.Item}},
		})
	}
	q, args, err := builder.PlaceholderFormat(sqrl.Dollar).ToSql()
	if err != nil {
		return nil, nil, thoriumerrors.Wrap(err, "building tag page query")
	}
	var rows []row
	if err := s.db.SelectContext(context.Background(), &rows, q, args...); err != nil {
		return nil, nil, thoriumerrors.Wrap(err, "paging tags")
	}
	out := make([]types.Tag, 0, len(rows))
	for _, r := range rows {
		out = append(out, toTag(r))
	}
	var next *Cursor
	if len(rows) > 0 {
		last := rows[len(rows)-1]
		next = &Cursor{Timestamp: last.Timestamp, Item: last.Item}
	}
	return out, next, nil
}
