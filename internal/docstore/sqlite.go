package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// dateKey wraps timestamps inside stored JSON bodies.
const dateKey = "$date"

// SQLiteStore implements Store on the single documents table created by the
// migrations package. Each row holds one JSON body keyed by collection and
// internal identifier.
type SQLiteStore struct {
	db    *sql.DB
	newID func() string
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, newID: uuid.NewString}
}

// Find returns every document in coll matching f.
func (s *SQLiteStore) Find(ctx context.Context, coll string, f *Filter, opts FindOptions) ([]Document, error) {
	where, args, err := whereClause(coll, f)
	if err != nil {
		return nil, err
	}

	query := "SELECT id, body FROM documents WHERE " + where
	if opts.SortField != "" {
		if err := ValidateField(opts.SortField); err != nil {
			return nil, err
		}
		dir := "ASC"
		if opts.Descending {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s, rowid %s", fieldExpr(opts.SortField), dir, dir)
	} else {
		query += " ORDER BY rowid"
	}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", coll, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", coll, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", coll, err)
	}
	return docs, nil
}

// FindOne returns the first document matching f, or ErrNotFound.
func (s *SQLiteStore) FindOne(ctx context.Context, coll string, f *Filter) (Document, error) {
	docs, err := s.Find(ctx, coll, f, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// Insert stores doc under a fresh UUID unless it already carries an internal identifier.
func (s *SQLiteStore) Insert(ctx context.Context, coll string, doc Document) (Document, error) {
	id, body, err := s.prepareInsert(doc)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)",
		coll, id, body,
	); err != nil {
		return nil, mapSQLiteError(fmt.Sprintf("inserting into %s", coll), err)
	}

	return decodeBody(id, body)
}

// InsertMany stores docs in a single transaction.
func (s *SQLiteStore) InsertMany(ctx context.Context, coll string, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		id, body, err := s.prepareInsert(doc)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, coll, id, body); err != nil {
			return 0, mapSQLiteError(fmt.Sprintf("inserting document %d into %s", i, coll), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing insert: %w", err)
	}
	return len(docs), nil
}

// Update merges patch into the first matching document inside a transaction.
func (s *SQLiteStore) Update(ctx context.Context, coll string, f *Filter, patch Document) (Document, error) {
	where, args, err := whereClause(coll, f)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	row := tx.QueryRowContext(ctx, "SELECT id, body FROM documents WHERE "+where+" ORDER BY rowid LIMIT 1", args...)
	current, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s for update: %w", coll, err)
	}

	id := current.InternalID()
	merged := current.Merge(patch.Without(IDField))
	body, err := encodeBody(merged)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET body = ? WHERE collection = ? AND id = ?",
		body, coll, id,
	); err != nil {
		return nil, mapSQLiteError(fmt.Sprintf("updating %s", coll), err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	return decodeBody(id, body)
}

// Delete removes every document matching f.
func (s *SQLiteStore) Delete(ctx context.Context, coll string, f *Filter) (int64, error) {
	where, args, err := whereClause(coll, f)
	if err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", coll, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted rows: %w", err)
	}
	return n, nil
}

// Summarize computes the aggregate in a single SQL pass.
func (s *SQLiteStore) Summarize(ctx context.Context, coll string, f *Filter, valueField, timeField string) (Summary, error) {
	if err := ValidateField(valueField); err != nil {
		return Summary{}, err
	}
	if err := ValidateField(timeField); err != nil {
		return Summary{}, err
	}
	where, args, err := whereClause(coll, f)
	if err != nil {
		return Summary{}, err
	}

	numeric := fmt.Sprintf(
		"CASE WHEN json_type(body, '$.%[1]s') IN ('integer', 'real') THEN json_extract(body, '$.%[1]s') END",
		valueField,
	)
	stamp := fmt.Sprintf(`json_extract(body, '$.%s."%s"')`, timeField, dateKey)

	query := fmt.Sprintf(
		"SELECT COUNT(*), AVG(%[1]s), MIN(%[1]s), MAX(%[1]s), MIN(%[2]s), MAX(%[2]s) FROM documents WHERE %[3]s",
		numeric, stamp, where,
	)

	var (
		count             int64
		avg, minV, maxV   sql.NullFloat64
		firstRaw, lastRaw sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count, &avg, &minV, &maxV, &firstRaw, &lastRaw); err != nil {
		return Summary{}, fmt.Errorf("summarizing %s: %w", coll, err)
	}

	sum := Summary{Count: count}
	if avg.Valid {
		sum.Avg, sum.Min, sum.Max = &avg.Float64, &minV.Float64, &maxV.Float64
	}
	if firstRaw.Valid {
		first, err := time.Parse(TimeLayout, firstRaw.String)
		if err != nil {
			return Summary{}, fmt.Errorf("parsing first timestamp: %w", err)
		}
		last, err := time.Parse(TimeLayout, lastRaw.String)
		if err != nil {
			return Summary{}, fmt.Errorf("parsing last timestamp: %w", err)
		}
		ft, lt := NewTime(first), NewTime(last)
		sum.First, sum.Last = &ft, &lt
	}
	return sum, nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging sqlite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) prepareInsert(doc Document) (id, body string, err error) {
	id = doc.InternalID()
	if id == "" {
		id = s.newID()
	}
	body, err = encodeBody(doc)
	if err != nil {
		return "", "", err
	}
	return id, body, nil
}

// fieldExpr is the SQL expression reading a top-level field. Timestamps are
// read through their $date wrapper so they compare as fixed-width text.
// The migrations create expression indexes on this exact text.
func fieldExpr(field string) string {
	return fmt.Sprintf(`COALESCE(json_extract(body, '$.%[1]s."%[2]s"'), json_extract(body, '$.%[1]s'))`, field, dateKey)
}

// whereClause renders a filter as SQL with positional arguments.
func whereClause(coll string, f *Filter) (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}

	clauses := []string{"collection = ?"}
	args := []any{coll}

	if id, ok := f.InternalID(); ok {
		clauses = append(clauses, "id = ?")
		args = append(args, id)
	}
	for _, c := range f.Conditions() {
		clauses = append(clauses, fmt.Sprintf("%s %s ?", fieldExpr(c.Field), c.Op))
		args = append(args, sqlValue(c.Value))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func sqlValue(v any) any {
	switch t := v.(type) {
	case Time:
		return t.String()
	case time.Time:
		return NewTime(t).String()
	default:
		return v
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (Document, error) {
	var id, body string
	if err := row.Scan(&id, &body); err != nil {
		return nil, err
	}
	return decodeBody(id, body)
}

// encodeBody serialises doc without its internal identifier, wrapping
// timestamps. The result is text: the documents table is STRICT and rejects
// BLOB values in body.
func encodeBody(doc Document) (string, error) {
	body, err := json.Marshal(encodeValue(map[string]any(doc.Without(IDField))))
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	return string(body), nil
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case Time:
		return map[string]any{dateKey: t.String()}
	case *Time:
		if t == nil {
			return nil
		}
		return map[string]any{dateKey: t.String()}
	case time.Time:
		return map[string]any{dateKey: NewTime(t).String()}
	case Document:
		return encodeValue(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = encodeValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = encodeValue(vv)
		}
		return out
	default:
		return v
	}
}

// decodeBody parses a stored body, unwrapping timestamps and attaching id.
func decodeBody(id, body string) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}
	doc := make(Document, len(raw)+1)
	for k, v := range raw {
		doc[k] = decodeValue(v)
	}
	doc[IDField] = id
	return doc, nil
}

func decodeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if s, ok := t[dateKey].(string); ok {
				if parsed, err := time.Parse(TimeLayout, s); err == nil {
					return NewTime(parsed)
				}
			}
		}
		out := make(Document, len(t))
		for k, vv := range t {
			out[k] = decodeValue(vv)
		}
		return out
	case []any:
		for i, vv := range t {
			t[i] = decodeValue(vv)
		}
		return t
	default:
		return v
	}
}

// mapSQLiteError converts unique constraint violations into ErrDuplicate.
func mapSQLiteError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
