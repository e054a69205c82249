package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewSQLiteStore(db)
	store.newID = func() string { return "fixed-id" }
	return store, mock
}

func TestSQLiteStore_InsertMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(Experiments, "fixed-id", sqlmock.AnyArg()).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})

	_, err := store.Insert(context.Background(), Experiments, Document{"id": "exp-1"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Insert() error = %v, want ErrDuplicate", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLiteStore_InsertPropagatesOtherErrors(t *testing.T) {
	store, mock := newMockStore(t)
	diskFull := errors.New("disk I/O error")

	mock.ExpectExec(`INSERT INTO documents`).WillReturnError(diskFull)

	_, err := store.Insert(context.Background(), Measurements, Document{"sensor_id": "s1"})
	if !errors.Is(err, diskFull) {
		t.Errorf("Insert() error = %v, want wrapped %v", err, diskFull)
	}
	if errors.Is(err, ErrDuplicate) {
		t.Error("Insert() reported ErrDuplicate for a non-constraint error")
	}
}

func TestSQLiteStore_FindBuildsFilteredQuery(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "body"}).
		AddRow("a", `{"sensor_id":"s1","timestamp":{"$date":"2026-03-01T10:00:00.000Z"}}`)
	mock.ExpectQuery(`SELECT id, body FROM documents WHERE collection = \? AND .*sensor_id.* = \? ORDER BY .*timestamp.* DESC, rowid DESC LIMIT \?`).
		WithArgs(Measurements, "s1", int64(5)).
		WillReturnRows(rows)

	docs, err := store.Find(context.Background(), Measurements,
		NewFilter().EqIfSet("sensor_id", "s1").EqIfSet("status", ""),
		FindOptions{SortField: "timestamp", Descending: true, Limit: 5},
	)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len = %d, want 1", len(docs))
	}
	if _, ok := docs[0]["timestamp"].(Time); !ok {
		t.Errorf("timestamp = %#v, want Time", docs[0]["timestamp"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLiteStore_FindQueryError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("database is locked")

	mock.ExpectQuery(`SELECT id, body FROM documents`).WillReturnError(boom)

	_, err := store.Find(context.Background(), Experiments, nil, FindOptions{})
	if !errors.Is(err, boom) {
		t.Errorf("Find() error = %v, want wrapped %v", err, boom)
	}
}

func TestSQLiteStore_UpdateRollsBackOnWriteError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("write failed")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, body FROM documents`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).AddRow("a", `{"id":"s1"}`))
	mock.ExpectExec(`UPDATE documents SET body`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := store.Update(context.Background(), SensorDevices, NewFilter().Eq("id", "s1"), Document{"status": "offline"})
	if !errors.Is(err, boom) {
		t.Errorf("Update() error = %v, want wrapped %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
