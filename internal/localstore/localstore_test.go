package localstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSetGetDeleteRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Get(KeyAuthToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(KeyAuthToken, "tok-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeyAuthToken, "tok-2"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(KeyAuthToken)
	if err != nil {
		t.Fatal(err)
	}
	if got != "tok-2" {
		t.Fatalf("expected latest value, got %q", got)
	}
	if err := s.Delete(KeyAuthToken); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(KeyAuthToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestClearSessionRemovesAllKeys(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for _, key := range SessionKeys {
		if err := s.Set(key, "v"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.ClearSession(); err != nil {
		t.Fatal(err)
	}
	for _, key := range SessionKeys {
		if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
			t.Fatalf("key %s survived logout: %v", key, err)
		}
	}
}

func TestClearSessionRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM kv").WithArgs(KeyAuthToken).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM kv").WithArgs(KeyCachedUser).WillReturnError(errors.New("disk gone"))
	mock.ExpectRollback()

	s := NewWithDB(db)
	if err := s.ClearSession(); err == nil {
		t.Fatal("expected clear to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionKeysCountIsStable(t *testing.T) {
	if len(SessionKeys) != 9 {
		t.Fatalf("logout clears %d keys, want 9", len(SessionKeys))
	}
}
