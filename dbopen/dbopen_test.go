package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenMemoryWithSchema(t *testing.T) {
	// WHAT: In-memory open applies pragmas and queued schema SQL.
	// WHY: Every store test builds on this helper.
	db := OpenMemory(t, WithSchema(`CREATE TABLE items (id TEXT PRIMARY KEY, n INTEGER)`))

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys: got %d, want 1", fk)
	}

	if _, err := db.Exec(`INSERT INTO items (id, n) VALUES ('a', 1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestRunTxCommitsAndRollsBack(t *testing.T) {
	// WHAT: RunTx commits on nil and rolls back on error.
	// WHY: Atomic chunk replacement depends on this contract.
	db := OpenMemory(t, WithSchema(`CREATE TABLE items (id TEXT PRIMARY KEY)`))
	ctx := context.Background()

	if err := RunTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO items (id) VALUES ('kept')`)
		return err
	}); err != nil {
		t.Fatalf("commit tx: %v", err)
	}

	boom := errors.New("boom")
	err := RunTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO items (id) VALUES ('dropped')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n)
	if n != 1 {
		t.Errorf("rows: got %d, want 1 (rollback failed)", n)
	}
}

func TestIsBusy(t *testing.T) {
	if IsBusy(nil) {
		t.Error("nil is not busy")
	}
	if !IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("SQLITE_BUSY not detected")
	}
	if IsBusy(errors.New("no such table")) {
		t.Error("false positive")
	}
}
