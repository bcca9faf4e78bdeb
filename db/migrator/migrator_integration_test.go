//go:build integration

package migrator_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/ideomind/unreal-dashboard/db"
	"github.com/ideomind/unreal-dashboard/db/migrator"
	"github.com/ideomind/unreal-dashboard/internal/testutil"
)

func TestMigrator_ApplyAll(t *testing.T) {
	ctx := context.Background()
	dsn, cleanup := testutil.StartPostgres(t)
	defer cleanup()
	pool := testutil.ConnectPool(t, dsn)
	defer pool.Close()

	m := migrator.New(pool, db.Migrations(), testutil.DiscardLogger())
	applied, err := m.ApplyAll(ctx)
	if err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	if len(applied) == 0 {
		t.Fatal("no migrations were applied")
	}

	for _, table := range []string{"migrations", "users", "billing_history"} {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("expected table %s does not exist", table)
		}
	}

	again, err := m.ApplyAll(ctx)
	if err != nil {
		t.Fatalf("second ApplyAll failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected no migrations on second run, got %v", again)
	}

	listed, err := m.ListApplied(ctx)
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}
	if len(listed) != len(applied) {
		t.Errorf("expected %d applied migrations, got %d", len(applied), len(listed))
	}
}

func TestMigrator_DetectsModifiedMigration(t *testing.T) {
	ctx := context.Background()
	dsn, cleanup := testutil.StartPostgres(t)
	defer cleanup()
	pool := testutil.ConnectPool(t, dsn)
	defer pool.Close()

	original := fstest.MapFS{"0001_t.sql": {Data: []byte("CREATE TABLE t (id INT);")}}
	if _, err := migrator.New(pool, original, nil).ApplyAll(ctx); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	modified := fstest.MapFS{"0001_t.sql": {Data: []byte("CREATE TABLE t (id BIGINT);")}}
	_, err := migrator.New(pool, modified, nil).ApplyAll(ctx)
	if !errors.Is(err, migrator.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestMigrator_FailedMigrationIsRolledBack(t *testing.T) {
	ctx := context.Background()
	dsn, cleanup := testutil.StartPostgres(t)
	defer cleanup()
	pool := testutil.ConnectPool(t, dsn)
	defer pool.Close()

	broken := fstest.MapFS{"0001_broken.sql": {Data: []byte("CREATE TABLE ok (id INT); SELECT * FROM missing_table;")}}
	if _, err := migrator.New(pool, broken, nil).ApplyAll(ctx); err == nil {
		t.Fatal("expected error for broken migration")
	}

	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'ok')`).Scan(&exists); err != nil {
		t.Fatalf("query: %v", err)
	}
	if exists {
		t.Error("partially applied migration was committed")
	}
}
