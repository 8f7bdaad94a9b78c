package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/hitoshi/donetracker/internal/config"
)

// setupSQLiteDB は一時ディレクトリにsqliteデータベースファイルを用意する。
func setupSQLiteDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "done.db")
	db, err := sql.Open(config.DriverSQLite, path+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, "sqlite://" + path
}

// setupPostgresDB はテスト用PostgreSQLを準備する。
// TEST_DATABASE_URL が未設定、または接続できない場合はスキップする。
func setupPostgresDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := sql.Open(config.DriverPostgres, dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	cleanupSQL := `
		DROP TABLE IF EXISTS t_todo CASCADE;
		DROP TABLE IF EXISTS p_project CASCADE;
		DROP TABLE IF EXISTS pr_priority CASCADE;
		DROP TABLE IF EXISTS u_user CASCADE;
		DROP TABLE IF EXISTS schema_migrations CASCADE;
	`
	if _, err := db.Exec(cleanupSQL); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	return db, dbURL
}

var expectedTables = []string{"u_user", "pr_priority", "p_project", "t_todo"}

func countSQLiteTables(t *testing.T, db *sql.DB) int {
	t.Helper()
	var count int
	err := db.QueryRow(
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('u_user','pr_priority','p_project','t_todo')",
	).Scan(&count)
	if err != nil {
		t.Fatalf("テーブルカウント取得に失敗: %v", err)
	}
	return count
}

func TestRunMigrations_SQLite_Up(t *testing.T) {
	db, migrationURL := setupSQLiteDB(t)

	if err := RunMigrations(config.DriverSQLite, migrationURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	if got := countSQLiteTables(t, db); got != len(expectedTables) {
		t.Errorf("Up後のテーブル数が不正: got %d, want %d", got, len(expectedTables))
	}
}

func TestRunMigrations_SQLite_Idempotent(t *testing.T) {
	_, migrationURL := setupSQLiteDB(t)

	if err := RunMigrations(config.DriverSQLite, migrationURL); err != nil {
		t.Fatalf("1回目のマイグレーション実行に失敗: %v", err)
	}
	if err := RunMigrations(config.DriverSQLite, migrationURL); err != nil {
		t.Fatalf("2回目のマイグレーション実行に失敗（冪等性の問題）: %v", err)
	}
}

func TestMigrations_SQLite_UpAndDown(t *testing.T) {
	db, migrationURL := setupSQLiteDB(t)

	m, err := NewMigrator(config.DriverSQLite, migrationURL)
	if err != nil {
		t.Fatalf("Migrator生成に失敗: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		t.Fatalf("Up マイグレーション実行に失敗: %v", err)
	}
	if got := countSQLiteTables(t, db); got != len(expectedTables) {
		t.Errorf("Up後のテーブル数が不正: got %d, want %d", got, len(expectedTables))
	}

	if err := m.Down(); err != nil {
		t.Fatalf("Down マイグレーション実行に失敗: %v", err)
	}
	if got := countSQLiteTables(t, db); got != 0 {
		t.Errorf("Down後のテーブル数が不正: got %d, want 0", got)
	}
}

// TestPrioritySeed は優先度の初期データが投入されることを検証する。
func TestPrioritySeed(t *testing.T) {
	db, migrationURL := setupSQLiteDB(t)

	if err := RunMigrations(config.DriverSQLite, migrationURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	rows, err := db.Query("SELECT pr_id, pr_name FROM pr_priority ORDER BY pr_id")
	if err != nil {
		t.Fatalf("優先度の取得に失敗: %v", err)
	}
	defer rows.Close()

	want := []string{"low", "medium", "high"}
	var got []string
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			t.Fatalf("Scanに失敗: %v", err)
		}
		got = append(got, name)
	}
	if len(got) != len(want) {
		t.Fatalf("優先度の件数が不正: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("優先度[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestProjectWithTodosCannotBeDeleted はTodoが残っているプロジェクトの削除が
// 外部キー制約で拒否されることを検証する。
func TestProjectWithTodosCannotBeDeleted(t *testing.T) {
	db, migrationURL := setupSQLiteDB(t)

	if err := RunMigrations(config.DriverSQLite, migrationURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	stmts := []string{
		"INSERT INTO u_user (u_id, u_username, u_password_hash) VALUES (1, 'alice', 'x')",
		"INSERT INTO p_project (p_id, p_title, p_u_user_id) VALUES (1, 'home', 1)",
		"INSERT INTO t_todo (t_title, t_pr_priority, p_project_p_id, t_u_user_id) VALUES ('Buy milk', 2, 1, 1)",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("テストデータ挿入に失敗 (%s): %v", s, err)
		}
	}

	if _, err := db.Exec("DELETE FROM p_project WHERE p_id = 1"); err == nil {
		t.Error("Todoが残っているプロジェクトが削除できてしまった")
	}

	// ユーザー削除は配下のプロジェクトとTodoを全て削除する
	if _, err := db.Exec("DELETE FROM u_user WHERE u_id = 1"); err != nil {
		t.Fatalf("ユーザー削除に失敗: %v", err)
	}
	var count int
	if err := db.QueryRow("SELECT count(*) FROM t_todo").Scan(&count); err != nil {
		t.Fatalf("Todoカウント取得に失敗: %v", err)
	}
	if count != 0 {
		t.Errorf("CASCADE削除後のTodo数が不正: got %d, want 0", count)
	}
}

func TestRunMigrations_Postgres_Up(t *testing.T) {
	db, dbURL := setupPostgresDB(t)

	if err := RunMigrations(config.DriverPostgres, dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	for _, table := range expectedTables {
		t.Run("テーブル存在確認_"+table, func(t *testing.T) {
			var exists bool
			err := db.QueryRow(
				"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
				table,
			).Scan(&exists)
			if err != nil {
				t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
			}
			if !exists {
				t.Errorf("テーブル %q が存在しません", table)
			}
		})
	}
}

func TestNewMigrator_UnsupportedDriver(t *testing.T) {
	if _, err := NewMigrator("mysql", "mysql://localhost/done"); err == nil {
		t.Fatal("expected error for unsupported driver, got nil")
	}
}
