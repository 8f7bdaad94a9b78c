package database

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"modernc.org/sqlite"

	"github.com/hitoshi/donetracker/internal/config"

	// ドライバ登録
	_ "github.com/lib/pq"
)

// sqlite組み込みのlower()はASCIIしか変換しないため、Unicode対応の実装で置き換える。
// PostgreSQLのLOWER()と同じく大文字小文字を区別しない検索になる。
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("lower", 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// CheckDriver はドライバ名がサポート対象かを検証する。
func CheckDriver(driver string) error {
	switch driver {
	case config.DriverPostgres, config.DriverSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
}
