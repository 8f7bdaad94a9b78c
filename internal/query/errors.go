package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Op はQueryErrorが発生した段階を表す。
type Op string

const (
	// OpBind はパラメータのバインド段階。接続前に検出される。
	OpBind Op = "bind"
	// OpConnect は接続確立段階。
	OpConnect Op = "connect"
	// OpExecute はステートメント実行および行ストリーミング段階。
	OpExecute Op = "execute"
	// OpScan は行の読み取り段階。
	OpScan Op = "scan"
	// OpClose は接続解放段階。
	OpClose Op = "close"
)

// QueryError はデータベース層のあらゆる失敗を表す。
// 呼び出し側には基になるメッセージ以上の区別を提供しないが、
// 制約違反の分類はClassifyで行える。
type QueryError struct {
	Op  Op
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed: %v", e.Op, e.Err)
}

// Unwrap は基になるドライバエラーを返す。
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Constraint はデータベースが報告した制約違反の種別。
type Constraint int

const (
	// ConstraintNone は制約違反ではないことを示す。
	ConstraintNone Constraint = iota
	// ConstraintUnique は一意制約違反。
	ConstraintUnique
	// ConstraintForeignKey は外部キー制約違反。
	ConstraintForeignKey
	// ConstraintNotNull はNOT NULL制約違反。
	ConstraintNotNull
)

// PostgreSQLのSQLSTATE（クラス23: integrity constraint violation）
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
)

// Classify はエラーチェーンからドライバ固有の制約違反を判別する。
// lib/pq と modernc sqlite の両方に対応する。
func Classify(err error) Constraint {
	if err == nil {
		return ConstraintNone
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return ConstraintUnique
		case pgForeignKeyViolation:
			return ConstraintForeignKey
		case pgNotNullViolation:
			return ConstraintNotNull
		}
		return ConstraintNone
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ConstraintUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ConstraintForeignKey
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return ConstraintNotNull
		}
		// 拡張リザルトコードが無効な接続ではメッセージで判別する
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := liteErr.Error()
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return ConstraintUnique
			case strings.Contains(msg, "FOREIGN KEY"):
				return ConstraintForeignKey
			case strings.Contains(msg, "NOT NULL"):
				return ConstraintNotNull
			}
		}
	}

	return ConstraintNone
}
