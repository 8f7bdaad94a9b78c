// Package query はパラメータ化ステートメントの実行とそのライフサイクルを提供する。
//
// Executorは呼び出しごとに接続を1本開き、ステートメントを1つ実行し、
// 結果を1回だけ届けてから接続を必ず解放する。接続の再利用（プーリング）は行わない。
package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/donetracker/internal/logger"
)

func init() {
	// modernc.org/sqlite のドライバ名は "sqlite" のため明示的に登録する
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const defaultTimeout = 30 * time.Second

// Runner はリポジトリが必要とするステートメント実行インターフェース。
type Runner interface {
	// Run はステートメントを実行し、全行を列名マップとして返す。
	Run(ctx context.Context, stmt string, params ...Param) ([]Row, error)
	// Select はステートメントを実行し、全行をdest（構造体スライスへのポインタ）に読み込む。
	Select(ctx context.Context, dest any, stmt string, params ...Param) error
}

// Observer は実行結果の計測インターフェース。
type Observer interface {
	// ObserveQuery は1回の実行の結果（"ok" または失敗段階）と所要時間を記録する。
	ObserveQuery(outcome string, duration time.Duration)
	// ObserveDroppedOutcome は届けられなかった後続の結果を記録する。
	ObserveDroppedOutcome()
}

type noopObserver struct{}

func (noopObserver) ObserveQuery(string, time.Duration) {}
func (noopObserver) ObserveDroppedOutcome()             {}

// Config はExecutorの接続設定。
type Config struct {
	Driver         string        // "postgres" または "sqlite"
	DSN            string        // ドライバに渡す接続文字列
	ConnectTimeout time.Duration // 接続確立のタイムアウト
	QueryTimeout   time.Duration // ステートメント実行のタイムアウト
}

// Executor はステートメント1件ごとに接続を開閉する実行器。
// 状態を持たないため複数のゴルーチンから同時に利用できる。
type Executor struct {
	cfg      Config
	bindType int
	observer Observer
}

// NewExecutor はExecutorを生成する。observerがnilの場合は計測しない。
func NewExecutor(cfg Config, observer Observer) *Executor {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultTimeout
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultTimeout
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Executor{
		cfg:      cfg,
		bindType: sqlx.BindType(cfg.Driver),
		observer: observer,
	}
}

// Run はステートメントを実行し、データベースが返した順序のまま行を返す。
// 行が無い場合は空スライスを返す。
func (e *Executor) Run(ctx context.Context, stmt string, params ...Param) ([]Row, error) {
	rows := []Row{}
	err := e.execute(ctx, stmt, params, func(rs *sqlx.Rows) error {
		for rs.Next() {
			row := make(map[string]any)
			if err := rs.MapScan(row); err != nil {
				return err
			}
			rows = append(rows, normalize(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Select はステートメントを実行し、結果をdestにStructScanする。
func (e *Executor) Select(ctx context.Context, dest any, stmt string, params ...Param) error {
	return e.execute(ctx, stmt, params, func(rs *sqlx.Rows) error {
		return sqlx.StructScan(rs, dest)
	})
}

// PingContext は接続を1本開いて閉じ、データベースへ到達できることを確認する。
func (e *Executor) PingContext(ctx context.Context) error {
	db, err := e.connect(ctx)
	if err != nil {
		return &QueryError{Op: OpConnect, Err: err}
	}
	if err := db.Close(); err != nil {
		return &QueryError{Op: OpClose, Err: err}
	}
	return nil
}

// execute は1回分の実行を行い、ラッチで採用された結果だけを返す。
func (e *Executor) execute(ctx context.Context, stmt string, params []Param, consume func(*sqlx.Rows) error) error {
	start := time.Now()
	log := logger.FromContext(ctx)

	c := &completion{}
	e.attempt(ctx, stmt, params, consume, c)
	err := c.result()

	for _, dropped := range c.droppedErrors() {
		e.observer.ObserveDroppedOutcome()
		log.WarnContext(ctx, "query outcome dropped",
			slog.String("statement", compact(stmt)),
			slog.String("error", dropped.Error()),
		)
	}

	outcome := "ok"
	var qe *QueryError
	if errors.As(err, &qe) {
		outcome = string(qe.Op)
	}
	e.observer.ObserveQuery(outcome, time.Since(start))

	if err != nil {
		level := slog.LevelError
		if Classify(err) != ConstraintNone {
			level = slog.LevelWarn
		}
		log.Log(ctx, level, "query failed",
			slog.String("statement", compact(stmt)),
			slog.String("error", err.Error()),
		)
	}

	return err
}

// attempt は接続、実行、行の読み取り、解放の各段階で発生した結果をcに届ける。
// 接続は全ての経路で解放される。
func (e *Executor) attempt(ctx context.Context, stmt string, params []Param, consume func(*sqlx.Rows) error, c *completion) {
	query, args, err := e.bind(stmt, params)
	if err != nil {
		c.deliver(&QueryError{Op: OpBind, Err: err})
		return
	}

	db, err := e.connect(ctx)
	if err != nil {
		c.deliver(&QueryError{Op: OpConnect, Err: err})
		return
	}
	defer func() {
		if err := db.Close(); err != nil {
			c.deliver(&QueryError{Op: OpClose, Err: err})
		}
	}()

	qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	rs, err := db.QueryxContext(qctx, query, args...)
	if err != nil {
		c.deliver(&QueryError{Op: OpExecute, Err: err})
		return
	}
	defer func() {
		if err := rs.Close(); err != nil {
			c.deliver(&QueryError{Op: OpExecute, Err: err})
		}
	}()

	if err := consume(rs); err != nil {
		if rerr := rs.Err(); rerr != nil {
			c.deliver(&QueryError{Op: OpExecute, Err: rerr})
			return
		}
		c.deliver(&QueryError{Op: OpScan, Err: err})
		return
	}
	if err := rs.Err(); err != nil {
		c.deliver(&QueryError{Op: OpExecute, Err: err})
		return
	}

	c.deliver(nil)
}

// bind は名前付きパラメータをドライバのプレースホルダ形式に変換する。
// 値は常に引数として渡し、ステートメント本文には埋め込まない。
func (e *Executor) bind(stmt string, params []Param) (string, []any, error) {
	named, err := bindMap(params)
	if err != nil {
		return "", nil, err
	}
	q, args, err := sqlx.Named(stmt, named)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(e.bindType, q), args, nil
}

// connect は接続を1本だけ持つハンドルを開き、実際に接続を確立する。
func (e *Executor) connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open(e.cfg.Driver, e.cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	cctx, cancel := context.WithTimeout(ctx, e.cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(cctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// normalize はドライバが[]byteで返した値を文字列に揃える。
func normalize(row map[string]any) Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return Row(row)
}

// compact はログ出力用にステートメントの空白を詰める。
func compact(stmt string) string {
	return strings.Join(strings.Fields(stmt), " ")
}

// compile-time interface check
var _ Runner = (*Executor)(nil)
