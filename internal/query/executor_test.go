package query

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/donetracker/internal/logger"
)

// --- テスト用ドライバ ---
//
// DSNに含まれる語でシナリオを切り替える。
//   connectfail: 接続確立に失敗する
//   rowfail:     1行目の後にステートメントエラーを返す
//   closefail:   接続の解放時にエラーを返す

const fakeDriverName = "querytest"

var errRowFailed = errors.New("row stream failed")
var errCloseFailed = errors.New("connection close failed")
var errConnectFailed = errors.New("connection refused")

type connStats struct {
	mu      sync.Mutex
	opens   int
	closes  int
	queries []string
	args    [][]driver.NamedValue
}

type fakeDriver struct {
	mu    sync.Mutex
	stats map[string]*connStats
}

var testDriver = &fakeDriver{stats: make(map[string]*connStats)}

func init() {
	sql.Register(fakeDriverName, testDriver)
}

func (d *fakeDriver) statsFor(dsn string) *connStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.stats[dsn]
	if !ok {
		s = &connStats{}
		d.stats[dsn] = s
	}
	return s
}

func (d *fakeDriver) Open(dsn string) (driver.Conn, error) {
	if strings.Contains(dsn, "connectfail") {
		return nil, errConnectFailed
	}
	s := d.statsFor(dsn)
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	return &fakeConn{dsn: dsn, stats: s}, nil
}

type fakeConn struct {
	dsn   string
	stats *connStats
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{conn: c, query: query}, nil
}

func (c *fakeConn) Close() error {
	c.stats.mu.Lock()
	c.stats.closes++
	c.stats.mu.Unlock()
	if strings.Contains(c.dsn, "closefail") {
		return errCloseFailed
	}
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

type fakeStmt struct {
	conn  *fakeConn
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, errors.New("exec not supported")
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	named := make([]driver.NamedValue, len(args))
	for i, a := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: a}
	}
	s.conn.stats.mu.Lock()
	s.conn.stats.queries = append(s.conn.stats.queries, s.query)
	s.conn.stats.args = append(s.conn.stats.args, named)
	s.conn.stats.mu.Unlock()
	return &fakeRows{fail: strings.Contains(s.conn.dsn, "rowfail")}, nil
}

type fakeRows struct {
	fail bool
	pos  int
}

func (r *fakeRows) Columns() []string { return []string{"id", "name"} }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos == 1 && r.fail {
		return errRowFailed
	}
	if r.pos >= 2 {
		return io.EOF
	}
	r.pos++
	dest[0] = int64(r.pos)
	dest[1] = []byte("row")
	return nil
}

// --- テスト用Observer ---

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	dropped  int
}

func (o *recordingObserver) ObserveQuery(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ObserveDroppedOutcome() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped++
}

func newTestExecutor(t *testing.T, scenario string) (*Executor, *recordingObserver, *connStats, string) {
	t.Helper()
	dsn := scenario + "/" + t.Name()
	obs := &recordingObserver{}
	e := NewExecutor(Config{
		Driver:         fakeDriverName,
		DSN:            dsn,
		ConnectTimeout: time.Second,
		QueryTimeout:   time.Second,
	}, obs)
	return e, obs, testDriver.statsFor(dsn), dsn
}

func TestExecutor_Run_ReturnsRowsInOrder(t *testing.T) {
	e, obs, stats, _ := newTestExecutor(t, "ok")

	rows, err := e.Run(context.Background(),
		"SELECT id, name FROM t WHERE owner = :owner AND title = :title",
		Int("owner", 7), Text("title", "x"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for i, row := range rows {
		id, ok := row.Int64("id")
		if !ok || id != int64(i+1) {
			t.Errorf("row %d: id = %v (ok=%v), want %d", i, id, ok, i+1)
		}
		name, ok := row.String("name")
		if !ok || name != "row" {
			t.Errorf("row %d: name = %q (ok=%v), want %q", i, name, ok, "row")
		}
	}

	if stats.opens != 1 || stats.closes != 1 {
		t.Errorf("opens=%d closes=%d, want 1 and 1", stats.opens, stats.closes)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != "ok" {
		t.Errorf("outcomes = %v, want [ok]", obs.outcomes)
	}
	if obs.dropped != 0 {
		t.Errorf("dropped = %d, want 0", obs.dropped)
	}
}

func TestExecutor_Run_BindsValuesAsArguments(t *testing.T) {
	e, _, stats, _ := newTestExecutor(t, "ok")

	_, err := e.Run(context.Background(),
		"SELECT id, name FROM t WHERE title = :title",
		Text("title", "'; DROP TABLE t; --"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(stats.queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(stats.queries))
	}
	if strings.Contains(stats.queries[0], "DROP") {
		t.Errorf("value leaked into statement text: %q", stats.queries[0])
	}
	if len(stats.args[0]) != 1 || stats.args[0][0].Value != "'; DROP TABLE t; --" {
		t.Errorf("args = %v, want the raw value as the only argument", stats.args[0])
	}
}

func TestExecutor_Run_EmptyResultIsEmptySlice(t *testing.T) {
	e := NewExecutor(Config{Driver: fakeDriverName, DSN: "ok/" + t.Name()}, nil)

	rows, err := e.Run(context.Background(), "SELECT id, name FROM t")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rows == nil {
		t.Error("expected non-nil slice")
	}
}

// TestExecutor_Run_DeliversExactlyOneOutcome はステートメントエラーと接続解放エラーが
// 両方発生しても、呼び出し側には最初の結果だけが届くことを検証する。
func TestExecutor_Run_DeliversExactlyOneOutcome(t *testing.T) {
	e, obs, stats, _ := newTestExecutor(t, "rowfail-closefail")

	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.Setup(&buf))

	rows, err := e.Run(ctx, "SELECT id, name FROM t")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if rows != nil {
		t.Errorf("expected nil rows on failure, got %v", rows)
	}

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T", err)
	}
	if qe.Op != OpExecute {
		t.Errorf("Op = %q, want %q", qe.Op, OpExecute)
	}
	if !errors.Is(err, errRowFailed) {
		t.Errorf("expected statement error, got %v", err)
	}
	if errors.Is(err, errCloseFailed) {
		t.Error("close error must not be delivered")
	}

	if stats.opens != 1 || stats.closes != 1 {
		t.Errorf("opens=%d closes=%d, want 1 and 1", stats.opens, stats.closes)
	}
	if len(obs.outcomes) != 1 {
		t.Errorf("expected 1 observed outcome, got %v", obs.outcomes)
	}
	if obs.dropped != 1 {
		t.Errorf("dropped = %d, want 1", obs.dropped)
	}
	if !strings.Contains(buf.String(), "query outcome dropped") {
		t.Errorf("expected dropped outcome to be logged, got %s", buf.String())
	}
}

func TestExecutor_Run_CloseErrorAfterSuccess(t *testing.T) {
	e, obs, stats, _ := newTestExecutor(t, "closefail")

	_, err := e.Run(context.Background(), "SELECT id, name FROM t")
	if err != nil {
		t.Fatalf("expected success to win, got %v", err)
	}
	if stats.opens != 1 || stats.closes != 1 {
		t.Errorf("opens=%d closes=%d, want 1 and 1", stats.opens, stats.closes)
	}
	if obs.dropped != 1 {
		t.Errorf("dropped = %d, want 1", obs.dropped)
	}
}

func TestExecutor_Run_ConnectFailure(t *testing.T) {
	e, obs, _, _ := newTestExecutor(t, "connectfail")

	_, err := e.Run(context.Background(), "SELECT id, name FROM t")

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %v", err)
	}
	if qe.Op != OpConnect {
		t.Errorf("Op = %q, want %q", qe.Op, OpConnect)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != string(OpConnect) {
		t.Errorf("outcomes = %v, want [connect]", obs.outcomes)
	}
}

func TestExecutor_Run_BindFailureOpensNoConnection(t *testing.T) {
	tests := []struct {
		name   string
		stmt   string
		params []Param
	}{
		{
			name: "missing parameter",
			stmt: "SELECT id, name FROM t WHERE id = :id",
		},
		{
			name:   "type mismatch",
			stmt:   "SELECT id, name FROM t WHERE id = :id",
			params: []Param{{Name: "id", Type: TypeInt, Value: "seven"}},
		},
		{
			name:   "duplicate name",
			stmt:   "SELECT id, name FROM t WHERE id = :id",
			params: []Param{Int("id", 1), Int("id", 2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, stats, _ := newTestExecutor(t, "ok")

			_, err := e.Run(context.Background(), tt.stmt, tt.params...)

			var qe *QueryError
			if !errors.As(err, &qe) {
				t.Fatalf("expected *QueryError, got %v", err)
			}
			if qe.Op != OpBind {
				t.Errorf("Op = %q, want %q", qe.Op, OpBind)
			}
			if stats.opens != 0 {
				t.Errorf("opens = %d, want 0", stats.opens)
			}
		})
	}
}

func TestExecutor_Select_StructScan(t *testing.T) {
	e, _, stats, _ := newTestExecutor(t, "ok")

	var dest []struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	if err := e.Select(context.Background(), &dest, "SELECT id, name FROM t"); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if len(dest) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(dest))
	}
	if dest[1].ID != 2 || dest[1].Name != "row" {
		t.Errorf("dest[1] = %+v", dest[1])
	}
	if stats.opens != 1 || stats.closes != 1 {
		t.Errorf("opens=%d closes=%d, want 1 and 1", stats.opens, stats.closes)
	}
}

func TestExecutor_Select_ScanFailure(t *testing.T) {
	e, obs, stats, _ := newTestExecutor(t, "ok")

	var dest []struct {
		ID int64 `db:"id"`
	}
	err := e.Select(context.Background(), &dest, "SELECT id, name FROM t")

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %v", err)
	}
	if qe.Op != OpScan {
		t.Errorf("Op = %q, want %q", qe.Op, OpScan)
	}
	if stats.opens != 1 || stats.closes != 1 {
		t.Errorf("opens=%d closes=%d, want 1 and 1", stats.opens, stats.closes)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != string(OpScan) {
		t.Errorf("outcomes = %v, want [scan]", obs.outcomes)
	}
}

// TestExecutor_ConcurrentCallsUseSeparateConnections は並行実行時も呼び出しごとに
// 接続が1本ずつ開かれ、全て解放されることを検証する。
func TestExecutor_ConcurrentCallsUseSeparateConnections(t *testing.T) {
	e, obs, stats, _ := newTestExecutor(t, "ok")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Run(context.Background(), "SELECT id, name FROM t"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if stats.opens != n || stats.closes != n {
		t.Errorf("opens=%d closes=%d, want %d each", stats.opens, stats.closes, n)
	}
	if len(obs.outcomes) != n {
		t.Errorf("expected %d outcomes, got %d", n, len(obs.outcomes))
	}
}

func TestExecutor_PingContext(t *testing.T) {
	e, _, stats, _ := newTestExecutor(t, "ok")
	if err := e.PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext returned error: %v", err)
	}
	if stats.opens != 1 || stats.closes != 1 {
		t.Errorf("opens=%d closes=%d, want 1 and 1", stats.opens, stats.closes)
	}

	failing, _, _, _ := newTestExecutor(t, "connectfail")
	err := failing.PingContext(context.Background())
	var qe *QueryError
	if !errors.As(err, &qe) || qe.Op != OpConnect {
		t.Errorf("expected connect QueryError, got %v", err)
	}
}

func TestNewExecutor_DefaultsTimeouts(t *testing.T) {
	e := NewExecutor(Config{Driver: "postgres"}, nil)
	if e.cfg.ConnectTimeout != 30*time.Second {
		t.Errorf("ConnectTimeout = %v, want 30s", e.cfg.ConnectTimeout)
	}
	if e.cfg.QueryTimeout != 30*time.Second {
		t.Errorf("QueryTimeout = %v, want 30s", e.cfg.QueryTimeout)
	}
}

func TestExecutor_Bind_RebindsForDriver(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"postgres", "SELECT 1 WHERE a = $1 AND b = $2"},
		{"sqlite", "SELECT 1 WHERE a = ? AND b = ?"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			e := NewExecutor(Config{Driver: tt.driver}, nil)
			q, args, err := e.bind("SELECT 1 WHERE a = :a AND b = :b", []Param{Int("a", 1), Text("b", "x")})
			if err != nil {
				t.Fatalf("bind returned error: %v", err)
			}
			if q != tt.want {
				t.Errorf("query = %q, want %q", q, tt.want)
			}
			if len(args) != 2 || args[0] != int64(1) || args[1] != "x" {
				t.Errorf("args = %v", args)
			}
		})
	}
}
