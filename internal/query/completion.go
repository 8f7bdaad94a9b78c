package query

import "sync"

// completion は1回の実行につき最初の結果だけを採用するラッチ。
// ドライバは同じ失敗に対してステートメントエラーと接続エラーの両方を報告し得るため、
// 2件目以降は呼び出し側へ届けずdroppedに記録する。
type completion struct {
	mu        sync.Mutex
	delivered bool
	err       error
	dropped   []error
}

// deliver は結果を届ける。nilは成功を表す。
// 最初の呼び出しでのみtrueを返す。
func (c *completion) deliver(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.delivered {
		if err != nil {
			c.dropped = append(c.dropped, err)
		}
		return false
	}
	c.delivered = true
	c.err = err
	return true
}

// result は採用された結果を返す。
func (c *completion) result() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// droppedErrors は採用されなかった後続のエラーを返す。
func (c *completion) droppedErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.dropped...)
}
