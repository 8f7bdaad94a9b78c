package repository

import (
	"context"

	"github.com/hitoshi/donetracker/internal/query"
)

// --- テスト用モック ---

type call struct {
	stmt   string
	params []query.Param
}

type mockRunner struct {
	calls    []call
	runFn    func(stmt string, params []query.Param) ([]query.Row, error)
	selectFn func(dest any, stmt string, params []query.Param) error
}

func (m *mockRunner) Run(_ context.Context, stmt string, params ...query.Param) ([]query.Row, error) {
	m.calls = append(m.calls, call{stmt: stmt, params: params})
	if m.runFn != nil {
		return m.runFn(stmt, params)
	}
	return []query.Row{}, nil
}

func (m *mockRunner) Select(_ context.Context, dest any, stmt string, params ...query.Param) error {
	m.calls = append(m.calls, call{stmt: stmt, params: params})
	if m.selectFn != nil {
		return m.selectFn(dest, stmt, params)
	}
	return nil
}

func (c call) param(name string) (query.Param, bool) {
	for _, p := range c.params {
		if p.Name == name {
			return p, true
		}
	}
	return query.Param{}, false
}
