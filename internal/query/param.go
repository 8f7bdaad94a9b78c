package query

import (
	"fmt"
	"time"
)

// ParamType はドライバへ渡すパラメータ型を表す。
// 整数、可変長テキスト、タイムスタンプ、真偽値の閉じた集合のみを扱う。
type ParamType int

const (
	// TypeInt は整数パラメータ。
	TypeInt ParamType = iota + 1
	// TypeText は可変長テキストパラメータ。
	TypeText
	// TypeTimestamp はタイムスタンプパラメータ。NULLを許容する。
	TypeTimestamp
	// TypeBool は真偽値パラメータ。
	TypeBool
)

// String はパラメータ型の名前を返す。
func (t ParamType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeText:
		return "text"
	case TypeTimestamp:
		return "timestamp"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("ParamType(%d)", int(t))
	}
}

// Param はステートメントに名前でバインドされる型付きの値。
// ステートメント本文には ":name" の形で現れる。
type Param struct {
	Name  string
	Type  ParamType
	Value any
}

// Int は整数パラメータを生成する。
func Int(name string, v int64) Param {
	return Param{Name: name, Type: TypeInt, Value: v}
}

// Text はテキストパラメータを生成する。
func Text(name, v string) Param {
	return Param{Name: name, Type: TypeText, Value: v}
}

// Timestamp はタイムスタンプパラメータを生成する。値はUTCに正規化される。
func Timestamp(name string, v time.Time) Param {
	return Param{Name: name, Type: TypeTimestamp, Value: v}
}

// NullTimestamp はNULL許容のタイムスタンプパラメータを生成する。vがnilの場合はNULLをバインドする。
func NullTimestamp(name string, v *time.Time) Param {
	if v == nil {
		return Param{Name: name, Type: TypeTimestamp, Value: nil}
	}
	return Param{Name: name, Type: TypeTimestamp, Value: *v}
}

// Bool は真偽値パラメータを生成する。
func Bool(name string, v bool) Param {
	return Param{Name: name, Type: TypeBool, Value: v}
}

// Row は1行分の結果を列名から値へのマップで表す。
type Row map[string]any

// Int64 は列の値を整数として取り出す。
func (r Row) Int64(column string) (int64, bool) {
	switch v := r[column].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// String は列の値を文字列として取り出す。
func (r Row) String(column string) (string, bool) {
	v, ok := r[column].(string)
	return v, ok
}

// bindValue はパラメータの型と値の組み合わせを検証し、ドライバへ渡す値を返す。
func bindValue(p Param) (any, error) {
	switch p.Type {
	case TypeInt:
		switch v := p.Value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		}
	case TypeText:
		if v, ok := p.Value.(string); ok {
			return v, nil
		}
	case TypeTimestamp:
		switch v := p.Value.(type) {
		case nil:
			return nil, nil
		case time.Time:
			return v.UTC(), nil
		case *time.Time:
			if v == nil {
				return nil, nil
			}
			return v.UTC(), nil
		}
	case TypeBool:
		if v, ok := p.Value.(bool); ok {
			return v, nil
		}
	default:
		return nil, fmt.Errorf("parameter %q has unsupported type %s", p.Name, p.Type)
	}
	return nil, fmt.Errorf("parameter %q: value of type %T does not match %s", p.Name, p.Value, p.Type)
}

// bindMap はパラメータ列を名前付きバインド用のマップに変換する。
func bindMap(params []Param) (map[string]any, error) {
	args := make(map[string]any, len(params))
	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter without name")
		}
		if _, dup := args[p.Name]; dup {
			return nil, fmt.Errorf("parameter %q bound twice", p.Name)
		}
		v, err := bindValue(p)
		if err != nil {
			return nil, err
		}
		args[p.Name] = v
	}
	return args, nil
}
