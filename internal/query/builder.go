package query

import "strings"

// Conditions は任意の組み合わせで追加されるWHERE条件を組み立てる。
// 条件式はコード側の固定文字列のみを受け付け、値は必ずパラメータとしてバインドする。
type Conditions struct {
	clauses []string
	params  []Param
}

// Add は条件式と、その式が参照するパラメータを追加する。
func (c *Conditions) Add(clause string, params ...Param) {
	c.clauses = append(c.clauses, clause)
	c.params = append(c.params, params...)
}

// Len は追加済みの条件数を返す。
func (c *Conditions) Len() int {
	return len(c.clauses)
}

// SQL は " WHERE a AND b" 形式の句を返す。条件が無い場合は空文字列を返す。
func (c *Conditions) SQL() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// Params は条件が参照するパラメータを追加順に返す。
func (c *Conditions) Params() []Param {
	return append([]Param(nil), c.params...)
}

// Assignments は部分更新用のSET句を組み立てる。
// 指定されたフィールドのみを代入し、未指定のフィールドは変更しない。
type Assignments struct {
	columns []string
	params  []Param
}

// Set は列への代入を追加する。列名はコード側の固定文字列でなければならない。
func (a *Assignments) Set(column string, p Param) {
	a.columns = append(a.columns, column+" = :"+p.Name)
	a.params = append(a.params, p)
}

// SetExpr は列へ式を代入する。式が参照するパラメータも合わせて渡す。
func (a *Assignments) SetExpr(column, expr string, params ...Param) {
	a.columns = append(a.columns, column+" = "+expr)
	a.params = append(a.params, params...)
}

// Empty は代入が1件も無い場合にtrueを返す。
func (a *Assignments) Empty() bool {
	return len(a.columns) == 0
}

// SQL は "a = :a, b = :b" 形式の代入リストを返す。
func (a *Assignments) SQL() string {
	return strings.Join(a.columns, ", ")
}

// Params は代入が参照するパラメータを追加順に返す。
func (a *Assignments) Params() []Param {
	return append([]Param(nil), a.params...)
}

// EscapeLike はLIKEパターンのメタ文字をエスケープする。
// ステートメント側では ESCAPE '\' を指定すること。
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
