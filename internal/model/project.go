package model

// Project はユーザーが所有するプロジェクトを表す。
type Project struct {
	ID      int64  `db:"p_id" json:"p_id"`
	Title   string `db:"p_title" json:"p_title"`
	Color   string `db:"p_color" json:"p_color"`
	OwnerID int64  `db:"p_u_user_id" json:"p_u_user_id"`
}

// ProjectPatch はプロジェクトの部分更新内容を表す。
type ProjectPatch struct {
	Title *string
	Color *string
}

// Empty は更新対象のフィールドが1つも無い場合にtrueを返す。
func (p ProjectPatch) Empty() bool {
	return p.Title == nil && p.Color == nil
}
