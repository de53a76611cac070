package model

import "time"

// Team はチームを表す。
// CreatedByは作成時点のユーザー公開ビューの埋め込みスナップショットであり、
// ライブな外部キーではない。所有権チェックはCreatedBy.IDの値比較で行う。
type Team struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Stadium   string     `json:"stadium"`
	CreatedBy PublicUser `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
}
