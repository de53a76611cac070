package model

// Source はレスポンスがどの層から返されたかを示すオリジンタグ。
type Source string

const (
	// SourceCache はキャッシュスナップショットから返されたことを示す。
	SourceCache Source = "cache"
	// SourceDB は永続ストアから返されたことを示す。
	SourceDB Source = "db"
	// SourceServer はどちらの層にも依存しない応答（削除・認証等）を示す。
	SourceServer Source = "server"
)
