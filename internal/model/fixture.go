package model

import "time"

// FixtureStatus は試合の進行状態を表す。
type FixtureStatus string

const (
	// FixtureStatusPending は未消化の試合を示す。
	FixtureStatusPending FixtureStatus = "pending"
	// FixtureStatusCompleted は消化済みの試合を示す。
	FixtureStatusCompleted FixtureStatus = "completed"
)

// ValidFixtureStatus はstatusが定義済みの値かどうかを返す。
func ValidFixtureStatus(s string) bool {
	switch FixtureStatus(s) {
	case FixtureStatusPending, FixtureStatusCompleted:
		return true
	}
	return false
}

// Fixture は対戦カードを表す。
// HomeTeam/AwayTeamは作成時点のチームスナップショットの埋め込みで、
// CreatedByはTeamと同様に作成ユーザーの公開ビューの埋め込みスナップショット。
type Fixture struct {
	ID        string        `json:"id"`
	Time      time.Time     `json:"time"`
	HomeTeam  Team          `json:"homeTeam"`
	AwayTeam  Team          `json:"awayTeam"`
	Location  string        `json:"location"`
	Status    FixtureStatus `json:"status"`
	Slug      string        `json:"slug"`
	CreatedBy PublicUser    `json:"createdBy"`
	CreatedAt time.Time     `json:"createdAt"`
}
