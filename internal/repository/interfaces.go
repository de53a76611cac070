// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/matchday/internal/model"
)

// ErrDuplicate はストアの一意制約（users.email、teams.name）違反を示す。
// サービス層でConflictErrorに変換する。
var ErrDuplicate = errors.New("duplicate unique field")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。email重複時はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// SearchByName はnameにキーワードを部分一致で含むユーザーの公開ビューを返す。
	SearchByName(ctx context.Context, keyword string) ([]model.PublicUser, error)

	// SearchByEmail はemailにキーワードを部分一致で含むユーザーの公開ビューを返す。
	SearchByEmail(ctx context.Context, keyword string) ([]model.PublicUser, error)
}

// TeamRepository はチームデータの永続化インターフェース。
type TeamRepository interface {
	// Create はチームを作成する。name重複時はErrDuplicateを返す。
	Create(ctx context.Context, team *model.Team) error

	// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Team, error)

	// FindByName は指定名のチームを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Team, error)

	// List は全チームを返す。スナップショット再構築の読み出し元。
	List(ctx context.Context) ([]model.Team, error)

	// Update はname/stadiumを更新する。name重複時はErrDuplicateを返す。
	Update(ctx context.Context, team *model.Team) error

	// DeleteByID は指定IDのチームを削除する。
	DeleteByID(ctx context.Context, id string) error

	// SearchByName はnameにキーワードを部分一致で含むチームを返す。
	SearchByName(ctx context.Context, keyword string) ([]model.Team, error)

	// SearchByStadium はstadiumにキーワードを部分一致で含むチームを返す。
	SearchByStadium(ctx context.Context, keyword string) ([]model.Team, error)
}

// FixtureRepository は対戦カードデータの永続化インターフェース。
type FixtureRepository interface {
	// Create は対戦カードを作成する。
	Create(ctx context.Context, fixture *model.Fixture) error

	// FindByID は指定IDの対戦カードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Fixture, error)

	// List は全対戦カードを返す。スナップショット再構築の読み出し元。
	List(ctx context.Context) ([]model.Fixture, error)

	// ListByStatus は指定ステータスの対戦カードを返す。
	ListByStatus(ctx context.Context, status model.FixtureStatus) ([]model.Fixture, error)

	// Update はkickoff/homeTeam/awayTeam/location/statusを更新する。
	Update(ctx context.Context, fixture *model.Fixture) error

	// DeleteByID は指定IDの対戦カードを削除する。
	DeleteByID(ctx context.Context, id string) error

	// SearchByLocation はlocationにキーワードを部分一致で含む対戦カードを返す。
	SearchByLocation(ctx context.Context, keyword string) ([]model.Fixture, error)
}
