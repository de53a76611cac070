// Package fixture は対戦カードのCRUDとキャッシュスナップショットの維持を提供する。
package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/matchday/internal/model"
	"github.com/hitoshi/matchday/internal/repository"
	"github.com/hitoshi/matchday/internal/snapshot"
)

// Input は対戦カードの作成・更新リクエストの入力。
// HomeとAwayはチーム名で指定し、ストア上の実チームに解決される。
type Input struct {
	Time     time.Time
	Home     string
	Away     string
	Location string
	Status   model.FixtureStatus
}

// Service は対戦カードに関するビジネスロジックを提供する。
// チームサービスと同様、ミューテーション成功後にスナップショットを完全置換する。
type Service struct {
	fixtures  repository.FixtureRepository
	teams     repository.TeamRepository
	snapshots *snapshot.Collection[model.Fixture]
}

// NewService はServiceを生成する。
func NewService(
	fixtures repository.FixtureRepository,
	teams repository.TeamRepository,
	snapshots *snapshot.Collection[model.Fixture],
) *Service {
	return &Service{fixtures: fixtures, teams: teams, snapshots: snapshots}
}

// Create は対戦カードを作成する。
// home/awayをチーム名で解決し、どちらかが存在しなければ400を返す。
// homeTeam/awayTeam/createdByには解決時点のスナップショットが埋め込まれる。
func (s *Service) Create(ctx context.Context, actor model.PublicUser, in Input) (*model.Fixture, error) {
	home, away, err := s.resolveTeams(ctx, in.Home, in.Away)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = model.FixtureStatusPending
	}

	fixture := &model.Fixture{
		ID:        uuid.New().String(),
		Time:      in.Time,
		HomeTeam:  *home,
		AwayTeam:  *away,
		Location:  in.Location,
		Status:    status,
		Slug:      newSlug(in.Home, in.Away),
		CreatedBy: actor,
		CreatedAt: time.Now(),
	}

	if err := s.fixtures.Create(ctx, fixture); err != nil {
		return nil, fmt.Errorf("failed to create fixture: %w", err)
	}

	s.refreshAfterMutation(ctx)

	return fixture, nil
}

// Update はtime/homeTeam/awayTeam/location/statusを更新する。slugは変更しない。
// チーム解決の失敗は存在チェックより先に報告する。
// 対象が存在しない場合と、actorが作成者でない場合はどちらも404を返す。
func (s *Service) Update(ctx context.Context, actor model.PublicUser, id string, in Input) (*model.Fixture, error) {
	home, away, err := s.resolveTeams(ctx, in.Home, in.Away)
	if err != nil {
		return nil, err
	}

	fixture, err := s.fixtures.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find fixture: %w", err)
	}
	if fixture == nil {
		return nil, model.NewNotFoundError("This fixture does not exist")
	}
	if fixture.CreatedBy.ID != actor.ID {
		return nil, model.NewNotFoundError("You can not update a fixture you did not create")
	}

	fixture.Time = in.Time
	fixture.HomeTeam = *home
	fixture.AwayTeam = *away
	fixture.Location = in.Location
	if in.Status != "" {
		fixture.Status = in.Status
	}

	if err := s.fixtures.Update(ctx, fixture); err != nil {
		return nil, fmt.Errorf("failed to update fixture: %w", err)
	}

	s.refreshAfterMutation(ctx)

	return fixture, nil
}

// Delete は対戦カードを削除する。
// 対象が存在しない場合と、actorが作成者でない場合はどちらも404を返す。
func (s *Service) Delete(ctx context.Context, actor model.PublicUser, id string) error {
	fixture, err := s.fixtures.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find fixture: %w", err)
	}
	if fixture == nil {
		return model.NewNotFoundError("This fixture does not exist")
	}
	if fixture.CreatedBy.ID != actor.ID {
		return model.NewNotFoundError("You can not delete a fixture you did not create")
	}

	if err := s.fixtures.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete fixture: %w", err)
	}

	s.refreshAfterMutation(ctx)

	return nil
}

// GetAll は全対戦カードを返す。スナップショットがあればそこから応答する。
func (s *Service) GetAll(ctx context.Context) ([]model.Fixture, model.Source, error) {
	return s.snapshots.GetAll(ctx)
}

// GetByID は指定IDの対戦カードを返す。
// 非空のスナップショットが存在する場合はその内容を存在判定の正とする。
func (s *Service) GetByID(ctx context.Context, id string) (*model.Fixture, model.Source, error) {
	fixture, source, err := s.snapshots.Find(ctx,
		func(f model.Fixture) bool { return f.ID == id },
		func(ctx context.Context) (*model.Fixture, error) {
			return s.fixtures.FindByID(ctx, id)
		},
	)
	if err != nil {
		return nil, "", err
	}
	if fixture == nil {
		return nil, source, model.NewNotFoundError("This fixture does not exist")
	}
	return fixture, source, nil
}

// GetByStatus は指定ステータスの対戦カードを返す。
// 未定義のステータスは400。空の結果はエラーではない。
func (s *Service) GetByStatus(ctx context.Context, status string) ([]model.Fixture, model.Source, error) {
	if !model.ValidFixtureStatus(status) {
		return nil, "", model.NewBadRequestError("Invalid fixture status")
	}
	want := model.FixtureStatus(status)

	return s.snapshots.Filter(ctx,
		func(f model.Fixture) bool { return f.Status == want },
		func(ctx context.Context) ([]model.Fixture, error) {
			return s.fixtures.ListByStatus(ctx, want)
		},
	)
}

// resolveTeams はhome/awayのチーム名をストア上のチームに解決する。
func (s *Service) resolveTeams(ctx context.Context, home, away string) (*model.Team, *model.Team, error) {
	homeTeam, err := s.teams.FindByName(ctx, home)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find home team: %w", err)
	}
	awayTeam, err := s.teams.FindByName(ctx, away)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find away team: %w", err)
	}
	if homeTeam == nil || awayTeam == nil {
		return nil, nil, model.NewBadRequestError("One or both of the teams does not exist")
	}
	return homeTeam, awayTeam, nil
}

// refreshAfterMutation はスナップショットを完全置換する。
// ストアの書き込みは確定済みなので、失敗はログに留める。
func (s *Service) refreshAfterMutation(ctx context.Context) {
	if err := s.snapshots.Refresh(ctx); err != nil {
		slog.Warn("fixture snapshot refresh failed after mutation",
			slog.String("error", err.Error()),
		)
	}
}
