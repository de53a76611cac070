// Package team はチームのCRUDとキャッシュスナップショットの維持を提供する。
package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/matchday/internal/model"
	"github.com/hitoshi/matchday/internal/repository"
	"github.com/hitoshi/matchday/internal/snapshot"
)

// Service はチームに関するビジネスロジックを提供する。
// すべてのミューテーションは成功後にスナップショットを完全置換する。
// 置換の失敗はログに留め、ミューテーション自体は成功として返す。
type Service struct {
	teams     repository.TeamRepository
	snapshots *snapshot.Collection[model.Team]
}

// NewService はServiceを生成する。
func NewService(teams repository.TeamRepository, snapshots *snapshot.Collection[model.Team]) *Service {
	return &Service{teams: teams, snapshots: snapshots}
}

// Create はチームを作成する。name重複時はConflictエラーを返す。
// createdByには作成時点のactorのスナップショットが埋め込まれる。
func (s *Service) Create(ctx context.Context, actor model.PublicUser, name, stadium string) (*model.Team, error) {
	team := &model.Team{
		ID:        uuid.New().String(),
		Name:      name,
		Stadium:   stadium,
		CreatedBy: actor,
		CreatedAt: time.Now(),
	}

	if err := s.teams.Create(ctx, team); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewConflictError("This team already exists")
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	s.refreshAfterMutation(ctx)

	return team, nil
}

// Update はname/stadiumを更新する。
// 対象が存在しない場合と、actorが作成者でない場合はどちらも404を返す。
// 作成者判定は埋め込みcreatedByのIDとの値比較で行う。
func (s *Service) Update(ctx context.Context, actor model.PublicUser, id, name, stadium string) (*model.Team, error) {
	team, err := s.teams.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	if team == nil {
		return nil, model.NewNotFoundError("This team does not exist")
	}
	if team.CreatedBy.ID != actor.ID {
		return nil, model.NewNotFoundError("You can not update a team you did not create")
	}

	team.Name = name
	team.Stadium = stadium

	if err := s.teams.Update(ctx, team); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewConflictError("This team already exists")
		}
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	s.refreshAfterMutation(ctx)

	return team, nil
}

// Delete はチームを削除する。
// 対象が存在しない場合と、actorが作成者でない場合はどちらも404を返す。
func (s *Service) Delete(ctx context.Context, actor model.PublicUser, id string) error {
	team, err := s.teams.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find team: %w", err)
	}
	if team == nil {
		return model.NewNotFoundError("This team does not exist")
	}
	if team.CreatedBy.ID != actor.ID {
		return model.NewNotFoundError("You can not delete a team you did not create")
	}

	if err := s.teams.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	s.refreshAfterMutation(ctx)

	return nil
}

// GetAll は全チームを返す。スナップショットがあればそこから応答する。
func (s *Service) GetAll(ctx context.Context) ([]model.Team, model.Source, error) {
	return s.snapshots.GetAll(ctx)
}

// GetByID は指定IDのチームを返す。
// 非空のスナップショットが存在する場合はその内容を存在判定の正とする。
func (s *Service) GetByID(ctx context.Context, id string) (*model.Team, model.Source, error) {
	team, source, err := s.snapshots.Find(ctx,
		func(t model.Team) bool { return t.ID == id },
		func(ctx context.Context) (*model.Team, error) {
			return s.teams.FindByID(ctx, id)
		},
	)
	if err != nil {
		return nil, "", err
	}
	if team == nil {
		return nil, source, model.NewNotFoundError("This team does not exist")
	}
	return team, source, nil
}

// refreshAfterMutation はスナップショットを完全置換する。
// ストアの書き込みは確定済みなので、失敗はログに留める。
func (s *Service) refreshAfterMutation(ctx context.Context) {
	if err := s.snapshots.Refresh(ctx); err != nil {
		slog.Warn("team snapshot refresh failed after mutation",
			slog.String("error", err.Error()),
		)
	}
}
