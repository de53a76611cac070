// Package search はユーザー・チーム・対戦カードの横断キーワード検索を提供する。
package search

import (
	"context"
	"fmt"

	"github.com/hitoshi/matchday/internal/model"
	"github.com/hitoshi/matchday/internal/repository"
)

// Result は1キーワードに対する全バケットの検索結果。
// ヒットしなかったバケットは空配列になる（nilではない）。
type Result struct {
	Users    []model.PublicUser `json:"users"`
	Emails   []model.PublicUser `json:"emails"`
	Teams    []model.Team       `json:"teams"`
	Stadiums []model.Team       `json:"stadiums"`
	Fixtures []model.Fixture    `json:"fixtures"`
}

// Service は横断検索を提供する。検索は常にストアを直接引く。
type Service struct {
	users    repository.UserRepository
	teams    repository.TeamRepository
	fixtures repository.FixtureRepository
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	teams repository.TeamRepository,
	fixtures repository.FixtureRepository,
) *Service {
	return &Service{users: users, teams: teams, fixtures: fixtures}
}

// Search はキーワードを5つのフィールド（ユーザー名、メール、チーム名、
// スタジアム、開催地）に対して部分一致で照合し、バケットごとの結果を返す。
func (s *Service) Search(ctx context.Context, keyword string) (*Result, error) {
	users, err := s.users.SearchByName(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to search users by name: %w", err)
	}
	emails, err := s.users.SearchByEmail(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to search users by email: %w", err)
	}
	teams, err := s.teams.SearchByName(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to search teams by name: %w", err)
	}
	stadiums, err := s.teams.SearchByStadium(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to search teams by stadium: %w", err)
	}
	fixtures, err := s.fixtures.SearchByLocation(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to search fixtures by location: %w", err)
	}

	result := &Result{
		Users:    users,
		Emails:   emails,
		Teams:    teams,
		Stadiums: stadiums,
		Fixtures: fixtures,
	}
	if result.Users == nil {
		result.Users = []model.PublicUser{}
	}
	if result.Emails == nil {
		result.Emails = []model.PublicUser{}
	}
	if result.Teams == nil {
		result.Teams = []model.Team{}
	}
	if result.Stadiums == nil {
		result.Stadiums = []model.Team{}
	}
	if result.Fixtures == nil {
		result.Fixtures = []model.Fixture{}
	}
	return result, nil
}
