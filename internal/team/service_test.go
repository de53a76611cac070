package team

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"

	"github.com/hitoshi/matchday/internal/cache"
	"github.com/hitoshi/matchday/internal/model"
	"github.com/hitoshi/matchday/internal/repository"
	"github.com/hitoshi/matchday/internal/snapshot"
)

type mockTeamRepo struct {
	createFn          func(ctx context.Context, team *model.Team) error
	findByIDFn        func(ctx context.Context, id string) (*model.Team, error)
	findByNameFn      func(ctx context.Context, name string) (*model.Team, error)
	listFn            func(ctx context.Context) ([]model.Team, error)
	updateFn          func(ctx context.Context, team *model.Team) error
	deleteByIDFn      func(ctx context.Context, id string) error
	searchByNameFn    func(ctx context.Context, keyword string) ([]model.Team, error)
	searchByStadiumFn func(ctx context.Context, keyword string) ([]model.Team, error)
}

var _ repository.TeamRepository = (*mockTeamRepo)(nil)

func (m *mockTeamRepo) Create(ctx context.Context, team *model.Team) error {
	return m.createFn(ctx, team)
}

func (m *mockTeamRepo) FindByID(ctx context.Context, id string) (*model.Team, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockTeamRepo) FindByName(ctx context.Context, name string) (*model.Team, error) {
	return m.findByNameFn(ctx, name)
}

func (m *mockTeamRepo) List(ctx context.Context) ([]model.Team, error) {
	if m.listFn == nil {
		return []model.Team{}, nil
	}
	return m.listFn(ctx)
}

func (m *mockTeamRepo) Update(ctx context.Context, team *model.Team) error {
	return m.updateFn(ctx, team)
}

func (m *mockTeamRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteByIDFn(ctx, id)
}

func (m *mockTeamRepo) SearchByName(ctx context.Context, keyword string) ([]model.Team, error) {
	return m.searchByNameFn(ctx, keyword)
}

func (m *mockTeamRepo) SearchByStadium(ctx context.Context, keyword string) ([]model.Team, error) {
	return m.searchByStadiumFn(ctx, keyword)
}

func newTestService(t *testing.T, repo *mockTeamRepo) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", mr.Addr())
		},
	}
	store := cache.NewWithPool(pool)
	col := snapshot.NewCollection("teams", store, time.Hour, repo.List, nil)
	return NewService(repo, col), mr
}

func snapshotTeams(t *testing.T, mr *miniredis.Miniredis) []model.Team {
	t.Helper()
	raw, err := mr.Get("teams")
	if err != nil {
		t.Fatalf("teams snapshot missing: %v", err)
	}
	var teams []model.Team
	if err := json.Unmarshal([]byte(raw), &teams); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return teams
}

func TestCreate(t *testing.T) {
	actor := model.PublicUser{ID: "u1", Name: "admin-one", Admin: true}

	var created *model.Team
	repo := &mockTeamRepo{
		createFn: func(ctx context.Context, team *model.Team) error {
			created = team
			return nil
		},
		listFn: func(ctx context.Context) ([]model.Team, error) {
			if created == nil {
				return []model.Team{}, nil
			}
			return []model.Team{*created}, nil
		},
	}
	svc, mr := newTestService(t, repo)

	team, err := svc.Create(context.Background(), actor, "Arsenal", "Emirates")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if team.ID == "" {
		t.Error("team ID not assigned")
	}
	if team.CreatedBy.ID != "u1" {
		t.Errorf("createdBy = %q, want u1", team.CreatedBy.ID)
	}

	// ミューテーション成功後はスナップショットが完全置換される
	teams := snapshotTeams(t, mr)
	if len(teams) != 1 || teams[0].Name != "Arsenal" {
		t.Errorf("snapshot = %+v", teams)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	repo := &mockTeamRepo{
		createFn: func(ctx context.Context, team *model.Team) error {
			return repository.ErrDuplicate
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.Create(context.Background(), model.PublicUser{ID: "u1"}, "Arsenal", "Emirates")

	var reqErr *model.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T", err)
	}
	if reqErr.Status != 409 {
		t.Errorf("status = %d, want 409", reqErr.Status)
	}
	if reqErr.Message != "This team already exists" {
		t.Errorf("message = %q", reqErr.Message)
	}
}

func TestCreate_RefreshFailureDoesNotFailMutation(t *testing.T) {
	repo := &mockTeamRepo{
		createFn: func(ctx context.Context, team *model.Team) error {
			return nil
		},
		listFn: func(ctx context.Context) ([]model.Team, error) {
			return nil, errors.New("store down during refresh")
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.Create(context.Background(), model.PublicUser{ID: "u1"}, "Arsenal", "Emirates")
	if err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
}

func TestUpdate_Ownership(t *testing.T) {
	stored := &model.Team{
		ID:        "t1",
		Name:      "Arsenal",
		Stadium:   "Emirates",
		CreatedBy: model.PublicUser{ID: "owner"},
	}

	updateCalled := false
	repo := &mockTeamRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Team, error) {
			return stored, nil
		},
		updateFn: func(ctx context.Context, team *model.Team) error {
			updateCalled = true
			return nil
		},
	}
	svc, _ := newTestService(t, repo)

	// 所有者でない管理者による更新は404で、ストアは変更されない
	_, err := svc.Update(context.Background(), model.PublicUser{ID: "other-admin", Admin: true}, "t1", "FC Arsenal", "Emirates")

	var reqErr *model.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T", err)
	}
	if reqErr.Status != 404 {
		t.Errorf("status = %d, want 404", reqErr.Status)
	}
	if reqErr.Message != "You can not update a team you did not create" {
		t.Errorf("message = %q", reqErr.Message)
	}
	if updateCalled {
		t.Error("store record was modified")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo := &mockTeamRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Team, error) {
			return nil, nil
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.Update(context.Background(), model.PublicUser{ID: "u1"}, "missing", "Name", "Stadium")

	var reqErr *model.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T", err)
	}
	if reqErr.Status != 404 || reqErr.Message != "This team does not exist" {
		t.Errorf("got %d %q", reqErr.Status, reqErr.Message)
	}
}

func TestDelete(t *testing.T) {
	stored := &model.Team{ID: "t1", Name: "Arsenal", CreatedBy: model.PublicUser{ID: "owner"}}

	deleted := false
	repo := &mockTeamRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Team, error) {
			return stored, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
		listFn: func(ctx context.Context) ([]model.Team, error) {
			return []model.Team{}, nil
		},
	}
	svc, mr := newTestService(t, repo)

	if err := svc.Delete(context.Background(), model.PublicUser{ID: "owner"}, "t1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Error("store record was not deleted")
	}

	// コレクションが空になっても空配列のスナップショットが書かれる
	teams := snapshotTeams(t, mr)
	if len(teams) != 0 {
		t.Errorf("snapshot = %+v, want empty", teams)
	}
}

func TestDelete_NotCreator(t *testing.T) {
	stored := &model.Team{ID: "t1", CreatedBy: model.PublicUser{ID: "owner"}}
	repo := &mockTeamRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Team, error) {
			return stored, nil
		},
	}
	svc, _ := newTestService(t, repo)

	err := svc.Delete(context.Background(), model.PublicUser{ID: "other"}, "t1")

	var reqErr *model.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T", err)
	}
	if reqErr.Status != 404 || reqErr.Message != "You can not delete a team you did not create" {
		t.Errorf("got %d %q", reqErr.Status, reqErr.Message)
	}
}

func TestGetByID_PopulatedSnapshotIsAuthoritative(t *testing.T) {
	inStore := &model.Team{ID: "t2", Name: "Chelsea"}
	fetchCalled := false
	repo := &mockTeamRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Team, error) {
			fetchCalled = true
			return inStore, nil
		},
	}
	svc, mr := newTestService(t, repo)

	raw, _ := json.Marshal([]model.Team{{ID: "t1", Name: "Arsenal"}})
	mr.Set("teams", string(raw))

	// スナップショットにある方はcacheから返る
	team, source, err := svc.GetByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetByID(t1) error = %v", err)
	}
	if source != model.SourceCache {
		t.Errorf("source = %q, want cache", source)
	}
	if team.Name != "Arsenal" {
		t.Errorf("team = %+v", team)
	}

	// スナップショットにない方はストアより新しくても404
	_, _, err = svc.GetByID(context.Background(), "t2")
	var reqErr *model.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T", err)
	}
	if reqErr.Status != 404 || reqErr.Message != "This team does not exist" {
		t.Errorf("got %d %q", reqErr.Status, reqErr.Message)
	}
	if fetchCalled {
		t.Error("store was consulted despite populated snapshot")
	}
}

func TestGetAll(t *testing.T) {
	repo := &mockTeamRepo{
		listFn: func(ctx context.Context) ([]model.Team, error) {
			return []model.Team{{ID: "t1", Name: "Arsenal"}}, nil
		},
	}
	svc, _ := newTestService(t, repo)

	// 初回はストアから読み、スナップショットを書き戻す
	teams, source, err := svc.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if source != model.SourceDB {
		t.Errorf("first source = %q, want db", source)
	}
	if len(teams) != 1 {
		t.Fatalf("len = %d", len(teams))
	}

	// 2回目はスナップショットから返る
	_, source, err = svc.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() second error = %v", err)
	}
	if source != model.SourceCache {
		t.Errorf("second source = %q, want cache", source)
	}
}
