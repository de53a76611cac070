package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/hitoshi/matchday/internal/auth"
	"github.com/hitoshi/matchday/internal/cache"
	"github.com/hitoshi/matchday/internal/fixture"
	"github.com/hitoshi/matchday/internal/middleware"
	"github.com/hitoshi/matchday/internal/model"
	"github.com/hitoshi/matchday/internal/repository"
	"github.com/hitoshi/matchday/internal/search"
	"github.com/hitoshi/matchday/internal/snapshot"
	"github.com/hitoshi/matchday/internal/team"
)

// インメモリ実装の永続ストア。ルーター全体の結合テスト用。

type memUserRepo struct {
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (m *memUserRepo) Create(ctx context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) SearchByName(ctx context.Context, keyword string) ([]model.PublicUser, error) {
	found := []model.PublicUser{}
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Name), strings.ToLower(keyword)) {
			found = append(found, u.Public())
		}
	}
	return found, nil
}

func (m *memUserRepo) SearchByEmail(ctx context.Context, keyword string) ([]model.PublicUser, error) {
	found := []model.PublicUser{}
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Email), strings.ToLower(keyword)) {
			found = append(found, u.Public())
		}
	}
	return found, nil
}

type memTeamRepo struct {
	teams []model.Team
}

func (m *memTeamRepo) Create(ctx context.Context, t *model.Team) error {
	for _, existing := range m.teams {
		if existing.Name == t.Name {
			return repository.ErrDuplicate
		}
	}
	m.teams = append(m.teams, *t)
	return nil
}

func (m *memTeamRepo) FindByID(ctx context.Context, id string) (*model.Team, error) {
	for i := range m.teams {
		if m.teams[i].ID == id {
			copied := m.teams[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memTeamRepo) FindByName(ctx context.Context, name string) (*model.Team, error) {
	for i := range m.teams {
		if m.teams[i].Name == name {
			copied := m.teams[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memTeamRepo) List(ctx context.Context) ([]model.Team, error) {
	return append([]model.Team{}, m.teams...), nil
}

func (m *memTeamRepo) Update(ctx context.Context, t *model.Team) error {
	for i := range m.teams {
		if m.teams[i].ID == t.ID {
			m.teams[i] = *t
			return nil
		}
	}
	return fmt.Errorf("team %s not found", t.ID)
}

func (m *memTeamRepo) DeleteByID(ctx context.Context, id string) error {
	for i := range m.teams {
		if m.teams[i].ID == id {
			m.teams = append(m.teams[:i], m.teams[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memTeamRepo) SearchByName(ctx context.Context, keyword string) ([]model.Team, error) {
	found := []model.Team{}
	for _, t := range m.teams {
		if strings.Contains(strings.ToLower(t.Name), strings.ToLower(keyword)) {
			found = append(found, t)
		}
	}
	return found, nil
}

func (m *memTeamRepo) SearchByStadium(ctx context.Context, keyword string) ([]model.Team, error) {
	found := []model.Team{}
	for _, t := range m.teams {
		if strings.Contains(strings.ToLower(t.Stadium), strings.ToLower(keyword)) {
			found = append(found, t)
		}
	}
	return found, nil
}

type memFixtureRepo struct {
	fixtures []model.Fixture
}

func (m *memFixtureRepo) Create(ctx context.Context, f *model.Fixture) error {
	m.fixtures = append(m.fixtures, *f)
	return nil
}

func (m *memFixtureRepo) FindByID(ctx context.Context, id string) (*model.Fixture, error) {
	for i := range m.fixtures {
		if m.fixtures[i].ID == id {
			copied := m.fixtures[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memFixtureRepo) List(ctx context.Context) ([]model.Fixture, error) {
	return append([]model.Fixture{}, m.fixtures...), nil
}

func (m *memFixtureRepo) ListByStatus(ctx context.Context, status model.FixtureStatus) ([]model.Fixture, error) {
	found := []model.Fixture{}
	for _, f := range m.fixtures {
		if f.Status == status {
			found = append(found, f)
		}
	}
	return found, nil
}

func (m *memFixtureRepo) Update(ctx context.Context, f *model.Fixture) error {
	for i := range m.fixtures {
		if m.fixtures[i].ID == f.ID {
			m.fixtures[i] = *f
			return nil
		}
	}
	return fmt.Errorf("fixture %s not found", f.ID)
}

func (m *memFixtureRepo) DeleteByID(ctx context.Context, id string) error {
	for i := range m.fixtures {
		if m.fixtures[i].ID == id {
			m.fixtures = append(m.fixtures[:i], m.fixtures[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memFixtureRepo) SearchByLocation(ctx context.Context, keyword string) ([]model.Fixture, error) {
	found := []model.Fixture{}
	for _, f := range m.fixtures {
		if strings.Contains(strings.ToLower(f.Location), strings.ToLower(keyword)) {
			found = append(found, f)
		}
	}
	return found, nil
}

// testEnv は結合テスト用に組み上げた全コンポーネント。
type testEnv struct {
	router http.Handler
	users  *memUserRepo
	mr     *miniredis.Miniredis
}

// newTestEnv は実サービス・実ミドルウェア・miniredisで構成したルーターを返す。
// rateMaxはユーザー別固定窓レートリミッターの上限。
func newTestEnv(t *testing.T, rateMax int) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", mr.Addr())
		},
	}
	store := cache.NewWithPool(pool)

	users := newMemUserRepo()
	teams := &memTeamRepo{}
	fixtures := &memFixtureRepo{}

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	sessions := auth.NewSessionBinder(store, time.Hour)
	authSvc := auth.NewService(users, tokens, sessions)

	teamCol := snapshot.NewCollection("teams", store, time.Hour, teams.List, nil)
	fixtureCol := snapshot.NewCollection("fixtures", store, time.Hour, fixtures.List, nil)

	teamSvc := team.NewService(teams, teamCol)
	fixtureSvc := fixture.NewService(fixtures, teams, fixtureCol)
	searchSvc := search.NewService(users, teams, fixtures)

	throttle := middleware.NewAuthThrottle(middleware.AuthThrottleConfig{
		Rate:            rate.Limit(1000),
		Burst:           1000,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(throttle.Stop)

	router := NewRouter(&RouterDeps{
		TokenVerifier:  tokens,
		SessionChecker: sessions,
		UserFinder:     users,
		RateLimiter:    middleware.NewRateLimiter(store, rateMax, time.Minute, time.Hour, nil),
		AuthThrottle:   throttle,
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthService:    authSvc,
		TeamService:    teamSvc,
		FixtureService: fixtureSvc,
		SearchService:  searchSvc,
		CachePinger:    store,
	})

	return &testEnv{router: router, users: users, mr: mr}
}

// seedAdmin は管理者ユーザーを直接ストアに作り、ログインしてトークンを返す。
func (env *testEnv) seedAdmin(t *testing.T, id, email string) string {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("adminpass1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	env.users.users[id] = &model.User{
		ID:        id,
		Name:      "admin " + id,
		Email:     email,
		Password:  string(hashed),
		Admin:     true,
		CreatedAt: time.Now(),
	}

	body := fmt.Sprintf(`{"email":%q,"password":"adminpass1"}`, email)
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	return resp.Data.Token
}

func (env *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Source  string          `json:"source"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("failed to decode envelope: %v (%s)", err, rec.Body.String())
	}
	return e
}

func TestRouter_TeamLifecycle(t *testing.T) {
	env := newTestEnv(t, 100)
	creator := env.seedAdmin(t, "admin-1", "one@example.com")
	other := env.seedAdmin(t, "admin-2", "two@example.com")

	// 作成はdbオリジンで201
	rec := env.do(t, http.MethodPost, "/api/v1/team", `{"name":"Arsenal","stadium":"Emirates"}`, creator)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	e := decodeEnvelope(t, rec)
	if e.Source != "db" || e.Message != "Team created" {
		t.Errorf("create envelope = %+v", e)
	}
	var created model.Team
	if err := json.Unmarshal(e.Data, &created); err != nil {
		t.Fatalf("failed to decode team: %v", err)
	}
	if created.CreatedBy.ID != "admin-1" {
		t.Errorf("createdBy = %q", created.CreatedBy.ID)
	}

	// 作成直後はスナップショットが温まっているので一覧はcacheから返る
	rec = env.do(t, http.MethodGet, "/api/v1/team", "", "")
	e = decodeEnvelope(t, rec)
	if e.Source != "cache" || e.Message != "All Teams" {
		t.Errorf("list envelope = %+v", e)
	}

	// 単一取得もcacheから
	rec = env.do(t, http.MethodGet, "/api/v1/team/"+created.ID, "", "")
	e = decodeEnvelope(t, rec)
	if e.Source != "cache" || e.Message != "Team Found" {
		t.Errorf("get envelope = %+v", e)
	}

	// 重複作成は409
	rec = env.do(t, http.MethodPost, "/api/v1/team", `{"name":"Arsenal","stadium":"Elsewhere"}`, creator)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create: %d", rec.Code)
	}

	// 別の管理者による更新は404で、存在も漏らさない
	rec = env.do(t, http.MethodPatch, "/api/v1/team/"+created.ID, `{"name":"FC Arsenal","stadium":"Emirates"}`, other)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign update: %d %s", rec.Code, rec.Body.String())
	}
	e = decodeEnvelope(t, rec)
	if e.Message != "You can not update a team you did not create" {
		t.Errorf("foreign update message = %q", e.Message)
	}

	// 作成者による更新は通る
	rec = env.do(t, http.MethodPatch, "/api/v1/team/"+created.ID, `{"name":"FC Arsenal","stadium":"Emirates"}`, creator)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}

	// 削除はserverオリジン
	rec = env.do(t, http.MethodDelete, "/api/v1/team/"+created.ID, "", creator)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	e = decodeEnvelope(t, rec)
	if e.Source != "server" || e.Message != "Team has been deleted" {
		t.Errorf("delete envelope = %+v", e)
	}

	// 削除後の一覧は空。空スナップショットはミス扱いでストアへ行く
	rec = env.do(t, http.MethodGet, "/api/v1/team", "", "")
	e = decodeEnvelope(t, rec)
	if e.Message != "Nothing here" || e.Source != "db" {
		t.Errorf("empty list envelope = %+v", e)
	}
}

func TestRouter_FixtureFlow(t *testing.T) {
	env := newTestEnv(t, 100)
	admin := env.seedAdmin(t, "admin-1", "one@example.com")

	for _, body := range []string{
		`{"name":"Arsenal","stadium":"Emirates"}`,
		`{"name":"Chelsea","stadium":"Stamford Bridge"}`,
	} {
		if rec := env.do(t, http.MethodPost, "/api/v1/team", body, admin); rec.Code != http.StatusCreated {
			t.Fatalf("team setup: %d %s", rec.Code, rec.Body.String())
		}
	}

	// 未認証の読み取りは401
	rec := env.do(t, http.MethodGet, "/api/v1/fixture", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated read: %d", rec.Code)
	}
	e := decodeEnvelope(t, rec)
	if e.Message != "Unauthorized - Header Not Set" {
		t.Errorf("message = %q", e.Message)
	}

	// 未知のチームを含む作成は400
	rec = env.do(t, http.MethodPost, "/api/v1/fixture",
		`{"time":"2026-09-12T15:00:00Z","home":"Arsenal","away":"Ghost FC","location":"London"}`, admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown team: %d %s", rec.Code, rec.Body.String())
	}
	e = decodeEnvelope(t, rec)
	if e.Message != "One or both of the teams does not exist" {
		t.Errorf("message = %q", e.Message)
	}

	// 正常作成
	rec = env.do(t, http.MethodPost, "/api/v1/fixture",
		`{"time":"2026-09-12T15:00:00Z","home":"Arsenal","away":"Chelsea","location":"London"}`, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create fixture: %d %s", rec.Code, rec.Body.String())
	}
	e = decodeEnvelope(t, rec)
	var created model.Fixture
	if err := json.Unmarshal(e.Data, &created); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
	if created.Status != model.FixtureStatusPending {
		t.Errorf("status = %q, want pending", created.Status)
	}
	if !strings.HasPrefix(created.Slug, "arsenal-chelsea-") {
		t.Errorf("slug = %q", created.Slug)
	}

	// ステータス別取得はスナップショットのフィルタで応答する
	rec = env.do(t, http.MethodGet, "/api/v1/fixture/status/pending", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("by status: %d %s", rec.Code, rec.Body.String())
	}
	e = decodeEnvelope(t, rec)
	if e.Source != "cache" || e.Message != "Fixtures Found" {
		t.Errorf("by status envelope = %+v", e)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/fixture/status/postponed", "", admin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status: %d", rec.Code)
	}
}

func TestRouter_RateLimitSaturation(t *testing.T) {
	env := newTestEnv(t, 2)
	admin := env.seedAdmin(t, "admin-1", "one@example.com")

	for i := 0; i < 2; i++ {
		body := fmt.Sprintf(`{"name":"Team %d","stadium":"Stadium %d"}`, i, i)
		if rec := env.do(t, http.MethodPost, "/api/v1/team", body, admin); rec.Code != http.StatusCreated {
			t.Fatalf("request %d: %d %s", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, http.MethodPost, "/api/v1/team", `{"name":"Over","stadium":"Limit"}`, admin)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("saturated: %d %s", rec.Code, rec.Body.String())
	}
	e := decodeEnvelope(t, rec)
	if e.Message != "API Request limit exceeded. Please try again later" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestRouter_ReloginInvalidatesOldToken(t *testing.T) {
	env := newTestEnv(t, 100)
	first := env.seedAdmin(t, "admin-1", "one@example.com")

	// 再ログインでセッションバインディングが新しいjtiに置き換わる
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login",
		`{"email":"one@example.com","password":"adminpass1"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("relogin: %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/fixture", "", first)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stale token: %d %s", rec.Code, rec.Body.String())
	}
	e := decodeEnvelope(t, rec)
	if e.Message != "Your session has expired, please login" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestRouter_NonAdminCannotMutate(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/signup",
		`{"name":"regular fan","email":"fan@example.com","password":"fanpass123"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode signup response: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/team", `{"name":"Arsenal","stadium":"Emirates"}`, resp.Data.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("non-admin mutation: %d %s", rec.Code, rec.Body.String())
	}
	e := decodeEnvelope(t, rec)
	if e.Message != "You are not authorized to make this action" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestRouter_SearchBuckets(t *testing.T) {
	env := newTestEnv(t, 100)
	admin := env.seedAdmin(t, "admin-1", "one@example.com")

	if rec := env.do(t, http.MethodPost, "/api/v1/team", `{"name":"London FC","stadium":"Wembley"}`, admin); rec.Code != http.StatusCreated {
		t.Fatalf("team setup: %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/search?keyword=london", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
	e := decodeEnvelope(t, rec)
	if e.Source != "db" || e.Message != "Found" {
		t.Errorf("search envelope = %+v", e)
	}

	var result struct {
		Users    []model.PublicUser `json:"users"`
		Emails   []model.PublicUser `json:"emails"`
		Teams    []model.Team       `json:"teams"`
		Stadiums []model.Team       `json:"stadiums"`
		Fixtures []model.Fixture    `json:"fixtures"`
	}
	if err := json.Unmarshal(e.Data, &result); err != nil {
		t.Fatalf("failed to decode search result: %v", err)
	}
	if len(result.Teams) != 1 {
		t.Errorf("teams bucket = %+v", result.Teams)
	}
	if result.Fixtures == nil {
		t.Error("fixtures bucket is nil")
	}

	// キーワードなしは400
	rec = env.do(t, http.MethodGet, "/api/v1/search", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing keyword: %d", rec.Code)
	}
}

func TestRouter_UnmatchedRoutesAre405(t *testing.T) {
	env := newTestEnv(t, 100)

	for _, tt := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/nonexistent"},
		{http.MethodPut, "/api/v1/team"},
		{http.MethodPost, "/totally/unknown"},
	} {
		rec := env.do(t, tt.method, tt.path, "", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: %d, want 405", tt.method, tt.path, rec.Code)
		}
		e := decodeEnvelope(t, rec)
		if e.Status != "error" {
			t.Errorf("%s %s: status = %q", tt.method, tt.path, e.Status)
		}
	}
}

func TestRouter_Healthz(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
}
