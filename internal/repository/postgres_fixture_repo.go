package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/matchday/internal/model"
)

// PostgresFixtureRepo はPostgreSQLを使用した対戦カードリポジトリ。
// homeTeam/awayTeam/createdByは作成時点のスナップショットをJSONBとして埋め込む。
type PostgresFixtureRepo struct {
	db *sql.DB
}

// NewPostgresFixtureRepo はPostgresFixtureRepoを生成する。
func NewPostgresFixtureRepo(db *sql.DB) *PostgresFixtureRepo {
	return &PostgresFixtureRepo{db: db}
}

const fixtureColumns = `id, kickoff, home_team, away_team, location, status, slug, created_by, created_at`

// Create は対戦カードを作成する。
func (r *PostgresFixtureRepo) Create(ctx context.Context, fixture *model.Fixture) error {
	homeTeam, awayTeam, createdBy, err := encodeFixtureSnapshots(fixture)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO fixtures (`+fixtureColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		fixture.ID, fixture.Time, homeTeam, awayTeam,
		fixture.Location, fixture.Status, fixture.Slug, createdBy, fixture.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fixture: %w", err)
	}
	return nil
}

// FindByID は指定IDの対戦カードを取得する。見つからない場合はnilを返す。
func (r *PostgresFixtureRepo) FindByID(ctx context.Context, id string) (*model.Fixture, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+fixtureColumns+` FROM fixtures WHERE id = $1`, id)
	fixture, err := scanFixture(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find fixture: %w", err)
	}
	return fixture, nil
}

// List は全対戦カードを作成順で返す。
func (r *PostgresFixtureRepo) List(ctx context.Context) ([]model.Fixture, error) {
	return r.list(ctx,
		`SELECT `+fixtureColumns+` FROM fixtures ORDER BY created_at`)
}

// ListByStatus は指定ステータスの対戦カードを返す。
func (r *PostgresFixtureRepo) ListByStatus(ctx context.Context, status model.FixtureStatus) ([]model.Fixture, error) {
	return r.list(ctx,
		`SELECT `+fixtureColumns+` FROM fixtures WHERE status = $1 ORDER BY created_at`, string(status))
}

// Update はkickoff/homeTeam/awayTeam/location/statusを更新する。
func (r *PostgresFixtureRepo) Update(ctx context.Context, fixture *model.Fixture) error {
	homeTeam, awayTeam, _, err := encodeFixtureSnapshots(fixture)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE fixtures SET kickoff = $1, home_team = $2, away_team = $3, location = $4, status = $5
		 WHERE id = $6`,
		fixture.Time, homeTeam, awayTeam, fixture.Location, fixture.Status, fixture.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fixture: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("fixture not found: %s", fixture.ID)
	}
	return nil
}

// DeleteByID は指定IDの対戦カードを削除する。
func (r *PostgresFixtureRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM fixtures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fixture: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("fixture not found: %s", id)
	}
	return nil
}

// SearchByLocation はlocationにキーワードを部分一致で含む対戦カードを返す。
func (r *PostgresFixtureRepo) SearchByLocation(ctx context.Context, keyword string) ([]model.Fixture, error) {
	return r.list(ctx,
		`SELECT `+fixtureColumns+` FROM fixtures WHERE location ILIKE $1 ORDER BY created_at`,
		"%"+keyword+"%")
}

func (r *PostgresFixtureRepo) list(ctx context.Context, query string, args ...any) ([]model.Fixture, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	defer rows.Close()

	fixtures := []model.Fixture{}
	for rows.Next() {
		fixture, err := scanFixture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixture: %w", err)
		}
		fixtures = append(fixtures, *fixture)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fixtures: %w", err)
	}
	return fixtures, nil
}

// encodeFixtureSnapshots は埋め込みスナップショットをJSONBに変換する。
func encodeFixtureSnapshots(fixture *model.Fixture) (homeTeam, awayTeam, createdBy []byte, err error) {
	homeTeam, err = json.Marshal(fixture.HomeTeam)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode homeTeam: %w", err)
	}
	awayTeam, err = json.Marshal(fixture.AwayTeam)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode awayTeam: %w", err)
	}
	createdBy, err = json.Marshal(fixture.CreatedBy)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode createdBy: %w", err)
	}
	return homeTeam, awayTeam, createdBy, nil
}

// scanFixture は1行をFixtureにスキャンする。JSONB列をスナップショットに復元する。
func scanFixture(row rowScanner) (*model.Fixture, error) {
	fixture := &model.Fixture{}
	var homeTeam, awayTeam, createdBy []byte
	var status string
	if err := row.Scan(
		&fixture.ID, &fixture.Time, &homeTeam, &awayTeam,
		&fixture.Location, &status, &fixture.Slug, &createdBy, &fixture.CreatedAt,
	); err != nil {
		return nil, err
	}
	fixture.Status = model.FixtureStatus(status)
	if err := json.Unmarshal(homeTeam, &fixture.HomeTeam); err != nil {
		return nil, fmt.Errorf("failed to decode homeTeam: %w", err)
	}
	if err := json.Unmarshal(awayTeam, &fixture.AwayTeam); err != nil {
		return nil, fmt.Errorf("failed to decode awayTeam: %w", err)
	}
	if err := json.Unmarshal(createdBy, &fixture.CreatedBy); err != nil {
		return nil, fmt.Errorf("failed to decode createdBy: %w", err)
	}
	return fixture, nil
}

// compile-time interface check
var _ FixtureRepository = (*PostgresFixtureRepo)(nil)
