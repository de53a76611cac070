package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/matchday/internal/model"
)

// PostgresTeamRepo はPostgreSQLを使用したチームリポジトリ。
// createdByは作成時点のユーザー公開ビューをJSONBとして埋め込む。
type PostgresTeamRepo struct {
	db *sql.DB
}

// NewPostgresTeamRepo はPostgresTeamRepoを生成する。
func NewPostgresTeamRepo(db *sql.DB) *PostgresTeamRepo {
	return &PostgresTeamRepo{db: db}
}

// Create はチームを作成する。name重複時はErrDuplicateを返す。
func (r *PostgresTeamRepo) Create(ctx context.Context, team *model.Team) error {
	createdBy, err := json.Marshal(team.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to encode createdBy: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, stadium, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		team.ID, team.Name, team.Stadium, createdBy, team.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindByID(ctx context.Context, id string) (*model.Team, error) {
	return r.findOne(ctx,
		`SELECT id, name, stadium, created_by, created_at FROM teams WHERE id = $1`, id)
}

// FindByName は指定名のチームを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindByName(ctx context.Context, name string) (*model.Team, error) {
	return r.findOne(ctx,
		`SELECT id, name, stadium, created_by, created_at FROM teams WHERE name = $1`, name)
}

func (r *PostgresTeamRepo) findOne(ctx context.Context, query string, arg any) (*model.Team, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	team, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return team, nil
}

// List は全チームを作成順で返す。
func (r *PostgresTeamRepo) List(ctx context.Context) ([]model.Team, error) {
	return r.list(ctx,
		`SELECT id, name, stadium, created_by, created_at FROM teams ORDER BY created_at`)
}

// Update はname/stadiumを更新する。name重複時はErrDuplicateを返す。
func (r *PostgresTeamRepo) Update(ctx context.Context, team *model.Team) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE teams SET name = $1, stadium = $2 WHERE id = $3`,
		team.Name, team.Stadium, team.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("team not found: %s", team.ID)
	}
	return nil
}

// DeleteByID は指定IDのチームを削除する。
func (r *PostgresTeamRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("team not found: %s", id)
	}
	return nil
}

// SearchByName はnameにキーワードを部分一致で含むチームを返す。
func (r *PostgresTeamRepo) SearchByName(ctx context.Context, keyword string) ([]model.Team, error) {
	return r.list(ctx,
		`SELECT id, name, stadium, created_by, created_at FROM teams WHERE name ILIKE $1 ORDER BY created_at`,
		"%"+keyword+"%")
}

// SearchByStadium はstadiumにキーワードを部分一致で含むチームを返す。
func (r *PostgresTeamRepo) SearchByStadium(ctx context.Context, keyword string) ([]model.Team, error) {
	return r.list(ctx,
		`SELECT id, name, stadium, created_by, created_at FROM teams WHERE stadium ILIKE $1 ORDER BY created_at`,
		"%"+keyword+"%")
}

func (r *PostgresTeamRepo) list(ctx context.Context, query string, args ...any) ([]model.Team, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := []model.Team{}
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate teams: %w", err)
	}
	return teams, nil
}

// rowScanner はsql.Rowとsql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTeam は1行をTeamにスキャンする。created_by JSONBを公開ビューに復元する。
func scanTeam(row rowScanner) (*model.Team, error) {
	team := &model.Team{}
	var createdBy []byte
	if err := row.Scan(&team.ID, &team.Name, &team.Stadium, &createdBy, &team.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(createdBy, &team.CreatedBy); err != nil {
		return nil, fmt.Errorf("failed to decode createdBy: %w", err)
	}
	return team, nil
}

// compile-time interface check
var _ TeamRepository = (*PostgresTeamRepo)(nil)
