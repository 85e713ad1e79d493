package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/lunchplan/internal/model"
)

// PostgresGroupRepo はPostgreSQLを使用したグループリポジトリ。
type PostgresGroupRepo struct {
	db *sql.DB
}

// NewPostgresGroupRepo はPostgresGroupRepoを生成する。
func NewPostgresGroupRepo(db *sql.DB) *PostgresGroupRepo {
	return &PostgresGroupRepo{db: db}
}

const groupColumns = `g.id, g.name, g.creator_id, g.join_code, g.invite_token, g.privacy,
	COALESCE(g.category, ''), g.tags, g.created_at, g.updated_at`

func scanGroup(scan func(dest ...any) error, g *model.Group, extra ...any) error {
	dest := []any{
		&g.ID, &g.Name, &g.CreatorID, &g.JoinCode, &g.InviteToken, &g.Privacy,
		&g.Category, pq.Array(&g.Tags), &g.CreatedAt, &g.UpdatedAt,
	}
	return scan(append(dest, extra...)...)
}

// FindByID は指定IDのグループを取得する。見つからない場合はnilを返す。
func (r *PostgresGroupRepo) FindByID(ctx context.Context, id string) (*model.Group, error) {
	g := &model.Group{}
	err := scanGroup(r.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups g WHERE g.id = $1`,
		id,
	).Scan, g)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("グループの取得に失敗しました: %w", err)
	}
	return g, nil
}

// ListByUserID はユーザーが所属するグループをロール付きで返す。名前順。
func (r *PostgresGroupRepo) ListByUserID(ctx context.Context, userID string) ([]model.GroupWithRole, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+groupColumns+`, m.role
		 FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = $1
		 ORDER BY g.name ASC, g.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("所属グループ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var groups []model.GroupWithRole
	for rows.Next() {
		var gr model.GroupWithRole
		if err := scanGroup(rows.Scan, &gr.Group, &gr.Role); err != nil {
			return nil, fmt.Errorf("グループ行の読み取りに失敗しました: %w", err)
		}
		groups = append(groups, gr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("所属グループ一覧の走査に失敗しました: %w", err)
	}
	return groups, nil
}

// GroupIDsByUsers は各ユーザーの所属グループIDを返す。
func (r *PostgresGroupRepo) GroupIDsByUsers(ctx context.Context, userIDs []string) (map[string][]string, error) {
	result := make(map[string][]string)
	if len(userIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, group_id
		 FROM group_members
		 WHERE user_id = ANY($1::uuid[])
		 ORDER BY user_id, group_id`,
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("所属グループIDの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, groupID string
		if err := rows.Scan(&userID, &groupID); err != nil {
			return nil, fmt.Errorf("所属行の読み取りに失敗しました: %w", err)
		}
		result[userID] = append(result[userID], groupID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("所属グループIDの走査に失敗しました: %w", err)
	}
	return result, nil
}

// FindMembership はグループとユーザーの所属情報を取得する。所属していない場合はnilを返す。
func (r *PostgresGroupRepo) FindMembership(ctx context.Context, groupID, userID string) (*model.Membership, error) {
	m := &model.Membership{}
	err := r.db.QueryRowContext(ctx,
		`SELECT group_id, user_id, role, joined_at
		 FROM group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	).Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("所属情報の取得に失敗しました: %w", err)
	}
	return m, nil
}

// ListMembers はグループの名簿を名前順で返す。
func (r *PostgresGroupRepo) ListMembers(ctx context.Context, groupID string) ([]model.GroupMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, COALESCE(u.avatar_url, ''), u.created_at, u.updated_at,
		        m.role, m.joined_at
		 FROM group_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = $1
		 ORDER BY u.name ASC, u.id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("グループ名簿の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var members []model.GroupMember
	for rows.Next() {
		var m model.GroupMember
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Email, &m.AvatarURL, &m.CreatedAt, &m.UpdatedAt,
			&m.Role, &m.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("名簿行の読み取りに失敗しました: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("グループ名簿の走査に失敗しました: %w", err)
	}
	return members, nil
}

// Delete はグループを削除する。所属情報と予定はCASCADE削除される。
func (r *PostgresGroupRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("グループの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("グループが見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ GroupRepository = (*PostgresGroupRepo)(nil)
