// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/lunchplan/internal/model"
)

// UserRepository はユーザーディレクトリの参照インターフェース。
// ユーザーの作成・更新は外部の認証基盤が行う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ListSharingGroupWith は指定ユーザーと1つ以上のグループを共有する他のユーザーを返す。
	// 指定ユーザー自身は含まない。name, idの昇順で返す。
	ListSharingGroupWith(ctx context.Context, userID string) ([]*model.User, error)
}

// SessionRepository はセッションの参照インターフェース。
// セッションの発行は外部の認証基盤が行う。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// GroupRepository はグループと所属情報の永続化インターフェース。
type GroupRepository interface {
	// FindByID は指定IDのグループを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Group, error)

	// ListByUserID はユーザーが所属するグループをロール付きで返す。名前順。
	ListByUserID(ctx context.Context, userID string) ([]model.GroupWithRole, error)

	// GroupIDsByUsers は各ユーザーの所属グループIDを返す。
	// 所属の無いユーザーはマップに含まれない。
	GroupIDsByUsers(ctx context.Context, userIDs []string) (map[string][]string, error)

	// FindMembership はグループとユーザーの所属情報を取得する。所属していない場合はnilを返す。
	FindMembership(ctx context.Context, groupID, userID string) (*model.Membership, error)

	// ListMembers はグループの名簿を名前順で返す。
	ListMembers(ctx context.Context, groupID string) ([]model.GroupMember, error)

	// Delete はグループを削除する。所属情報と予定はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// DayStatusRepository はランチ予定の永続化インターフェース。
type DayStatusRepository interface {
	// FindByKey は複合キー (user, group, week, weekday) に一致する予定を取得する。
	// GroupIDがnilのキーは個人予定に一致する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key model.StatusKey) (*model.DayStatus, error)

	// ListByUserDay はユーザーの指定週・曜日の予定をグループを問わず全て返す。
	ListByUserDay(ctx context.Context, userID, isoWeek string, weekday int) ([]*model.DayStatus, error)

	// ListCandidates は閲覧者に見える可能性のある予定を週単位で返す。
	// 最終的な可視性判定は呼び出し側で行う。
	ListCandidates(ctx context.Context, q CandidateQuery) ([]*model.DayStatus, error)

	// Upsert は複合キーで予定を冪等にUPSERTする。
	// 値が変化しない場合はupdated_atも更新しない。
	// 戻り値は保存後のレコード（ID、作成日時を含む）。
	Upsert(ctx context.Context, status *model.DayStatus) (*model.DayStatus, error)

	// DeleteByKey は複合キーに一致する予定を削除する。削除したかどうかを返す。
	DeleteByKey(ctx context.Context, key model.StatusKey) (bool, error)

	// DeleteByUserWeek はユーザーの指定週の予定を削除する（groupIDがnilの場合は個人予定）。
	DeleteByUserWeek(ctx context.Context, userID, isoWeek string, groupID *string) (int64, error)
}

// CandidateQuery は可視性判定の候補となる予定の検索条件。
type CandidateQuery struct {
	ISOWeek  string
	ViewerID string
	// GroupIDs に属する予定を候補に含める。
	GroupIDs []string
	// PersonalOwnerIDs に含まれるユーザーのgroup_only個人予定を候補に含める。
	PersonalOwnerIDs []string
}
