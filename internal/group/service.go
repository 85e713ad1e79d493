// Package group はグループの参照と削除を提供する。
// グループの作成・参加は招待機能側が扱う。
package group

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/lunchplan/internal/model"
	"github.com/hitoshi/lunchplan/internal/repository"
)

// Detail はグループ詳細（名簿と閲覧者のロールを含む）。
type Detail struct {
	Group   *model.Group
	Role    model.MemberRole
	Members []model.GroupMember
}

// Service はグループ管理のサービス層。
type Service struct {
	groupRepo repository.GroupRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(groupRepo repository.GroupRepository) *Service {
	return &Service{groupRepo: groupRepo}
}

// List はユーザーが所属するグループをロール付きで返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.GroupWithRole, error) {
	groups, err := s.groupRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []model.GroupWithRole{}
	}
	return groups, nil
}

// Get はグループ詳細を返す。メンバー以外はFORBIDDEN_GROUPとなる。
func (s *Service) Get(ctx context.Context, userID, groupID string) (*Detail, error) {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("グループの取得に失敗しました: %w", err)
	}
	if group == nil {
		return nil, model.NewGroupNotFoundError(groupID)
	}

	membership, err := s.groupRepo.FindMembership(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, model.NewForbiddenGroupError(groupID)
	}

	members, err := s.groupRepo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &Detail{Group: group, Role: membership.Role, Members: members}, nil
}

// Delete はグループを削除する。作成者以外はNOT_GROUP_CREATORとなる。
// グループの予定と所属情報はCASCADE削除される。
func (s *Service) Delete(ctx context.Context, userID, groupID string) error {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("グループの取得に失敗しました: %w", err)
	}
	if group == nil {
		return model.NewGroupNotFoundError(groupID)
	}
	if group.CreatorID != userID {
		return model.NewNotGroupCreatorError(groupID)
	}

	if err := s.groupRepo.Delete(ctx, groupID); err != nil {
		return err
	}

	slog.Info("グループを削除しました",
		slog.String("group_id", groupID),
		slog.String("user_id", userID),
	)
	return nil
}
