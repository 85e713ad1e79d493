// Package visibility はランチ予定の閲覧可否を判定する。
//
// 一覧取得はSQLで候補を絞り込んだうえで、単体判定と同じ述語visibleを適用する。
// そのため一覧（Resolve）と単体判定（CanSee / CanSeeIn）の結果は常に一致する。
package visibility

import (
	"context"
	"fmt"
	"sort"

	"github.com/hitoshi/lunchplan/internal/metrics"
	"github.com/hitoshi/lunchplan/internal/model"
	"github.com/hitoshi/lunchplan/internal/repository"
	"github.com/hitoshi/lunchplan/internal/week"
)

// Board は週の予定一覧を表す。
type Board struct {
	ISOWeek  string
	Users    []*model.User
	Statuses map[string][]*model.DayStatus
}

// Resolver は閲覧者ごとに見える予定を解決する。
type Resolver struct {
	userRepo   repository.UserRepository
	groupRepo  repository.GroupRepository
	statusRepo repository.DayStatusRepository
	metrics    metrics.MetricsCollector
}

// NewResolver はResolverを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewResolver(
	userRepo repository.UserRepository,
	groupRepo repository.GroupRepository,
	statusRepo repository.DayStatusRepository,
	collector metrics.MetricsCollector,
) *Resolver {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Resolver{
		userRepo:   userRepo,
		groupRepo:  groupRepo,
		statusRepo: statusRepo,
		metrics:    collector,
	}
}

// viewContext は判定に必要な所属情報。
type viewContext struct {
	viewerID     string
	viewerGroups map[string]struct{}
	scope        *string
	// ownerGroups は個人予定の所有者ごとの所属グループ。
	ownerGroups map[string]map[string]struct{}
}

// visible はレコードが閲覧者に見えるかどうかを返す。
//
//   - 自分の予定は常に見える
//   - グループ未所属の閲覧者は自分の予定のみ
//   - スコープ指定時: スコープのグループの予定、またはスコープのメンバーのgroup_only個人予定
//   - 全体表示: 所属グループの予定、またはグループを共有するユーザーのgroup_only個人予定
func (vc *viewContext) visible(d *model.DayStatus) bool {
	if d.UserID == vc.viewerID {
		return true
	}
	if len(vc.viewerGroups) == 0 {
		return false
	}

	if vc.scope != nil {
		if d.GroupID != nil {
			return *d.GroupID == *vc.scope
		}
		if d.Visibility != model.VisibilityGroupOnly {
			return false
		}
		_, member := vc.ownerGroups[d.UserID][*vc.scope]
		return member
	}

	if d.GroupID != nil {
		_, ok := vc.viewerGroups[*d.GroupID]
		return ok
	}
	if d.Visibility != model.VisibilityGroupOnly {
		return false
	}
	for g := range vc.ownerGroups[d.UserID] {
		if _, ok := vc.viewerGroups[g]; ok {
			return true
		}
	}
	return false
}

// Resolve は閲覧者から見える指定週の予定をユーザーIDごとに返す。
// 各ユーザーの予定は (weekday, group_id NULLS FIRST, id) の順に並ぶ。
// scopeGroupIDを指定した場合、グループが存在しなければGROUP_NOT_FOUND、
// 閲覧者がメンバーでなければFORBIDDEN_GROUPを返す。
func (r *Resolver) Resolve(ctx context.Context, viewerID, isoWeek string, scopeGroupID *string) (map[string][]*model.DayStatus, error) {
	if !week.Valid(isoWeek) {
		return nil, model.NewValidationError(map[string]string{"week": "YYYY-Www 形式の有効なISO週を指定してください"})
	}

	vc, err := r.newViewContext(ctx, viewerID, scopeGroupID)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordVisibilityQuery(scopeLabel(scopeGroupID))

	q := repository.CandidateQuery{ISOWeek: isoWeek, ViewerID: viewerID}
	if len(vc.viewerGroups) > 0 {
		if scopeGroupID != nil {
			q.GroupIDs = []string{*scopeGroupID}
			members, err := r.groupRepo.ListMembers(ctx, *scopeGroupID)
			if err != nil {
				return nil, fmt.Errorf("グループ名簿の取得に失敗しました: %w", err)
			}
			for _, m := range members {
				q.PersonalOwnerIDs = append(q.PersonalOwnerIDs, m.ID)
			}
		} else {
			q.GroupIDs = sortedKeys(vc.viewerGroups)
			others, err := r.userRepo.ListSharingGroupWith(ctx, viewerID)
			if err != nil {
				return nil, fmt.Errorf("グループを共有するユーザーの取得に失敗しました: %w", err)
			}
			for _, u := range others {
				q.PersonalOwnerIDs = append(q.PersonalOwnerIDs, u.ID)
			}
		}
	}

	candidates, err := r.statusRepo.ListCandidates(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := r.loadOwnerGroups(ctx, vc, candidates); err != nil {
		return nil, err
	}

	result := make(map[string][]*model.DayStatus)
	for _, d := range candidates {
		if vc.visible(d) {
			result[d.UserID] = append(result[d.UserID], d)
		}
	}
	for _, list := range result {
		sortStatuses(list)
	}
	return result, nil
}

// CanSee は全体表示の規則でレコードが閲覧者に見えるかどうかを返す。
// Resolve(scopeGroupID=nil) の結果と常に一致する。
func (r *Resolver) CanSee(ctx context.Context, viewerID string, d *model.DayStatus) (bool, error) {
	return r.CanSeeIn(ctx, viewerID, d, nil)
}

// CanSeeIn はスコープ指定の規則でレコードが閲覧者に見えるかどうかを返す。
// scopeGroupIDがnilの場合は全体表示の規則を適用する。
// スコープの検証エラーはResolveと同じものを返す。
func (r *Resolver) CanSeeIn(ctx context.Context, viewerID string, d *model.DayStatus, scopeGroupID *string) (bool, error) {
	vc, err := r.newViewContext(ctx, viewerID, scopeGroupID)
	if err != nil {
		return false, err
	}
	if err := r.loadOwnerGroups(ctx, vc, []*model.DayStatus{d}); err != nil {
		return false, err
	}
	return vc.visible(d), nil
}

// VisibleUsers は閲覧者自身と、閲覧者と1つ以上のグループを共有するユーザーを返す。
// 閲覧者が先頭、以降は名前順。
func (r *Resolver) VisibleUsers(ctx context.Context, viewerID string) ([]*model.User, error) {
	viewer, err := r.userRepo.FindByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return nil, model.NewUserNotFoundError()
	}

	others, err := r.userRepo.ListSharingGroupWith(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return append([]*model.User{viewer}, others...), nil
}

// Board は予定一覧と表示対象のユーザーをまとめて返す。
// 全体表示ではVisibleUsers、スコープ指定時は閲覧者とスコープのメンバーが表示対象となる。
func (r *Resolver) Board(ctx context.Context, viewerID, isoWeek string, scopeGroupID *string) (*Board, error) {
	statuses, err := r.Resolve(ctx, viewerID, isoWeek, scopeGroupID)
	if err != nil {
		return nil, err
	}

	var users []*model.User
	if scopeGroupID == nil {
		users, err = r.VisibleUsers(ctx, viewerID)
		if err != nil {
			return nil, err
		}
	} else {
		viewer, err := r.userRepo.FindByID(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if viewer == nil {
			return nil, model.NewUserNotFoundError()
		}
		users = []*model.User{viewer}
		members, err := r.groupRepo.ListMembers(ctx, *scopeGroupID)
		if err != nil {
			return nil, fmt.Errorf("グループ名簿の取得に失敗しました: %w", err)
		}
		for i := range members {
			if members[i].ID == viewerID {
				continue
			}
			u := members[i].User
			users = append(users, &u)
		}
	}

	return &Board{ISOWeek: isoWeek, Users: users, Statuses: statuses}, nil
}

// newViewContext は閲覧者の所属とスコープを検証してviewContextを作る。
func (r *Resolver) newViewContext(ctx context.Context, viewerID string, scopeGroupID *string) (*viewContext, error) {
	byUser, err := r.groupRepo.GroupIDsByUsers(ctx, []string{viewerID})
	if err != nil {
		return nil, err
	}
	vc := &viewContext{
		viewerID:     viewerID,
		viewerGroups: toSet(byUser[viewerID]),
		scope:        scopeGroupID,
		ownerGroups:  make(map[string]map[string]struct{}),
	}

	if scopeGroupID != nil {
		group, err := r.groupRepo.FindByID(ctx, *scopeGroupID)
		if err != nil {
			return nil, err
		}
		if group == nil {
			return nil, model.NewGroupNotFoundError(*scopeGroupID)
		}
		if _, ok := vc.viewerGroups[*scopeGroupID]; !ok {
			return nil, model.NewForbiddenGroupError(*scopeGroupID)
		}
	}
	return vc, nil
}

// loadOwnerGroups は他ユーザーのgroup_only個人予定について所有者の所属グループを読み込む。
func (r *Resolver) loadOwnerGroups(ctx context.Context, vc *viewContext, statuses []*model.DayStatus) error {
	if len(vc.viewerGroups) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var owners []string
	for _, d := range statuses {
		if !d.IsPersonal() || d.UserID == vc.viewerID || d.Visibility != model.VisibilityGroupOnly {
			continue
		}
		if _, ok := seen[d.UserID]; ok {
			continue
		}
		seen[d.UserID] = struct{}{}
		owners = append(owners, d.UserID)
	}
	if len(owners) == 0 {
		return nil
	}

	byUser, err := r.groupRepo.GroupIDsByUsers(ctx, owners)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		vc.ownerGroups[owner] = toSet(byUser[owner])
	}
	return nil
}

func scopeLabel(scopeGroupID *string) string {
	if scopeGroupID != nil {
		return "group"
	}
	return "global"
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortStatuses は (weekday, group_id NULLS FIRST, id) の順に並べ替える。
func sortStatuses(list []*model.DayStatus) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if (a.GroupID == nil) != (b.GroupID == nil) {
			return a.GroupID == nil
		}
		if a.GroupID != nil && *a.GroupID != *b.GroupID {
			return *a.GroupID < *b.GroupID
		}
		return a.ID < b.ID
	})
}
