// Package status はランチ予定の登録・更新・削除を提供する。
package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/lunchplan/internal/metrics"
	"github.com/hitoshi/lunchplan/internal/model"
	"github.com/hitoshi/lunchplan/internal/repository"
	"github.com/hitoshi/lunchplan/internal/security"
)

// UpsertRequest は予定の登録・更新リクエスト。
// ISOWeekとWeekday以外は未指定・null指定・値指定を区別する。
type UpsertRequest struct {
	ISOWeek       string                           `json:"iso_week"`
	Weekday       int                              `json:"weekday"`
	Status        model.Optional[model.Status]     `json:"status"`
	ArrivalTime   model.Optional[string]           `json:"arrival_time"`
	Location      model.Optional[string]           `json:"location"`
	StartLocation model.Optional[string]           `json:"start_location"`
	EatLocation   model.Optional[string]           `json:"eat_location"`
	Note          model.Optional[string]           `json:"note"`
	Visibility    model.Optional[model.Visibility] `json:"visibility"`
	GroupID       model.Optional[string]           `json:"group_id"`
}

// Mode は書き込みの種類を表す。
type Mode string

const (
	// ModePersonal はグループ未所属ユーザーの個人予定への書き込み。
	ModePersonal Mode = "personal"
	// ModeSingle は1つのグループへの書き込み。
	ModeSingle Mode = "single"
	// ModeFanout は所属する全グループへの書き込み。
	ModeFanout Mode = "fanout"
	// ModeMerge はstatus未指定時の既存予定への部分更新。
	ModeMerge Mode = "merge"
)

// UpsertResult はUpsertの結果。
type UpsertResult struct {
	Records []*model.DayStatus
	Mode    Mode
}

// Service はランチ予定の書き込みを扱うサービス。
type Service struct {
	statusRepo repository.DayStatusRepository
	groupRepo  repository.GroupRepository
	sanitizer  security.TextSanitizer
	validate   *validator.Validate
	metrics    metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	statusRepo repository.DayStatusRepository,
	groupRepo repository.GroupRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		statusRepo: statusRepo,
		groupRepo:  groupRepo,
		sanitizer:  sanitizer,
		validate:   newValidator(),
		metrics:    collector,
	}
}

// target は書き込み先のキー（グループと公開範囲）。
type target struct {
	groupID    *string
	visibility model.Visibility
}

// Upsert は予定を登録・更新する。
//
// statusが未指定の場合は、同じ週・曜日の既存予定全てに指定フィールドだけをマージする。
// 既存予定が無ければ新規書き込みとして扱う。
// 新規書き込みでは、グループ未所属なら個人予定、all_groupsなら所属する全グループ、
// group_onlyならgroup_idのグループに書き込む。
// 複数グループへの書き込みはグループ単位で独立しており、途中で失敗した場合も
// それまでに書き込んだ予定は残る。
func (s *Service) Upsert(ctx context.Context, userID string, req UpsertRequest) (*UpsertResult, error) {
	req = s.sanitize(req)
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	byUser, err := s.groupRepo.GroupIDsByUsers(ctx, []string{userID})
	if err != nil {
		return nil, fmt.Errorf("所属グループの取得に失敗しました: %w", err)
	}
	userGroups := byUser[userID]

	if req.GroupID.HasValue() {
		if err := s.checkGroupAccess(ctx, req.GroupID.Value, userGroups); err != nil {
			return nil, err
		}
	}

	if !req.Status.Set {
		existing, err := s.statusRepo.ListByUserDay(ctx, userID, req.ISOWeek, req.Weekday)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			records := make([]*model.DayStatus, 0, len(existing))
			for _, current := range existing {
				saved, err := s.write(ctx, current, merge(current, req))
				if err != nil {
					logPartialWrite(userID, req, ModeMerge, len(records), len(existing))
					return nil, err
				}
				records = append(records, saved)
			}
			s.metrics.RecordStatusUpsert(string(ModeMerge), len(records))
			return &UpsertResult{Records: records, Mode: ModeMerge}, nil
		}
	}

	targets, mode, err := resolveTargets(req, userGroups)
	if err != nil {
		return nil, err
	}

	records := make([]*model.DayStatus, 0, len(targets))
	for _, t := range targets {
		key := model.StatusKey{UserID: userID, GroupID: t.groupID, ISOWeek: req.ISOWeek, Weekday: req.Weekday}
		current, err := s.statusRepo.FindByKey(ctx, key)
		if err != nil {
			logPartialWrite(userID, req, mode, len(records), len(targets))
			return nil, err
		}

		base := current
		if base == nil {
			base = &model.DayStatus{
				UserID:  userID,
				GroupID: t.groupID,
				ISOWeek: req.ISOWeek,
				Weekday: req.Weekday,
			}
		}
		next := merge(base, req)
		next.Visibility = t.visibility

		saved, err := s.write(ctx, current, next)
		if err != nil {
			logPartialWrite(userID, req, mode, len(records), len(targets))
			return nil, err
		}
		records = append(records, saved)
	}

	s.metrics.RecordStatusUpsert(string(mode), len(records))
	return &UpsertResult{Records: records, Mode: mode}, nil
}

// Clear は複合キーに一致する予定を削除する。予定が無い場合も成功として扱う。
func (s *Service) Clear(ctx context.Context, userID, isoWeek string, weekday int, groupID *string) error {
	if err := s.validate.Struct(clearFields{ISOWeek: isoWeek, Weekday: weekday, GroupID: groupID}); err != nil {
		return toValidationError(err)
	}

	deleted, err := s.statusRepo.DeleteByKey(ctx, model.StatusKey{
		UserID:  userID,
		GroupID: groupID,
		ISOWeek: isoWeek,
		Weekday: weekday,
	})
	if err != nil {
		return err
	}
	if deleted {
		s.metrics.RecordStatusClear(1)
	}
	return nil
}

// ClearWeek は指定週の予定を全曜日分削除し、削除件数を返す。
// groupIDがnilの場合は個人予定が対象。
func (s *Service) ClearWeek(ctx context.Context, userID, isoWeek string, groupID *string) (int64, error) {
	if err := s.validate.Struct(weekFields{ISOWeek: isoWeek, GroupID: groupID}); err != nil {
		return 0, toValidationError(err)
	}

	deleted, err := s.statusRepo.DeleteByUserWeek(ctx, userID, isoWeek, groupID)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.metrics.RecordStatusClear(deleted)
	}
	return deleted, nil
}

// resolveTargets はstatus指定時（または既存予定が無い場合）の書き込み先を決定する。
func resolveTargets(req UpsertRequest, userGroups []string) ([]target, Mode, error) {
	if len(userGroups) == 0 {
		return []target{{groupID: nil, visibility: model.VisibilityGroupOnly}}, ModePersonal, nil
	}

	visibility := model.VisibilityGroupOnly
	if req.Visibility.HasValue() {
		visibility = req.Visibility.Value
	}

	if visibility == model.VisibilityAllGroups {
		targets := make([]target, 0, len(userGroups))
		for _, g := range userGroups {
			gid := g
			targets = append(targets, target{groupID: &gid, visibility: model.VisibilityAllGroups})
		}
		return targets, ModeFanout, nil
	}

	if !req.GroupID.HasValue() {
		return nil, "", model.NewGroupIDRequiredError()
	}
	return []target{{groupID: req.GroupID.Ptr(), visibility: model.VisibilityGroupOnly}}, ModeSingle, nil
}

// merge はリクエストで指定されたフィールドだけをbaseに上書きした新しいレコードを返す。
// グループと公開範囲はbaseの値を引き継ぐ。
func merge(base *model.DayStatus, req UpsertRequest) *model.DayStatus {
	next := *base
	next.Status = req.Status.Apply(base.Status)
	next.ArrivalTime = req.ArrivalTime.Apply(base.ArrivalTime)
	next.Location = req.Location.Apply(base.Location)
	next.StartLocation = req.StartLocation.Apply(base.StartLocation)
	next.EatLocation = req.EatLocation.Apply(base.EatLocation)
	next.Note = req.Note.Apply(base.Note)
	if next.Visibility == "" {
		next.Visibility = model.VisibilityGroupOnly
	}
	return &next
}

// write は値が変化する場合のみ保存する。
func (s *Service) write(ctx context.Context, current, next *model.DayStatus) (*model.DayStatus, error) {
	if current != nil && sameValues(current, next) {
		return current, nil
	}
	return s.statusRepo.Upsert(ctx, next)
}

// checkGroupAccess はグループの存在とユーザーの所属を確認する。
func (s *Service) checkGroupAccess(ctx context.Context, groupID string, userGroups []string) error {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("グループの取得に失敗しました: %w", err)
	}
	if group == nil {
		return model.NewGroupNotFoundError(groupID)
	}
	for _, g := range userGroups {
		if g == groupID {
			return nil
		}
	}
	return model.NewForbiddenGroupError(groupID)
}

// sanitize は自由記述フィールドからHTMLを除去する。
// 除去後に空になった値はnull指定として扱う。
func (s *Service) sanitize(req UpsertRequest) UpsertRequest {
	clean := func(o model.Optional[string]) model.Optional[string] {
		if !o.HasValue() {
			return o
		}
		v := s.sanitizer.Sanitize(o.Value)
		if v == "" {
			return model.Null[string]()
		}
		return model.Some(v)
	}
	req.Location = clean(req.Location)
	req.StartLocation = clean(req.StartLocation)
	req.EatLocation = clean(req.EatLocation)
	req.Note = clean(req.Note)
	if req.ArrivalTime.HasValue() && req.ArrivalTime.Value == "" {
		req.ArrivalTime = model.Null[string]()
	}
	return req
}

func (s *Service) validateRequest(req UpsertRequest) error {
	fields := upsertFields{
		ISOWeek:       req.ISOWeek,
		Weekday:       req.Weekday,
		ArrivalTime:   req.ArrivalTime.Ptr(),
		Location:      req.Location.Ptr(),
		StartLocation: req.StartLocation.Ptr(),
		EatLocation:   req.EatLocation.Ptr(),
		Note:          req.Note.Ptr(),
		GroupID:       req.GroupID.Ptr(),
	}
	if req.Status.HasValue() {
		v := string(req.Status.Value)
		fields.Status = &v
	}
	if req.Visibility.HasValue() {
		v := string(req.Visibility.Value)
		fields.Visibility = &v
	}
	if err := s.validate.Struct(fields); err != nil {
		return toValidationError(err)
	}
	return nil
}

// sameValues は保存対象の値が一致するかどうかを返す。
func sameValues(a, b *model.DayStatus) bool {
	return equalStatus(a.Status, b.Status) &&
		equalString(a.ArrivalTime, b.ArrivalTime) &&
		equalString(a.Location, b.Location) &&
		equalString(a.StartLocation, b.StartLocation) &&
		equalString(a.EatLocation, b.EatLocation) &&
		equalString(a.Note, b.Note) &&
		a.Visibility == b.Visibility
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalStatus(a, b *model.Status) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func logPartialWrite(userID string, req UpsertRequest, mode Mode, written, total int) {
	if written == 0 {
		return
	}
	slog.Warn("予定の書き込みが途中で失敗しました",
		slog.String("user_id", userID),
		slog.String("iso_week", req.ISOWeek),
		slog.Int("weekday", req.Weekday),
		slog.String("mode", string(mode)),
		slog.Int("written", written),
		slog.Int("total", total),
	)
}
