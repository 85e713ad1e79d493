package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/lunchplan/internal/model"
	"github.com/hitoshi/lunchplan/internal/status"
	"github.com/hitoshi/lunchplan/internal/visibility"
)

// StatusServiceInterface は予定ハンドラーが必要とする書き込みサービスのインターフェース。
type StatusServiceInterface interface {
	Upsert(ctx context.Context, userID string, req status.UpsertRequest) (*status.UpsertResult, error)
	Clear(ctx context.Context, userID, isoWeek string, weekday int, groupID *string) error
	ClearWeek(ctx context.Context, userID, isoWeek string, groupID *string) (int64, error)
}

// BoardResolver は閲覧者ごとの予定一覧を解決するインターフェース。
type BoardResolver interface {
	Board(ctx context.Context, viewerID, isoWeek string, scopeGroupID *string) (*visibility.Board, error)
	VisibleUsers(ctx context.Context, viewerID string) ([]*model.User, error)
}

// StatusHandler はランチ予定のHTTPハンドラー。
type StatusHandler struct {
	service  StatusServiceInterface
	resolver BoardResolver
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(service StatusServiceInterface, resolver BoardResolver) *StatusHandler {
	return &StatusHandler{
		service:  service,
		resolver: resolver,
	}
}

// boardResponse は週の予定一覧のAPIレスポンス。
type boardResponse struct {
	Week     string                      `json:"week"`
	Users    []userResponse              `json:"users"`
	Statuses map[string][]statusResponse `json:"statuses"`
}

// upsertResponse は予定の登録・更新結果のAPIレスポンス。
type upsertResponse struct {
	Mode    string           `json:"mode"`
	Records []statusResponse `json:"records"`
}

// clearWeekResponse は週の予定削除結果のAPIレスポンス。
type clearWeekResponse struct {
	Deleted int64 `json:"deleted"`
}

// ListStatuses は閲覧者に見える週の予定一覧を返す。
// GET /api/statuses?week=YYYY-Www[&group_id=]
func (h *StatusHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	isoWeek := q.requiredString("week")
	groupID := q.optionalUUID("group_id")
	if err := q.err(); err != nil {
		handleServiceError(w, err)
		return
	}

	board, err := h.resolver.Board(r.Context(), userID, isoWeek, groupID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	statuses := make(map[string][]statusResponse, len(board.Statuses))
	for uid, list := range board.Statuses {
		statuses[uid] = toStatusResponses(list)
	}

	writeJSON(w, http.StatusOK, boardResponse{
		Week:     board.ISOWeek,
		Users:    toUserResponses(board.Users),
		Statuses: statuses,
	})
}

// UpsertStatus は予定を登録・更新する。
// POST /api/statuses（PUTも受け付ける）
func (h *StatusHandler) UpsertStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req status.UpsertRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.Upsert(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, upsertResponse{
		Mode:    string(result.Mode),
		Records: toStatusResponses(result.Records),
	})
}

// ClearStatus は指定した曜日の予定を削除する。予定が無くても204を返す。
// DELETE /api/statuses?week=&weekday=[&group_id=]
func (h *StatusHandler) ClearStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	isoWeek := q.requiredString("week")
	weekday := q.requiredInt("weekday")
	groupID := q.optionalUUID("group_id")
	if err := q.err(); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.Clear(r.Context(), userID, isoWeek, weekday, groupID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearWeek は指定した週の予定をまとめて削除する。
// DELETE /api/statuses/week?week=[&group_id=]
func (h *StatusHandler) ClearWeek(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	isoWeek := q.requiredString("week")
	groupID := q.optionalUUID("group_id")
	if err := q.err(); err != nil {
		handleServiceError(w, err)
		return
	}

	deleted, err := h.service.ClearWeek(r.Context(), userID, isoWeek, groupID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, clearWeekResponse{Deleted: deleted})
}

// VisibleUsers は閲覧者とグループを共有するユーザーの一覧を返す。
// GET /api/users/visible
func (h *StatusHandler) VisibleUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	users, err := h.resolver.VisibleUsers(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": toUserResponses(users)})
}
