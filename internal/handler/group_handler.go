package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/lunchplan/internal/group"
	"github.com/hitoshi/lunchplan/internal/model"
)

// GroupServiceInterface はグループハンドラーが必要とするサービスインターフェース。
type GroupServiceInterface interface {
	List(ctx context.Context, userID string) ([]model.GroupWithRole, error)
	Get(ctx context.Context, userID, groupID string) (*group.Detail, error)
	Delete(ctx context.Context, userID, groupID string) error
}

// GroupHandler はグループのHTTPハンドラー。
type GroupHandler struct {
	service GroupServiceInterface
}

// NewGroupHandler はGroupHandlerを生成する。
func NewGroupHandler(service GroupServiceInterface) *GroupHandler {
	return &GroupHandler{service: service}
}

// groupDetailResponse はグループ詳細のAPIレスポンス。
type groupDetailResponse struct {
	groupResponse
	Members []memberResponse `json:"members"`
}

// ListGroups は自分が所属するグループの一覧を返す。
// GET /api/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	groups, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]groupResponse, len(groups))
	for i := range groups {
		results[i] = toGroupResponse(&groups[i].Group, groups[i].Role)
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": results})
}

// GetGroup はグループ詳細と名簿を返す。メンバー以外は403。
// GET /api/groups/{id}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), userID, groupID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	members := make([]memberResponse, len(detail.Members))
	for i, m := range detail.Members {
		members[i] = memberResponse{
			ID:        m.ID,
			Name:      m.Name,
			AvatarURL: m.AvatarURL,
			Role:      string(m.Role),
			JoinedAt:  m.JoinedAt,
		}
	}

	writeJSON(w, http.StatusOK, groupDetailResponse{
		groupResponse: toGroupResponse(detail.Group, detail.Role),
		Members:       members,
	})
}

// DeleteGroup はグループを削除する。作成者以外は403。
// DELETE /api/groups/{id}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, groupID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// groupIDParam はURLパスのグループIDを検証して返す。
// UUIDでない場合は存在しないグループとして404を書き込む。
func groupIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	groupID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(groupID); err != nil {
		handleServiceError(w, model.NewGroupNotFoundError(groupID))
		return "", false
	}
	return groupID, true
}
