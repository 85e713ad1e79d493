package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/lunchplan/internal/group"
	"github.com/hitoshi/lunchplan/internal/middleware"
	"github.com/hitoshi/lunchplan/internal/model"
	"github.com/hitoshi/lunchplan/internal/status"
	"github.com/hitoshi/lunchplan/internal/visibility"
	"github.com/hitoshi/lunchplan/internal/week"
)

const (
	testGroupID  = "6f1c2a52-9b0e-4c8e-a7a1-3d2f0b7c9e11"
	otherGroupID = "0d4b8e2f-5a6c-4f19-b2d3-8e7a1c9f0a22"
)

// --- モック定義 ---

type mockStatusService struct {
	upsertFn    func(ctx context.Context, userID string, req status.UpsertRequest) (*status.UpsertResult, error)
	clearFn     func(ctx context.Context, userID, isoWeek string, weekday int, groupID *string) error
	clearWeekFn func(ctx context.Context, userID, isoWeek string, groupID *string) (int64, error)
}

func (m *mockStatusService) Upsert(ctx context.Context, userID string, req status.UpsertRequest) (*status.UpsertResult, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, userID, req)
	}
	return &status.UpsertResult{Mode: status.ModePersonal}, nil
}

func (m *mockStatusService) Clear(ctx context.Context, userID, isoWeek string, weekday int, groupID *string) error {
	if m.clearFn != nil {
		return m.clearFn(ctx, userID, isoWeek, weekday, groupID)
	}
	return nil
}

func (m *mockStatusService) ClearWeek(ctx context.Context, userID, isoWeek string, groupID *string) (int64, error) {
	if m.clearWeekFn != nil {
		return m.clearWeekFn(ctx, userID, isoWeek, groupID)
	}
	return 0, nil
}

type mockBoardResolver struct {
	boardFn        func(ctx context.Context, viewerID, isoWeek string, scopeGroupID *string) (*visibility.Board, error)
	visibleUsersFn func(ctx context.Context, viewerID string) ([]*model.User, error)
}

func (m *mockBoardResolver) Board(ctx context.Context, viewerID, isoWeek string, scopeGroupID *string) (*visibility.Board, error) {
	if m.boardFn != nil {
		return m.boardFn(ctx, viewerID, isoWeek, scopeGroupID)
	}
	return &visibility.Board{ISOWeek: isoWeek, Statuses: map[string][]*model.DayStatus{}}, nil
}

func (m *mockBoardResolver) VisibleUsers(ctx context.Context, viewerID string) ([]*model.User, error) {
	if m.visibleUsersFn != nil {
		return m.visibleUsersFn(ctx, viewerID)
	}
	return nil, nil
}

type mockGroupService struct {
	listFn   func(ctx context.Context, userID string) ([]model.GroupWithRole, error)
	getFn    func(ctx context.Context, userID, groupID string) (*group.Detail, error)
	deleteFn func(ctx context.Context, userID, groupID string) error
}

func (m *mockGroupService) List(ctx context.Context, userID string) ([]model.GroupWithRole, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []model.GroupWithRole{}, nil
}

func (m *mockGroupService) Get(ctx context.Context, userID, groupID string) (*group.Detail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, groupID)
	}
	return nil, nil
}

func (m *mockGroupService) Delete(ctx context.Context, userID, groupID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, groupID)
	}
	return nil
}

type fixedCalendar struct {
	current week.Week
}

func (c fixedCalendar) Current() week.Week { return c.current }

type mockSessionFinder struct{}

func (mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "session-alice" {
		return &model.Session{ID: id, UserID: "alice", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return nil, nil
}

// --- ヘルパー ---

// withUserID はリクエストコンテキストにユーザーIDを設定する。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v (raw=%q)", err, w.Body.String())
	}
	return body
}

func strPtr(s string) *string { return &s }

func statusPtr(s model.Status) *model.Status { return &s }
