package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/lunchplan/internal/model"
	"github.com/hitoshi/lunchplan/internal/status"
	"github.com/hitoshi/lunchplan/internal/visibility"
)

// --- GET /api/statuses ---

func TestStatusHandler_ListStatuses_Success(t *testing.T) {
	resolver := &mockBoardResolver{
		boardFn: func(ctx context.Context, viewerID, isoWeek string, scopeGroupID *string) (*visibility.Board, error) {
			if viewerID != "alice" || isoWeek != "2026-W42" || scopeGroupID != nil {
				t.Errorf("Board(%q, %q, %v)", viewerID, isoWeek, scopeGroupID)
			}
			return &visibility.Board{
				ISOWeek: isoWeek,
				Users:   []*model.User{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}},
				Statuses: map[string][]*model.DayStatus{
					"bob": {{
						ID: "s1", UserID: "bob", GroupID: strPtr(testGroupID), ISOWeek: isoWeek, Weekday: 2,
						Status: statusPtr(model.StatusBuying), Visibility: model.VisibilityGroupOnly,
					}},
				},
			}, nil
		},
	}
	h := NewStatusHandler(&mockStatusService{}, resolver)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/statuses?week=2026-W42", nil), "alice")
	w := httptest.NewRecorder()
	h.ListStatuses(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}

	var body struct {
		Week     string                      `json:"week"`
		Users    []map[string]any            `json:"users"`
		Statuses map[string][]map[string]any `json:"statuses"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Week != "2026-W42" {
		t.Errorf("week = %q", body.Week)
	}
	if len(body.Users) != 2 {
		t.Errorf("users = %d, want 2", len(body.Users))
	}
	rec := body.Statuses["bob"][0]
	if rec["status"] != "Buying" || rec["group_id"] != testGroupID || rec["weekday"] != float64(2) {
		t.Errorf("record = %v", rec)
	}
	for _, key := range []string{"arrival_time", "location", "start_location", "eat_location", "note"} {
		if v, ok := rec[key]; !ok || v != nil {
			t.Errorf("%s = %v, want explicit null", key, v)
		}
	}
}

func TestStatusHandler_ListStatuses_PassesScope(t *testing.T) {
	var gotScope *string
	resolver := &mockBoardResolver{
		boardFn: func(ctx context.Context, viewerID, isoWeek string, scopeGroupID *string) (*visibility.Board, error) {
			gotScope = scopeGroupID
			return &visibility.Board{ISOWeek: isoWeek}, nil
		},
	}
	h := NewStatusHandler(&mockStatusService{}, resolver)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/statuses?week=2026-W42&group_id="+testGroupID, nil), "alice")
	w := httptest.NewRecorder()
	h.ListStatuses(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotScope == nil || *gotScope != testGroupID {
		t.Errorf("scope = %v, want %s", gotScope, testGroupID)
	}
	if !strings.Contains(w.Body.String(), `"statuses":{}`) {
		t.Errorf("statuses should be an empty object, body=%s", w.Body.String())
	}
}

func TestStatusHandler_ListStatuses_QueryValidation(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantField string
	}{
		{name: "missing week", query: "", wantField: "week"},
		{name: "bad group id", query: "?week=2026-W42&group_id=not-a-uuid", wantField: "group_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			resolver := &mockBoardResolver{
				boardFn: func(ctx context.Context, viewerID, isoWeek string, scopeGroupID *string) (*visibility.Board, error) {
					called = true
					return nil, nil
				},
			}
			h := NewStatusHandler(&mockStatusService{}, resolver)

			req := withUserID(httptest.NewRequest(http.MethodGet, "/api/statuses"+tt.query, nil), "alice")
			w := httptest.NewRecorder()
			h.ListStatuses(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if called {
				t.Error("resolver should not be called")
			}
			body := decodeError(t, w)
			if body.Code != model.ErrCodeValidationFailed {
				t.Errorf("code = %q", body.Code)
			}
			if _, ok := body.Fields[tt.wantField]; !ok {
				t.Errorf("fields = %v, want %s", body.Fields, tt.wantField)
			}
		})
	}
}

func TestStatusHandler_ListStatuses_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "group not found", err: model.NewGroupNotFoundError(testGroupID), wantStatus: http.StatusNotFound, wantCode: model.ErrCodeGroupNotFound},
		{name: "forbidden", err: model.NewForbiddenGroupError(testGroupID), wantStatus: http.StatusForbidden, wantCode: model.ErrCodeForbiddenGroup},
		{name: "invalid week", err: model.NewValidationError(map[string]string{"week": "x"}), wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeValidationFailed},
		{name: "internal", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError, wantCode: model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockBoardResolver{
				boardFn: func(ctx context.Context, viewerID, isoWeek string, scopeGroupID *string) (*visibility.Board, error) {
					return nil, tt.err
				},
			}
			h := NewStatusHandler(&mockStatusService{}, resolver)

			req := withUserID(httptest.NewRequest(http.MethodGet, "/api/statuses?week=2026-W42&group_id="+testGroupID, nil), "alice")
			w := httptest.NewRecorder()
			h.ListStatuses(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeError(t, w)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if strings.Contains(body.Message, "connection reset") {
				t.Error("internal error detail must not leak")
			}
		})
	}
}

func TestStatusHandler_NoUserID_Returns401(t *testing.T) {
	h := NewStatusHandler(&mockStatusService{}, &mockBoardResolver{})

	handlers := map[string]http.HandlerFunc{
		"list":       h.ListStatuses,
		"upsert":     h.UpsertStatus,
		"clear":      h.ClearStatus,
		"clear week": h.ClearWeek,
		"visible":    h.VisibleUsers,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			fn(w, httptest.NewRequest(http.MethodGet, "/api/statuses?week=2026-W42", nil))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

// --- PUT /api/statuses ---

func TestStatusHandler_UpsertStatus_DecodesTriState(t *testing.T) {
	var got status.UpsertRequest
	svc := &mockStatusService{
		upsertFn: func(ctx context.Context, userID string, req status.UpsertRequest) (*status.UpsertResult, error) {
			got = req
			return &status.UpsertResult{
				Mode: status.ModeMerge,
				Records: []*model.DayStatus{{
					ID: "s1", UserID: userID, ISOWeek: req.ISOWeek, Weekday: req.Weekday,
					Note: strPtr("late"), Visibility: model.VisibilityGroupOnly,
				}},
			}, nil
		},
	}
	h := NewStatusHandler(svc, &mockBoardResolver{})

	body := `{"iso_week":"2026-W42","weekday":3,"note":"late","location":null}`
	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/statuses", strings.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	h.UpsertStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	if got.Status.Set {
		t.Error("status should be absent")
	}
	if !got.Note.HasValue() || got.Note.Value != "late" {
		t.Errorf("note = %+v", got.Note)
	}
	if !got.Location.Set || !got.Location.Null {
		t.Errorf("location = %+v, want explicit null", got.Location)
	}

	var resp struct {
		Mode    string           `json:"mode"`
		Records []map[string]any `json:"records"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != "merge" || len(resp.Records) != 1 || resp.Records[0]["note"] != "late" {
		t.Errorf("response = %+v", resp)
	}
}

func TestStatusHandler_UpsertStatus_InvalidJSON(t *testing.T) {
	called := false
	svc := &mockStatusService{
		upsertFn: func(ctx context.Context, userID string, req status.UpsertRequest) (*status.UpsertResult, error) {
			called = true
			return nil, nil
		},
	}
	h := NewStatusHandler(svc, &mockBoardResolver{})

	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/statuses", strings.NewReader(`{"weekday":`)), "alice")
	w := httptest.NewRecorder()
	h.UpsertStatus(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Error("service should not be called")
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRequest)
	}
}

func TestStatusHandler_UpsertStatus_WrongJSONType(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		want  string
	}{
		{"weekdayが文字列", `{"iso_week":"2026-W42","weekday":"1"}`, "weekday", "整数で指定してください"},
		{"statusが数値", `{"iso_week":"2026-W42","weekday":1,"status":5}`, "status", "文字列で指定してください"},
		{"noteが配列", `{"iso_week":"2026-W42","weekday":1,"note":["x"]}`, "note", "文字列で指定してください"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockStatusService{
				upsertFn: func(ctx context.Context, userID string, req status.UpsertRequest) (*status.UpsertResult, error) {
					called = true
					return nil, nil
				},
			}
			h := NewStatusHandler(svc, &mockBoardResolver{})

			req := withUserID(httptest.NewRequest(http.MethodPost, "/api/statuses", strings.NewReader(tt.body)), "alice")
			w := httptest.NewRecorder()
			h.UpsertStatus(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if called {
				t.Error("service should not be called")
			}
			body := decodeError(t, w)
			if body.Code != model.ErrCodeValidationFailed {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidationFailed)
			}
			if body.Fields[tt.field] != tt.want {
				t.Errorf("fields = %v, want %s: %s", body.Fields, tt.field, tt.want)
			}
		})
	}
}

func TestStatusHandler_UpsertStatus_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: model.NewValidationError(map[string]string{"weekday": "x", "note": "y"}), wantStatus: http.StatusBadRequest},
		{name: "group id required", err: model.NewGroupIDRequiredError(), wantStatus: http.StatusBadRequest},
		{name: "group not found", err: model.NewGroupNotFoundError(testGroupID), wantStatus: http.StatusNotFound},
		{name: "forbidden", err: model.NewForbiddenGroupError(testGroupID), wantStatus: http.StatusForbidden},
		{name: "wrapped forbidden", err: fmt.Errorf("書き込みに失敗しました: %w", model.NewForbiddenGroupError(testGroupID)), wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockStatusService{
				upsertFn: func(ctx context.Context, userID string, req status.UpsertRequest) (*status.UpsertResult, error) {
					return nil, tt.err
				},
			}
			h := NewStatusHandler(svc, &mockBoardResolver{})

			req := withUserID(httptest.NewRequest(http.MethodPut, "/api/statuses", strings.NewReader(`{"iso_week":"2026-W42","weekday":1}`)), "alice")
			w := httptest.NewRecorder()
			h.UpsertStatus(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestStatusHandler_UpsertStatus_ValidationFieldsInBody(t *testing.T) {
	svc := &mockStatusService{
		upsertFn: func(ctx context.Context, userID string, req status.UpsertRequest) (*status.UpsertResult, error) {
			return nil, model.NewValidationError(map[string]string{
				"weekday":      "1〜5の範囲で指定してください",
				"arrival_time": "HH:MM 形式で指定してください",
			})
		},
	}
	h := NewStatusHandler(svc, &mockBoardResolver{})

	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/statuses", strings.NewReader(`{"iso_week":"2026-W42","weekday":9}`)), "alice")
	w := httptest.NewRecorder()
	h.UpsertStatus(w, req)

	body := decodeError(t, w)
	if len(body.Fields) != 2 {
		t.Errorf("fields = %v, want both weekday and arrival_time", body.Fields)
	}
}

// --- DELETE /api/statuses ---

func TestStatusHandler_ClearStatus_Success(t *testing.T) {
	var gotWeek string
	var gotWeekday int
	var gotGroup *string
	svc := &mockStatusService{
		clearFn: func(ctx context.Context, userID, isoWeek string, weekday int, groupID *string) error {
			gotWeek, gotWeekday, gotGroup = isoWeek, weekday, groupID
			return nil
		},
	}
	h := NewStatusHandler(svc, &mockBoardResolver{})

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/statuses?week=2026-W42&weekday=4&group_id="+testGroupID, nil), "alice")
	w := httptest.NewRecorder()
	h.ClearStatus(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotWeek != "2026-W42" || gotWeekday != 4 || gotGroup == nil || *gotGroup != testGroupID {
		t.Errorf("Clear(%q, %d, %v)", gotWeek, gotWeekday, gotGroup)
	}
}

func TestStatusHandler_ClearStatus_PersonalKey(t *testing.T) {
	var gotGroup = strPtr("sentinel")
	svc := &mockStatusService{
		clearFn: func(ctx context.Context, userID, isoWeek string, weekday int, groupID *string) error {
			gotGroup = groupID
			return nil
		},
	}
	h := NewStatusHandler(svc, &mockBoardResolver{})

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/statuses?week=2026-W42&weekday=1", nil), "alice")
	w := httptest.NewRecorder()
	h.ClearStatus(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotGroup != nil {
		t.Errorf("groupID = %v, want nil", *gotGroup)
	}
}

func TestStatusHandler_ClearStatus_BadWeekday(t *testing.T) {
	h := NewStatusHandler(&mockStatusService{}, &mockBoardResolver{})

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/statuses?week=2026-W42&weekday=mon", nil), "alice")
	w := httptest.NewRecorder()
	h.ClearStatus(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeError(t, w); body.Fields["weekday"] == "" {
		t.Errorf("fields = %v, want weekday", body.Fields)
	}
}

// --- DELETE /api/statuses/week ---

func TestStatusHandler_ClearWeek_ReturnsDeletedCount(t *testing.T) {
	svc := &mockStatusService{
		clearWeekFn: func(ctx context.Context, userID, isoWeek string, groupID *string) (int64, error) {
			return 3, nil
		},
	}
	h := NewStatusHandler(svc, &mockBoardResolver{})

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/statuses/week?week=2026-W42", nil), "alice")
	w := httptest.NewRecorder()
	h.ClearWeek(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if strings.TrimSpace(w.Body.String()) != `{"deleted":3}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

// --- GET /api/users/visible ---

func TestStatusHandler_VisibleUsers(t *testing.T) {
	resolver := &mockBoardResolver{
		visibleUsersFn: func(ctx context.Context, viewerID string) ([]*model.User, error) {
			return []*model.User{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob", AvatarURL: "https://example.com/b.png"}}, nil
		},
	}
	h := NewStatusHandler(&mockStatusService{}, resolver)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/users/visible", nil), "alice")
	w := httptest.NewRecorder()
	h.VisibleUsers(w, req)

	var body struct {
		Users []userResponse `json:"users"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Users) != 2 || body.Users[0].ID != "alice" || body.Users[1].AvatarURL == "" {
		t.Errorf("users = %+v", body.Users)
	}
	if strings.Contains(w.Body.String(), "email") {
		t.Error("email must not be exposed")
	}
}

func TestStatusHandler_VisibleUsers_UserNotFound(t *testing.T) {
	resolver := &mockBoardResolver{
		visibleUsersFn: func(ctx context.Context, viewerID string) ([]*model.User, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewStatusHandler(&mockStatusService{}, resolver)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/users/visible", nil), "ghost")
	w := httptest.NewRecorder()
	h.VisibleUsers(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
