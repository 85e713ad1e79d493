// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, group, status, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フィールド単位のバリデーションメッセージ（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, strings.Join(parts, "; "))
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeGroupIDRequired  = "GROUP_ID_REQUIRED"
	ErrCodeGroupNotFound    = "GROUP_NOT_FOUND"
	ErrCodeForbiddenGroup   = "FORBIDDEN_GROUP"
	ErrCodeNotGroupCreator  = "NOT_GROUP_CREATOR"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeUnauthenticated  = "UNAUTHENTICATED"
	ErrCodeCSRFFailed       = "CSRF_VALIDATION_FAILED"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewValidationError はフィールド単位のメッセージを持つバリデーションエラーを生成する。
func NewValidationError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目のエラーメッセージを確認して再度送信してください。",
		Fields:   fields,
	}
}

// NewInvalidRequestError はリクエストボディやクエリが解析できない場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストを解析できません: %s", reason),
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	}
}

// NewGroupIDRequiredError はgroup_only指定時にグループIDが無い場合のエラーを生成する。
func NewGroupIDRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeGroupIDRequired,
		Message:  "グループ限定の予定にはグループの指定が必要です。",
		Category: "validation",
		Action:   "group_id を指定するか、visibility に all_groups を指定してください。",
		Fields:   map[string]string{"group_id": "visibility が group_only の場合は必須です"},
	}
}

// NewGroupNotFoundError はグループが見つからない場合のエラーを生成する。
func NewGroupNotFoundError(groupID string) *APIError {
	return &APIError{
		Code:     ErrCodeGroupNotFound,
		Message:  fmt.Sprintf("指定されたグループが見つかりません: %s", groupID),
		Category: "group",
		Action:   "グループIDを確認してください。",
	}
}

// NewForbiddenGroupError はグループに所属していないユーザーが操作した場合のエラーを生成する。
func NewForbiddenGroupError(groupID string) *APIError {
	return &APIError{
		Code:     ErrCodeForbiddenGroup,
		Message:  fmt.Sprintf("このグループのメンバーではありません: %s", groupID),
		Category: "group",
		Action:   "グループに参加してから再度お試しください。",
	}
}

// NewNotGroupCreatorError はグループ作成者以外が作成者限定の操作を行った場合のエラーを生成する。
func NewNotGroupCreatorError(groupID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotGroupCreator,
		Message:  fmt.Sprintf("グループの作成者のみが実行できます: %s", groupID),
		Category: "group",
		Action:   "グループの作成者に依頼してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthenticatedError はセッションが無効な場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCSRFFailedError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
