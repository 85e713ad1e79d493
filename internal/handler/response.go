package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lunchplan/internal/middleware"
	"github.com/hitoshi/lunchplan/internal/model"
)

// maxRequestBodyBytes はリクエストボディの上限サイズ。
const maxRequestBodyBytes = 64 << 10

// statusResponse はランチ予定のAPIレスポンス。
type statusResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	GroupID       *string `json:"group_id"`
	ISOWeek       string  `json:"iso_week"`
	Weekday       int     `json:"weekday"`
	Status        *string `json:"status"`
	ArrivalTime   *string `json:"arrival_time"`
	Location      *string `json:"location"`
	StartLocation *string `json:"start_location"`
	EatLocation   *string `json:"eat_location"`
	Note          *string `json:"note"`
	Visibility    string  `json:"visibility"`
}

// userResponse はユーザーのAPIレスポンス。
type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// groupResponse はグループのAPIレスポンス。
type groupResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creator_id"`
	Privacy   string    `json:"privacy"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// memberResponse はグループ名簿のAPIレスポンス。
type memberResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

func toStatusResponse(d *model.DayStatus) statusResponse {
	resp := statusResponse{
		ID:            d.ID,
		UserID:        d.UserID,
		GroupID:       d.GroupID,
		ISOWeek:       d.ISOWeek,
		Weekday:       d.Weekday,
		ArrivalTime:   d.ArrivalTime,
		Location:      d.Location,
		StartLocation: d.StartLocation,
		EatLocation:   d.EatLocation,
		Note:          d.Note,
		Visibility:    string(d.Visibility),
	}
	if d.Status != nil {
		s := string(*d.Status)
		resp.Status = &s
	}
	return resp
}

func toStatusResponses(list []*model.DayStatus) []statusResponse {
	results := make([]statusResponse, len(list))
	for i, d := range list {
		results[i] = toStatusResponse(d)
	}
	return results
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}

func toUserResponses(users []*model.User) []userResponse {
	results := make([]userResponse, len(users))
	for i, u := range users {
		results[i] = toUserResponse(u)
	}
	return results
}

func toGroupResponse(g *model.Group, role model.MemberRole) groupResponse {
	tags := g.Tags
	if tags == nil {
		tags = []string{}
	}
	return groupResponse{
		ID:        g.ID,
		Name:      g.Name,
		CreatorID: g.CreatorID,
		Privacy:   g.Privacy,
		Category:  g.Category,
		Tags:      tags,
		Role:      string(role),
		CreatedAt: g.CreatedAt,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// requireUserID はコンテキストからユーザーIDを取得する。取得できない場合は401を書き込む。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return "", false
	}
	return userID, true
}

// decodeJSONBody はリクエストボディをJSONとして読み取る。失敗した場合は400を書き込む。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(map[string]string{
				field: jsonTypeMessage(typeErr.Type.Kind()),
			}))
			return false
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONボディが不正です"))
		return false
	}
	return true
}

// jsonTypeMessage はJSONの型不一致に対するフィールドメッセージを返す。
func jsonTypeMessage(kind reflect.Kind) string {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "整数で指定してください"
	case reflect.String:
		return "文字列で指定してください"
	default:
		return "値の型が不正です"
	}
}

// queryParams はクエリパラメータの読み取りとフィールド単位のエラー収集を行う。
type queryParams struct {
	r      *http.Request
	fields map[string]string
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{r: r, fields: make(map[string]string)}
}

// requiredString は必須の文字列パラメータを返す。
func (q *queryParams) requiredString(name string) string {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		q.fields[name] = "必須です"
	}
	return v
}

// requiredInt は必須の整数パラメータを返す。
func (q *queryParams) requiredInt(name string) int {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		q.fields[name] = "必須です"
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fields[name] = "整数で指定してください"
		return 0
	}
	return v
}

// optionalUUID は任意のUUIDパラメータを返す。未指定の場合はnil。
func (q *queryParams) optionalUUID(name string) *string {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	if _, err := uuid.Parse(raw); err != nil {
		q.fields[name] = "UUID形式で指定してください"
		return nil
	}
	return &raw
}

// err は収集したエラーがあればバリデーションエラーを返す。
func (q *queryParams) err() error {
	if len(q.fields) == 0 {
		return nil
	}
	return model.NewValidationError(q.fields)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeGroupIDRequired, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeGroupNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeForbiddenGroup, model.ErrCodeNotGroupCreator, model.ErrCodeCSRFFailed:
		return http.StatusForbidden
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
