package status

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/lunchplan/internal/model"
	"github.com/hitoshi/lunchplan/internal/week"
)

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// upsertFields は検証用に正規化したUpsertRequestのフィールド。
// nilは未指定またはnull指定を表す。場所は100文字、メモは500文字まで。
type upsertFields struct {
	ISOWeek       string  `json:"iso_week" validate:"required,isoweek"`
	Weekday       int     `json:"weekday" validate:"min=1,max=5"`
	Status        *string `json:"status" validate:"omitnil,oneof=Lunchbox Buying Home Away"`
	ArrivalTime   *string `json:"arrival_time" validate:"omitnil,hhmm"`
	Location      *string `json:"location" validate:"omitnil,max=100"`
	StartLocation *string `json:"start_location" validate:"omitnil,max=100"`
	EatLocation   *string `json:"eat_location" validate:"omitnil,max=100"`
	Note          *string `json:"note" validate:"omitnil,max=500"`
	Visibility    *string `json:"visibility" validate:"omitnil,oneof=group_only all_groups"`
	GroupID       *string `json:"group_id" validate:"omitnil,uuid"`
}

// clearFields はClearのキーの検証用フィールド。
type clearFields struct {
	ISOWeek string  `json:"week" validate:"required,isoweek"`
	Weekday int     `json:"weekday" validate:"min=1,max=5"`
	GroupID *string `json:"group_id" validate:"omitnil,uuid"`
}

// weekFields はClearWeekのキーの検証用フィールド。
type weekFields struct {
	ISOWeek string  `json:"week" validate:"required,isoweek"`
	GroupID *string `json:"group_id" validate:"omitnil,uuid"`
}

// newValidator はJSON名でフィールドを報告するvalidatorを生成する。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// 登録に失敗するのはタグ名が空の場合のみ
	_ = v.RegisterValidation("isoweek", func(fl validator.FieldLevel) bool {
		return week.Valid(fl.Field().String())
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
	return v
}

// toValidationError はvalidatorのエラーをフィールド単位のAPIErrorに変換する。
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("入力の検証に失敗しました: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return model.NewValidationError(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須です"
	case "isoweek":
		return "YYYY-Www 形式の有効なISO週を指定してください"
	case "hhmm":
		return "HH:MM 形式（24時間表記）で指定してください"
	case "uuid":
		return "有効なIDを指定してください"
	case "oneof":
		return "次のいずれかを指定してください: " + fe.Param()
	case "min", "max":
		if fe.Field() == "weekday" {
			return fmt.Sprintf("%d（月）から%d（金）の範囲で指定してください", week.FirstWeekday, week.LastWeekday)
		}
		return fe.Param() + "文字以内で入力してください"
	}
	return "値が不正です"
}
