package handler

import (
	"net/http"

	"github.com/hitoshi/lunchplan/internal/week"
)

// CurrentWeeker は「今週」を返すインターフェース。week.Calendarが実装する。
type CurrentWeeker interface {
	Current() week.Week
}

// WeekHandler は週カレンダーのHTTPハンドラー。
type WeekHandler struct {
	calendar CurrentWeeker
}

// NewWeekHandler はWeekHandlerを生成する。
func NewWeekHandler(calendar CurrentWeeker) *WeekHandler {
	return &WeekHandler{calendar: calendar}
}

type dayResponse struct {
	Weekday int    `json:"weekday"`
	Date    string `json:"date"`
}

type weekResponse struct {
	ISOWeek string        `json:"iso_week"`
	Days    []dayResponse `json:"days"`
}

// Current は今週のISO週と平日の日付を返す。土日は翌週を返す。
// GET /api/weeks/current
func (h *WeekHandler) Current(w http.ResponseWriter, r *http.Request) {
	current := h.calendar.Current()

	days := current.Days()
	resp := weekResponse{
		ISOWeek: current.String(),
		Days:    make([]dayResponse, len(days)),
	}
	for i, d := range days {
		resp.Days[i] = dayResponse{Weekday: d.Weekday, Date: d.Date.Format("2006-01-02")}
	}

	writeJSON(w, http.StatusOK, resp)
}
