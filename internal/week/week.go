// Package week はISO 8601週番号（YYYY-Www）の計算を提供する。
// 「今週」の判定は時計を注入できるCalendarを通して行う。
package week

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
)

// FirstWeekday と LastWeekday は予定を登録できる曜日の範囲（月曜〜金曜）。
const (
	FirstWeekday = 1
	LastWeekday  = 5
)

var weekPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// Week はISO週を表す。
type Week struct {
	Year   int
	Number int
}

// Parse は "YYYY-Www" 形式の文字列をWeekに変換する。
// 週番号がその年に存在しない場合（W00や53週の無い年のW53など）はエラーを返す。
func Parse(s string) (Week, error) {
	m := weekPattern.FindStringSubmatch(s)
	if m == nil {
		return Week{}, fmt.Errorf("invalid ISO week format: %q", s)
	}
	year, _ := strconv.Atoi(m[1])
	number, _ := strconv.Atoi(m[2])
	if number < 1 || number > WeeksInYear(year) {
		return Week{}, fmt.Errorf("week number out of range for %d: %q", year, s)
	}
	return Week{Year: year, Number: number}, nil
}

// Valid は文字列が有効なISO週かどうかを返す。
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// WeeksInYear はISO年に含まれる週数（52または53）を返す。
// 12月28日は必ずその年の最終週に属する。
func WeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// Of は時刻が属するISO週を返す。
func Of(t time.Time) Week {
	y, w := t.ISOWeek()
	return Week{Year: y, Number: w}
}

// String は "YYYY-Www" 形式の文字列を返す。
func (w Week) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Number)
}

// Monday は週の月曜日（UTC 0時）を返す。
func (w Week) Monday() time.Time {
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	firstMonday := jan4.AddDate(0, 0, -offset)
	return firstMonday.AddDate(0, 0, (w.Number-1)*7)
}

// Date は週のweekday（1=月曜）の日付を返す。
func (w Week) Date(weekday int) time.Time {
	return w.Monday().AddDate(0, 0, weekday-1)
}

// Next は翌週を返す。
func (w Week) Next() Week {
	return Of(w.Monday().AddDate(0, 0, 7))
}

// Prev は前週を返す。
func (w Week) Prev() Week {
	return Of(w.Monday().AddDate(0, 0, -7))
}

// AddWeeks はn週後（負の場合はn週前）を返す。
func (w Week) AddWeeks(n int) Week {
	return Of(w.Monday().AddDate(0, 0, 7*n))
}

// Before はwがoより前の週かどうかを返す。
func (w Week) Before(o Week) bool {
	if w.Year != o.Year {
		return w.Year < o.Year
	}
	return w.Number < o.Number
}

// Day は週内の1日を表す。
type Day struct {
	Weekday int
	Date    time.Time
}

// Days は月曜〜金曜の日付一覧を返す。
func (w Week) Days() []Day {
	days := make([]Day, 0, LastWeekday)
	for wd := FirstWeekday; wd <= LastWeekday; wd++ {
		days = append(days, Day{Weekday: wd, Date: w.Date(wd)})
	}
	return days
}

// Calendar は注入された時計とタイムゾーンで「今週」を判定する。
type Calendar struct {
	clock    clockwork.Clock
	location *time.Location
}

// NewCalendar はCalendarを生成する。locがnilの場合はUTCを使用する。
func NewCalendar(clock clockwork.Clock, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{clock: clock, location: loc}
}

// Current は現在のISO週を返す。
// 土曜・日曜は翌週として扱う（週末に開いたときは次の平日の予定を表示する）。
func (c *Calendar) Current() Week {
	now := c.clock.Now().In(c.location)
	w := Of(now)
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return w.Next()
	}
	return w
}
