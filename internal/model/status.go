// Package model はドメインモデルを定義する。
package model

import "time"

// Status はその日のランチの予定を表す。
type Status string

const (
	// StatusLunchbox は弁当持参（社内で食べる）。
	StatusLunchbox Status = "Lunchbox"
	// StatusBuying は外で買う・食べに行く。
	StatusBuying Status = "Buying"
	// StatusHome は在宅。
	StatusHome Status = "Home"
	// StatusAway は不在（休暇・出張など）。
	StatusAway Status = "Away"
)

// Valid は定義済みのStatusかどうかを返す。
func (s Status) Valid() bool {
	switch s {
	case StatusLunchbox, StatusBuying, StatusHome, StatusAway:
		return true
	}
	return false
}

// Visibility は予定の公開範囲を表す。
type Visibility string

const (
	// VisibilityGroupOnly は1つのグループ（またはグループ未所属の個人予定）に限定する。
	VisibilityGroupOnly Visibility = "group_only"
	// VisibilityAllGroups は所属する全グループに公開する。
	VisibilityAllGroups Visibility = "all_groups"
)

// Valid は定義済みのVisibilityかどうかを返す。
func (v Visibility) Valid() bool {
	return v == VisibilityGroupOnly || v == VisibilityAllGroups
}

// DayStatus はユーザーのある週・ある曜日のランチ予定を表す。
// (UserID, GroupID, ISOWeek, Weekday) の複合キーで一意となる。
// GroupIDがnilのレコードは個人予定（グループ未所属ユーザー用）。
type DayStatus struct {
	ID            string
	UserID        string
	GroupID       *string
	ISOWeek       string
	Weekday       int // 1=月曜 ... 5=金曜
	Status        *Status
	ArrivalTime   *string // HH:MM
	Location      *string
	StartLocation *string
	EatLocation   *string
	Note          *string
	Visibility    Visibility
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsPersonal はグループに紐付かない個人予定かどうかを返す。
func (d *DayStatus) IsPersonal() bool {
	return d.GroupID == nil
}

// Key はレコードの複合キーを返す。
func (d *DayStatus) Key() StatusKey {
	return StatusKey{
		UserID:  d.UserID,
		GroupID: d.GroupID,
		ISOWeek: d.ISOWeek,
		Weekday: d.Weekday,
	}
}

// StatusKey はDayStatusの複合キー。
type StatusKey struct {
	UserID  string
	GroupID *string
	ISOWeek string
	Weekday int
}

// SameGroup は2つのグループIDが同一か（ともにnilの場合も含む）を返す。
func SameGroup(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
