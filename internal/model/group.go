// Package model はドメインモデルを定義する。
package model

import "time"

// Group はランチ予定を共有するユーザーの集まりを表す。
// CreatorIDは作成後に変更されない。作成者であっても
// Membershipにadminとして登録されていなければadminメンバーではない。
type Group struct {
	ID          string
	Name        string
	CreatorID   string
	JoinCode    string
	InviteToken string
	Privacy     string
	Category    string
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MemberRole はグループ内のロールを表す。
type MemberRole string

const (
	// MemberRoleAdmin はグループ管理者。
	MemberRoleAdmin MemberRole = "admin"
	// MemberRoleMember は一般メンバー。
	MemberRoleMember MemberRole = "member"
)

// Membership はグループとユーザーの所属関係を表す。
type Membership struct {
	GroupID  string
	UserID   string
	Role     MemberRole
	JoinedAt time.Time
}

// GroupMember はグループの名簿に表示するメンバー情報。
type GroupMember struct {
	User
	Role     MemberRole
	JoinedAt time.Time
}

// GroupWithRole はユーザーが所属するグループとそのユーザーのロールを結合したモデル。
type GroupWithRole struct {
	Group
	Role MemberRole
}
