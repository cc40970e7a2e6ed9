package domain

import "time"

// MemberStatus 用來表示使用者狀態
type MemberStatus int

// 状态: 0=offline, 1=online
const (
	// MemberStatusOffLine 使用者離線
	MemberStatusOffLine MemberStatus = iota
	// MemberStatusOnLine 使用者在線
	MemberStatusOnLine
)

// LastSeen when a user's last connection dropped; also the queue job body
type LastSeen struct {
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}
