package model

import (
	"strconv"
	"strings"
)

// MemberStatus is the closed set of membership states reported by the
// messaging platform. Anything unrecognized maps to MemberUnknown.
type MemberStatus string

const (
	MemberStatusMember        MemberStatus = "member"
	MemberStatusAdministrator MemberStatus = "administrator"
	MemberStatusOwner         MemberStatus = "owner"
	MemberStatusLeft          MemberStatus = "left"
	MemberStatusKicked        MemberStatus = "kicked"
	MemberStatusUnknown       MemberStatus = "unknown"
)

// Counts returns whether the status satisfies the subscription gate.
func (s MemberStatus) Counts() bool {
	switch s {
	case MemberStatusMember, MemberStatusAdministrator, MemberStatusOwner:
		return true
	}
	return false
}

// ChannelRef identifies a required channel either by @username or by
// numeric chat id, matching how SUB_CHANNELS entries are written.
type ChannelRef struct {
	Username string
	ChatID   int64
}

func ParseChannelRef(raw string) ChannelRef {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "@") {
		return ChannelRef{Username: raw}
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ChannelRef{ChatID: id}
	}
	return ChannelRef{Username: raw}
}

func (c ChannelRef) String() string {
	if c.Username != "" {
		return c.Username
	}
	return strconv.FormatInt(c.ChatID, 10)
}

// JoinURL builds the t.me link shown on the subscribe keyboard. Private
// channels referenced by numeric id have no public link.
func (c ChannelRef) JoinURL() string {
	if strings.HasPrefix(c.Username, "@") {
		return "https://t.me/" + strings.TrimPrefix(c.Username, "@")
	}
	return "https://t.me/"
}
