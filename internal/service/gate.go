package service

import (
	"context"
	"log"
	"time"

	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
)

// MembershipClient queries the messaging platform for a user's status in a
// channel (implemented by telegram.Bot).
type MembershipClient interface {
	ChatMemberStatus(ctx context.Context, channel model.ChannelRef, userID int64) (model.MemberStatus, error)
}

// SubscriptionGate decides whether a user satisfies every required channel
// membership. Failures are never treated as membership: any error or timeout
// counts as "not subscribed".
type SubscriptionGate struct {
	client   MembershipClient
	channels []model.ChannelRef
	timeout  time.Duration
}

func NewSubscriptionGate(client MembershipClient, channels []model.ChannelRef, timeout time.Duration) *SubscriptionGate {
	return &SubscriptionGate{
		client:   client,
		channels: channels,
		timeout:  timeout,
	}
}

// IsMember reports membership in a single channel, fail-closed.
func (g *SubscriptionGate) IsMember(ctx context.Context, channel model.ChannelRef, userID int64) bool {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	status, err := g.client.ChatMemberStatus(ctx, channel, userID)
	if err != nil {
		log.Printf("Membership check failed for %s (user %d): %v", channel, userID, err)
		return false
	}
	return status.Counts()
}

// IsSubscribedToAll is true when no channels are configured or the user is a
// member of every one. Stops at the first failing channel.
func (g *SubscriptionGate) IsSubscribedToAll(ctx context.Context, userID int64) bool {
	for _, channel := range g.channels {
		if !g.IsMember(ctx, channel, userID) {
			return false
		}
	}
	return true
}

// Required reports whether any channel subscription is configured at all.
func (g *SubscriptionGate) Required() bool {
	return len(g.channels) > 0
}

func (g *SubscriptionGate) Channels() []model.ChannelRef {
	return g.channels
}
