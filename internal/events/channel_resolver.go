package events

import (
	"strings"

	"github.com/google/uuid"
)

const (
	ChannelPrefixUser = "channel:user:"
	ChannelBroadcast  = "channel:broadcast"
	// ChannelPattern matches every channel the bridge publishes on.
	ChannelPattern = "channel:*"
)

func UserChannel(userID uuid.UUID) string {
	return ChannelPrefixUser + userID.String()
}

// ResolveChannel maps a bridge channel back to its target user. ok is false
// for the broadcast channel and anything unrecognised.
func ResolveChannel(channel string) (uuid.UUID, bool) {
	if !strings.HasPrefix(channel, ChannelPrefixUser) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, ChannelPrefixUser))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
