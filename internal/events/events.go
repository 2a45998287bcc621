// Package events delivers saga triggers over Redis pub/sub, the
// event-driven counterpart of the HTTP trigger surface. A message's channel
// names the trigger and its payload carries the saga identifier plus any
// trigger parameter.
//
// Delivery is at-least-once: a duplicate trigger for a saga that already
// moved on is rejected by the transition table and logged, never
// re-executed, so redelivery cannot corrupt state.
package events

import (
	"strings"
)

// ChannelPrefix namespaces every saga trigger channel.
const ChannelPrefix = "phonecalls."

// StartChannel creates a new saga and dials; all other channels fire a
// trigger on an existing one. "terminate" is the transport alias for the
// phoneHurledAgainstWall trigger, matching the terminate operation on the
// HTTP surface.
const (
	StartChannel     = ChannelPrefix + "dial"
	TerminateChannel = ChannelPrefix + "terminate"
)

// StartCallMessage is the payload on the dial channel.
type StartCallMessage struct {
	CallerName     string `json:"caller_name"`
	CallerNumber   string `json:"caller_number"`
	ReceiverName   string `json:"receiver_name"`
	ReceiverNumber string `json:"receiver_number"`
}

// TriggerMessage is the payload on every other trigger channel.
type TriggerMessage struct {
	ID string `json:"id"`
	// Parameter carries the trigger's typed parameter when it has one
	// (volume level for setVolume).
	Parameter any `json:"parameter,omitempty"`
}

// Channel returns the pub/sub channel for a trigger wire name.
func Channel(trigger string) string {
	return ChannelPrefix + trigger
}

func triggerName(channel string) string {
	return strings.TrimPrefix(channel, ChannelPrefix)
}
