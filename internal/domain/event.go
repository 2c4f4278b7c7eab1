package domain

import "time"

// PoolEventType names a committed pool transition.
type PoolEventType string

const (
	EventJoined   PoolEventType = "joined"
	EventStarted  PoolEventType = "started"
	EventLeft     PoolEventType = "left"
	EventEvicted  PoolEventType = "evicted"
	EventSettled  PoolEventType = "settled"
	EventReopened PoolEventType = "reopened"
	EventOverdue  PoolEventType = "overdue"
)

// PoolEvent is published on ChannelPools after a transition commits.
type PoolEvent struct {
	Type   PoolEventType `json:"type"`
	Pool   Pool          `json:"pool"`
	Wallet string        `json:"wallet,omitempty"`
	At     time.Time     `json:"at"`
}
