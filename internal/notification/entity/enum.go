package entity

import (
	"strings"
)

type Channel int16

const (
	ChannelUnknown Channel = 0
	ChannelEmail   Channel = 1
	ChannelSMS     Channel = 2
)

// Channels lists every deliverable channel in dispatch order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS}
}

func ChannelFromString(raw string) Channel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "email":
		return ChannelEmail
	case "sms":
		return ChannelSMS
	default:
		return ChannelUnknown
	}
}

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	case ChannelSMS:
		return "sms"
	default:
		return "unknown"
	}
}

// Status is the delivery state of a single notification record.
// Pending is initial; sent and failed are terminal.
type Status int16

const (
	StatusUnknown Status = 0
	StatusPending Status = 1
	StatusSent    Status = 2
	StatusFailed  Status = 3
)

func StatusFromString(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending
	case "sent":
		return StatusSent
	case "failed":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}
