package domain

import "time"

// Channel identifies where a feedback item came from.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelWidget Channel = "widget"
	ChannelStore  Channel = "store"
	ChannelOther  Channel = "other"
)

// FeedbackItem is the input unit of the pipeline. The workflow core treats it
// as opaque beyond the identifier and timestamps.
type FeedbackItem struct {
	ID         string    `json:"id"`
	Customer   string    `json:"customer"`
	Channel    Channel   `json:"channel"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}
