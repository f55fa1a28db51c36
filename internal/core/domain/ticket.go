package domain

// TicketRef points at an externally created tracking ticket.
// ID is immutable once set; only Status may change afterwards.
type TicketRef struct {
	ID     string `json:"id"`
	Key    string `json:"key,omitempty"`
	URL    string `json:"url,omitempty"`
	Status string `json:"status"`
}
