package chat

import "time"

// Session captures a transient in-memory conversation. Sessions live for the
// process lifetime at most; an idle sweeper may evict them earlier.
type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}
