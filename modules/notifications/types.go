package notifications

// RecentRequest is the request for reading recent notifications.
type RecentRequest struct {
	Limit int `json:"limit,omitempty"`
}

// RecentResponse lists notifications, newest first.
type RecentResponse struct {
	Notifications []Notification `json:"notifications"`
	Count         int            `json:"count"`
}

// ClearRequest is the request for dropping stored notifications.
type ClearRequest struct{}

// ClearResponse reports how many notifications were dropped.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}
