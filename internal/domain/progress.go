package domain

// NotificationProgress is the aggregate view the UI polls while a broadcast runs.
// current_level is null once the notification is terminal.
type NotificationProgress struct {
	CurrentLevel       *int `json:"current_level"`
	TotalLevels        int  `json:"total_levels"`
	TotalSent          int  `json:"total_sent"`
	TotalAcknowledged  int  `json:"total_acknowledged"`
	TotalPending       int  `json:"total_pending"`
	ProgressPercentage int  `json:"progress_percentage"`
}

// NotificationWithLogs pairs a notification with its full per-recipient
// timeline, ordered by level then creation, for timeline rendering.
type NotificationWithLogs struct {
	Notification
	Logs []NotificationLog `json:"logs"`
}
