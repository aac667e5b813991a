package domain

import "time"

// Priority orders notifications for display and delivery channels.
// It never alters escalation mechanics.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank returns the ordering of the priority (low < medium < high < critical).
func (p Priority) Rank() int { return priorityRank[p] }

type NotificationStatus string

const (
	StatusPending    NotificationStatus = "pending"
	StatusInProgress NotificationStatus = "in_progress"
	StatusCompleted  NotificationStatus = "completed"
	StatusFailed     NotificationStatus = "failed"
)

// Terminal reports whether no further mutation of the notification is permitted.
func (s NotificationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Notification is one emergency broadcast instance walking a calling tree.
// Created by Trigger, mutated only by the escalation engine, immutable once terminal.
// The current level is always derived from the log set, never stored.
type Notification struct {
	NotificationID string             `json:"id" dynamodbav:"notification_id"`
	TreeID         string             `json:"tree_id" dynamodbav:"tree_id"`
	OrganizationID string             `json:"organization_id" dynamodbav:"organization_id"`
	Title          string             `json:"title" dynamodbav:"title"`
	Message        string             `json:"message" dynamodbav:"message"`
	Priority       Priority           `json:"priority" dynamodbav:"priority"`
	Status         NotificationStatus `json:"status" dynamodbav:"status"`
	InitiatedBy    string             `json:"initiated_by" dynamodbav:"initiated_by"`
	InitiatedAt    time.Time          `json:"initiated_at" dynamodbav:"initiated_at"`
	CompletedAt    *time.Time         `json:"completed_at" dynamodbav:"completed_at"`
	Metadata       map[string]string  `json:"metadata" dynamodbav:"metadata"`

	// Persisted scheduler deadline. The in-process timer registry is a cache;
	// these two fields are what startup rehydration reads.
	TimeoutLevel int        `json:"-" dynamodbav:"timeout_level"`
	TimeoutAt    *time.Time `json:"-" dynamodbav:"timeout_at"`
}
