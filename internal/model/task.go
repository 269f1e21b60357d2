package model

import "time"

// SourceType identifies the origin system of a task.
type SourceType string

const (
	SourceTypeBugzilla SourceType = "bugzilla"
)

// Normalized status constants used across the application.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Normalized priority constants (lower number = higher priority).
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
	PriorityLowest   = 5
)

// Task is the unified representation of a bug pulled from a source.
type Task struct {
	// ID is the internal unique identifier for this task.
	ID string `json:"id"`

	// SourceType identifies which integration produced this task.
	SourceType SourceType `json:"source_type"`

	// SourceItemID is the item's identifier within its source system
	// (the Bugzilla bug number).
	SourceItemID string `json:"source_item_id"`

	// SourceID is the identifier for the configured source instance.
	SourceID string `json:"source_id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title"`

	// Description is the full body/description text.
	Description string `json:"description"`

	// Status is the normalized status (use Status* constants).
	Status string `json:"status"`

	// Priority is the normalized priority level (use Priority* constants).
	Priority int `json:"priority"`

	// Assignee is the username of the assigned person.
	Assignee string `json:"assignee"`

	// Author is the username of the reporter.
	Author string `json:"author"`

	// Project is the grouping the task belongs to (the bug's component).
	Project string `json:"project"`

	// SourceURL is the direct link back to the item in its source system.
	SourceURL string `json:"source_url"`

	// CreatedAt is when the item was originally created in the source system.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the item was last modified in the source system.
	UpdatedAt time.Time `json:"updated_at"`

	// FetchedAt is when this item was last retrieved from the source.
	FetchedAt time.Time `json:"fetched_at"`

	// RawData holds the original JSON payload from the source system.
	RawData string `json:"raw_data"`
}
