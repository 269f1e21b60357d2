package store

import (
	"context"

	"bugboard/internal/model"
)

// TaskFilter controls filtering, sorting, and pagination for task queries.
type TaskFilter struct {
	SourceID *string
	Status   *string
	Priority *int
	Project  *string
	Query    *string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// Store defines the persistence interface for tasks, sources, and
// notifications.
type Store interface {
	UpsertTasks(ctx context.Context, tasks []model.Task) error
	GetTasks(ctx context.Context, opts TaskFilter) ([]model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	DeleteTasksBySource(ctx context.Context, sourceID string) error

	UpsertSource(ctx context.Context, src model.SourceConfig) error
	GetSources(ctx context.Context) ([]model.SourceConfig, error)
	DeleteSource(ctx context.Context, id string) error

	CreateNotification(ctx context.Context, n model.Notification) error
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}
