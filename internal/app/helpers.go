package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"bugboard/internal/model"
	"bugboard/internal/source"
	"bugboard/internal/ui/detail"
)

// actionDoneMsg reports the outcome of a detail-view action.
type actionDoneMsg struct {
	err error
}

// taskToItemDetail wraps a cached task as an ItemDetail for offline
// viewing when the source is unreachable.
func taskToItemDetail(task *model.Task) *source.ItemDetail {
	return &source.ItemDetail{
		Task:         *task,
		RenderedBody: task.Description,
	}
}

// executeDetailAction runs a detail-view action against the bug's source.
func (m Model) executeDetailAction(msg detail.ActionMsg) tea.Cmd {
	s := m.store
	reg := m.registry

	return func() tea.Msg {
		ctx := context.Background()

		task, err := s.GetTaskByID(ctx, msg.TaskID)
		if err != nil || task == nil {
			return actionDoneMsg{err: fmt.Errorf("bug %s not found", msg.TaskID)}
		}

		adapter, ok := reg.get(task.SourceID)
		if !ok {
			return actionDoneMsg{
				err: fmt.Errorf("no adapter registered for source %s", task.SourceID),
			}
		}

		switch msg.Action {
		case "open_url":
			// The detail view already shows the URL; nothing to execute.
			return actionDoneMsg{}
		default:
			err := adapter.ExecuteAction(
				ctx,
				task.SourceItemID,
				source.Action{ID: msg.Action},
				msg.Input,
			)
			return actionDoneMsg{err: err}
		}
	}
}
