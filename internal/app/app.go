package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"bugboard/internal/keys"
	"bugboard/internal/store"
	appsync "bugboard/internal/sync"
	"bugboard/internal/ui"
	"bugboard/internal/ui/command"
	configview "bugboard/internal/ui/config"
	"bugboard/internal/ui/detail"
	helpview "bugboard/internal/ui/help"
	"bugboard/internal/ui/tasklist"
)

// unreadCountMsg carries the number of unread notifications to the UI.
type unreadCountMsg struct {
	count int
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewConfig
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the persistence layer.
type Model struct {
	currentView      ViewState
	previousView     ViewState
	layout           ui.Layout
	store            *store.SQLiteStore
	keys             *keys.KeyMap
	taskList         tasklist.Model
	detail           detail.Model
	helpView         helpview.Model
	commandView      command.Model
	configView       configview.Model
	poller           *appsync.Poller
	registry         *adapterRegistry
	ready            bool
	unreadCount      int
	authErrorMessage string
}

// New creates a new root application model with the given store.
func New(s *store.SQLiteStore) Model {
	k := keys.DefaultKeyMap()
	p := appsync.New(s)

	return Model{
		currentView: ViewList,
		store:       s,
		keys:        k,
		taskList:    tasklist.New(s, k, 80, 24),
		detail:      detail.New(s, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		configView:  configview.New(s, k, 80, 24),
		poller:      p,
		registry:    newAdapterRegistry(),
	}
}

// Init returns the initial commands to load bugs and start polling.
// It registers the configured Bugzilla targets before starting the
// poller so that all adapters are available for the first sync.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.taskList.Init(),
		m.registerSources(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.taskList.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.configView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case sourcesRegisteredMsg:
		// If no targets are configured, enter first-run config setup.
		if msg.count == 0 {
			m.previousView = m.currentView
			m.currentView = ViewConfig
			return m, m.configView.Init()
		}
		// Targets are registered; now start the poller.
		return m, m.poller.Start()

	case appsync.SyncResultMsg:
		// Handle auth errors by showing a status bar message.
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			// Clear auth error for this target on successful sync.
			m.authErrorMessage = ""
		}

		// Track stale targets for the list renderer.
		if msg.Error != nil || msg.AuthError != nil {
			m.taskList.MarkSourceStale(msg.SourceID)
		} else {
			m.taskList.ClearSourceStale(msg.SourceID)
		}

		// After a sync completes, reload the bug list and update
		// the unread notification count.
		cmd := m.taskList.LoadTasks()
		waitCmd := m.poller.WaitForNextResult()
		countCmd := m.fetchUnreadCount()
		return m, tea.Batch(cmd, waitCmd, countCmd)

	case unreadCountMsg:
		m.unreadCount = msg.count
		return m, nil

	case tasklist.SelectedTaskMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetLoading(true)
		return m, m.loadTaskDetail(msg.TaskID)

	case detail.DetailLoadedMsg:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.ActionMsg:
		return m, m.executeDetailAction(msg)

	case actionDoneMsg:
		if msg.err != nil {
			m.authErrorMessage = fmt.Sprintf("action failed: %v", msg.err)
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case configview.ConfigDoneMsg:
		m.currentView = ViewList
		// Re-register targets and restart polling after config changes
		return m, tea.Batch(
			m.taskList.LoadTasks(),
			m.registerSources(),
		)

	case configview.SourceSavedMsg:
		// Target was saved in config view; re-register and poll
		return m, tea.Batch(
			m.taskList.LoadTasks(),
			m.registerSources(),
		)

	case configview.SourceDeletedMsg:
		// Target was deleted; stop polling it and reload bugs
		m.poller.UnregisterSource(msg.ID)
		return m, tea.Batch(
			m.taskList.LoadTasks(),
			m.registerSources(),
		)

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.poller.Stop()
			return m, tea.Quit
		}

		// A focused text input gets every key before the global
		// shortcuts, so typing "?" or ":" does not switch views.
		if m.inputCaptureActive() {
			return m.updateActiveView(msg)
		}

		switch msg.String() {
		case "q":
			if m.currentView == ViewList {
				m.poller.Stop()
				return m, tea.Quit
			}

		case "?":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case ":":
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case "c":
			if m.currentView == ViewList {
				m.previousView = m.currentView
				m.currentView = ViewConfig
				return m, m.configView.Init()
			}

		case "r":
			if m.currentView == ViewList {
				m.poller.RefreshAll()
				return m, m.taskList.LoadTasks()
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// inputCaptureActive reports whether the active view has a focused
// text input (or form) that should receive all keystrokes.
func (m Model) inputCaptureActive() bool {
	switch m.currentView {
	case ViewList:
		return m.taskList.Searching()
	case ViewDetail:
		return m.detail.Composing()
	case ViewCommand:
		return true
	case ViewConfig:
		return m.configView.EditingForm()
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "bugboard"
	if m.unreadCount > 0 {
		headerTitle = fmt.Sprintf("bugboard [%d new]", m.unreadCount)
	}
	header := m.layout.RenderHeader(headerTitle, m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.taskList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewConfig:
		return m.configView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the combined sync state.
func (m Model) syncStatus() string {
	statuses := m.poller.GetStatuses()
	if len(statuses) == 0 {
		return "no targets"
	}

	running := 0
	errCount := 0
	var staleNames []string
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			errCount++
			staleNames = append(staleNames, s.SourceName)
		}
	}

	if running > 0 {
		return fmt.Sprintf("syncing (%d)", running)
	}
	if errCount > 0 {
		return fmt.Sprintf("⚠ unreachable: %s", joinStaleNames(staleNames))
	}
	return "idle"
}

// joinStaleNames joins target names for display.
func joinStaleNames(names []string) string {
	if len(names) == 0 {
		return ""
	}
	result := names[0]
	for i := 1; i < len(names); i++ {
		result += ", " + names[i]
	}
	return result
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show auth error prominently when present.
	if m.authErrorMessage != "" && m.currentView == ViewList {
		return m.authErrorMessage
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		return "esc back | c comment | j/k scroll"
	case ViewConfig:
		return "a add | e edit | d delete | enter test | esc back"
	default:
		return "q quit | ? help | / search | r refresh | tab sort"
	}
}

// loadTaskDetail returns a command that loads a bug by ID. It prefers
// the live source detail (with comments) and falls back to the cached
// task when the source is unreachable.
func (m Model) loadTaskDetail(taskID string) tea.Cmd {
	s := m.store
	reg := m.registry

	return func() tea.Msg {
		ctx := context.Background()

		task, err := s.GetTaskByID(ctx, taskID)
		if err != nil || task == nil {
			return detail.DetailLoadedMsg{Detail: nil}
		}

		if adapter, ok := reg.get(task.SourceID); ok {
			if d, err := adapter.GetItemDetail(ctx, task.SourceItemID); err == nil {
				return detail.DetailLoadedMsg{Detail: d}
			}
		}

		return detail.DetailLoadedMsg{Detail: taskToItemDetail(task)}
	}
}

// fetchUnreadCount returns a tea.Cmd that queries the store for the
// number of unread notifications.
func (m Model) fetchUnreadCount() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		notifications, err := s.GetUnreadNotifications(context.Background())
		if err != nil {
			return unreadCountMsg{count: 0}
		}
		return unreadCountMsg{count: len(notifications)}
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh", "sync":
		m.poller.RefreshAll()
		return m.taskList.LoadTasks()
	case "quit", "q":
		m.poller.Stop()
		return tea.Quit
	case "configure", "config":
		m.previousView = m.currentView
		m.currentView = ViewConfig
		return m.configView.Init()
	case "open", "all":
		m.taskList.SetStatusFilter("")
		return m.taskList.LoadTasks()
	case "in progress", "in_progress":
		m.taskList.SetStatusFilter("in_progress")
		return m.taskList.LoadTasks()
	case "review", "needinfo":
		m.taskList.SetStatusFilter("review")
		return m.taskList.LoadTasks()
	case "clear filters", "clear":
		m.taskList.SetStatusFilter("")
		m.taskList.SetProjectFilter("")
		return m.taskList.LoadTasks()
	default:
		// "project <name>" filters by component
		const projectPrefix = "project "
		if len(cmd) > len(projectPrefix) && cmd[:len(projectPrefix)] == projectPrefix {
			m.taskList.SetProjectFilter(cmd[len(projectPrefix):])
			return m.taskList.LoadTasks()
		}
		return nil
	}
}
