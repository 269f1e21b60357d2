package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"bugboard/internal/model"
	"bugboard/internal/source"
	"bugboard/internal/store"
)

// SyncState represents the current state of a source sync operation.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the sync state for a single source instance.
type SyncStatus struct {
	SourceID   string
	SourceName string
	State      SyncState
	LastSync   time.Time
	Error      error
}

// SyncResultMsg is a tea.Msg sent when a sync operation completes.
type SyncResultMsg struct {
	Tasks        []model.Task
	SourceID     string
	SourceName   string
	Error        error
	AuthError    *AuthErrorMsg
	NewTaskCount int
}

// AuthErrorMsg is a tea.Msg sent when a source returns an authentication error.
type AuthErrorMsg struct {
	SourceID   string
	SourceName string
	Message    string
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// sourceEntry holds a registered source, its configuration, and its
// refresh trigger channel.
type sourceEntry struct {
	src     source.Source
	cfg     model.SourceConfig
	trigger chan struct{}
}

// Poller orchestrates background polling of registered sources. Each
// source instance polls on its own goroutine at its configured interval.
type Poller struct {
	store    store.Store
	entries  map[string]*sourceEntry
	statuses map[string]*SyncStatus
	resultCh chan SyncResultMsg
	stopCh   chan struct{}
	mu       gosync.Mutex
	running  bool
}

// New creates a new Poller with the given store.
func New(s store.Store) *Poller {
	return &Poller{
		store:    s,
		entries:  make(map[string]*sourceEntry),
		statuses: make(map[string]*SyncStatus),
		resultCh: make(chan SyncResultMsg, 16),
		stopCh:   make(chan struct{}),
	}
}

// RegisterSource adds a source adapter and its configuration to the
// poller. Registering an ID that is already known swaps in the new
// adapter and configuration instead of adding a duplicate. Sources
// registered after Start get their polling goroutine immediately.
func (p *Poller) RegisterSource(src source.Source, cfg model.SourceConfig) {
	p.mu.Lock()
	if entry, ok := p.entries[cfg.ID]; ok {
		entry.src = src
		entry.cfg = cfg
		p.statuses[cfg.ID].SourceName = cfg.Name
		p.mu.Unlock()
		return
	}

	p.entries[cfg.ID] = &sourceEntry{
		src:     src,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	}
	p.statuses[cfg.ID] = &SyncStatus{
		SourceID:   cfg.ID,
		SourceName: cfg.Name,
		State:      SyncIdle,
	}
	running := p.running
	p.mu.Unlock()

	if running {
		go p.pollSource(cfg.ID)
	}
}

// UnregisterSource removes a source instance; its polling goroutine
// exits on the next wakeup.
func (p *Poller) UnregisterSource(sourceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, sourceID)
	delete(p.statuses, sourceID)
}

// Start returns a tea.Cmd that starts all polling goroutines and
// subscribes to results. The returned command waits on the result
// channel and returns SyncResultMsg messages to the Bubble Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		go p.pollSource(id)
	}

	return p.waitForResult()
}

// Stop halts all polling goroutines.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// RefreshAll triggers an immediate poll of all registered sources.
func (p *Poller) RefreshAll() tea.Cmd {
	p.mu.Lock()
	triggers := make([]chan struct{}, 0, len(p.entries))
	for _, entry := range p.entries {
		triggers = append(triggers, entry.trigger)
	}
	p.mu.Unlock()

	for _, trigger := range triggers {
		select {
		case trigger <- struct{}{}:
		default:
			// A refresh is already pending for this source
		}
	}

	return nil
}

// RefreshSource triggers an immediate poll of a single source instance.
func (p *Poller) RefreshSource(sourceID string) tea.Cmd {
	p.mu.Lock()
	entry, ok := p.entries[sourceID]
	p.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case entry.trigger <- struct{}{}:
	default:
	}
	return nil
}

// GetStatuses returns the current sync status of all registered sources.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	return statuses
}

// pollSource runs the polling loop for a single source. It exits when
// the poller stops or the source is unregistered.
func (p *Poller) pollSource(id string) {
	p.mu.Lock()
	entry, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	interval := time.Duration(entry.cfg.PollIntervalSec) * time.Second
	trigger := entry.trigger
	p.mu.Unlock()

	if interval <= 0 {
		interval = 300 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	if !p.fetchAndUpsert(id) {
		return
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if !p.fetchAndUpsert(id) {
				return
			}
		case <-trigger:
			if !p.fetchAndUpsert(id) {
				return
			}
		}
	}
}

// fetchAndUpsert performs a single fetch operation, upserts results to
// the store, and sends a SyncResultMsg on the result channel. It
// reports false when the source is no longer registered.
func (p *Poller) fetchAndUpsert(id string) bool {
	p.mu.Lock()
	entry, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	src := entry.src
	name := entry.cfg.Name
	p.mu.Unlock()

	p.setStatus(id, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	result, err := src.FetchItems(ctx, source.FetchOptions{
		Page:     1,
		PageSize: 50,
	})

	if err != nil {
		p.setStatus(id, SyncError, err)

		// Detect auth errors and emit a specific message.
		if source.IsAuthError(err) {
			p.sendResult(SyncResultMsg{
				SourceID:   id,
				SourceName: name,
				Error:      err,
				AuthError: &AuthErrorMsg{
					SourceID:   id,
					SourceName: name,
					Message: fmt.Sprintf(
						"%s: authentication failed. Press 'c' to reconfigure.",
						name,
					),
				},
			})
			return true
		}

		p.sendResult(SyncResultMsg{
			SourceID:   id,
			SourceName: name,
			Error:      err,
		})
		return true
	}

	tasks := result.Items

	// Detect new tasks by checking which ones don't exist in the store yet.
	var newTaskIDs map[string]bool
	if len(tasks) > 0 {
		existingTasks, _ := p.store.GetTasks(ctx, store.TaskFilter{
			SourceID: &id,
			Limit:    1000,
		})
		existingIDs := make(map[string]bool, len(existingTasks))
		for _, t := range existingTasks {
			existingIDs[t.ID] = true
		}
		newTaskIDs = make(map[string]bool)
		for _, t := range tasks {
			if !existingIDs[t.ID] {
				newTaskIDs[t.ID] = true
			}
		}
	}

	if len(tasks) > 0 {
		if upsertErr := p.store.UpsertTasks(ctx, tasks); upsertErr != nil {
			p.setStatus(id, SyncError, upsertErr)
			p.sendResult(SyncResultMsg{
				SourceID:   id,
				SourceName: name,
				Error:      upsertErr,
			})
			return true
		}
	}

	// Create notifications for new tasks only.
	newTaskCount := len(newTaskIDs)
	if newTaskCount > 0 {
		for _, t := range tasks {
			if !newTaskIDs[t.ID] {
				continue
			}
			notification := model.Notification{
				TaskID:     t.ID,
				SourceType: t.SourceType,
				Message:    fmt.Sprintf("New bug: %s", t.Title),
				CreatedAt:  time.Now(),
			}
			_ = p.store.CreateNotification(ctx, notification)
		}
	}

	p.setStatus(id, SyncIdle, nil)
	p.sendResult(SyncResultMsg{
		Tasks:        tasks,
		SourceID:     id,
		SourceName:   name,
		NewTaskCount: newTaskCount,
	})
	return true
}

// setStatus updates the sync status for a source instance.
func (p *Poller) setStatus(id string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[id]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// This should be called after processing a SyncResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
