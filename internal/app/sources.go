package app

import (
	"context"
	"log"
	gosync "sync"

	tea "github.com/charmbracelet/bubbletea"

	"bugboard/internal/credential"
	"bugboard/internal/model"
	"bugboard/internal/source"
	"bugboard/internal/source/bugzilla"
)

// sourcesRegisteredMsg is sent when all configured targets have been
// registered with the poller.
type sourcesRegisteredMsg struct {
	count int
}

// adapterRegistry maps source IDs to their live adapters so views can
// reach the source for details and actions. Registration happens inside
// tea.Cmd goroutines, hence the mutex.
type adapterRegistry struct {
	mu       gosync.Mutex
	adapters map[string]source.Source
}

func newAdapterRegistry() *adapterRegistry {
	return &adapterRegistry{adapters: make(map[string]source.Source)}
}

func (r *adapterRegistry) put(id string, src source.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[id] = src
}

func (r *adapterRegistry) get(id string) (source.Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.adapters[id]
	return src, ok
}

// registerSources queries the store for configured targets and registers
// each enabled Bugzilla target with the poller. Credentials are loaded
// from the system keyring.
func (m *Model) registerSources() tea.Cmd {
	s := m.store
	p := m.poller
	reg := m.registry

	return func() tea.Msg {
		ctx := context.Background()

		sources, err := s.GetSources(ctx)
		if err != nil {
			log.Printf("failed to load targets: %v", err)
			return sourcesRegisteredMsg{count: 0}
		}

		registered := 0
		for _, src := range sources {
			if !src.Enabled {
				continue
			}

			if src.Type != string(model.SourceTypeBugzilla) {
				continue
			}

			adapter := createBugzillaAdapter(src)
			if adapter == nil {
				continue
			}
			reg.put(src.ID, adapter)
			p.RegisterSource(adapter, src)
			registered++
		}

		return sourcesRegisteredMsg{count: registered}
	}
}

// createBugzillaAdapter builds a Bugzilla adapter from a stored target,
// loading the secret from the system keyring.
func createBugzillaAdapter(src model.SourceConfig) *bugzilla.Adapter {
	secret, err := credential.Get("bugzilla-" + src.ID)
	if err != nil {
		log.Printf(
			"skipping Bugzilla target %q (%s): credential not found: %v",
			src.Name, src.ID, err,
		)
		return nil
	}

	cfg := bugzilla.Config{
		BaseURI: src.BaseURL,
	}
	if src.Config != nil {
		cfg.Username = src.Config["username"]
		cfg.OnlyIfAssigned = src.Config["only_if_assigned"]
		cfg.AlsoUnassigned = src.Config["also_unassigned"] == "true"
		if src.Config["auth"] == "api_key" {
			cfg.APIKey = secret
		} else {
			cfg.Password = secret
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Printf(
			"skipping Bugzilla target %q (%s): %v",
			src.Name, src.ID, err,
		)
		return nil
	}

	return bugzilla.NewAdapter(cfg, src.ID)
}
