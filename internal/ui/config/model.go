package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"bugboard/internal/credential"
	"bugboard/internal/keys"
	"bugboard/internal/model"
	"bugboard/internal/source/bugzilla"
	"bugboard/internal/store"
	"bugboard/internal/theme"
)

// ConfigMode represents the current state of the configuration view.
type ConfigMode int

const (
	ModeList           ConfigMode = iota // List configured Bugzilla targets
	ModeForm                             // Add/edit form
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show validation result
	ModeConfirmDelete                    // Confirm target deletion
)

// ConfigDoneMsg signals the config view should close and return to the main app.
type ConfigDoneMsg struct{}

// SourceSavedMsg signals a target was saved successfully.
type SourceSavedMsg struct {
	Source model.SourceConfig
}

// SourceDeletedMsg signals a target was deleted.
type SourceDeletedMsg struct {
	ID string
}

// ValidateResultMsg carries the result of a connection validation attempt.
type ValidateResultMsg struct {
	Name string
	Err  error
}

// sourcesLoadedMsg is sent when targets have been loaded from the store.
type sourcesLoadedMsg struct {
	sources []model.SourceConfig
	err     error
}

// sourceSavedInternalMsg is sent after a target is persisted.
type sourceSavedInternalMsg struct {
	source model.SourceConfig
	err    error
}

// sourceDeletedInternalMsg is sent after a target is removed.
type sourceDeletedInternalMsg struct {
	id  string
	err error
}

// authMethodPassword and authMethodAPIKey are the selectable ways of
// authenticating against a Bugzilla instance.
const (
	authMethodPassword = "password"
	authMethodAPIKey   = "api_key"
)

// Model is the Bubble Tea model for the Bugzilla target configuration UI.
type Model struct {
	mode          ConfigMode
	store         store.Store
	sources       []model.SourceConfig
	selectedIdx   int
	editingSource *model.SourceConfig

	form *huh.Form

	// Form field values (huh binds to these)
	formName           string
	formBaseURI        string
	formUsername       string
	formAuthMethod     string
	formSecret         string
	formOnlyIfAssigned string
	formAlsoUnassigned bool

	// Validation
	validating  bool
	validResult string
	validError  error
	spinner     spinner.Model

	// Delete confirmation
	confirmDelete *huh.Form
	deleteConfirm bool

	// Status message for transient feedback
	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a new configuration view model.
func New(s store.Store, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeList,
		store:   s,
		keys:    k,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init loads targets from the store on first render.
func (m Model) Init() tea.Cmd {
	return m.loadSources()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case sourcesLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error loading targets: %v", msg.err)
			return m, nil
		}
		m.sources = msg.sources
		return m, nil

	case sourceSavedInternalMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving target: %v", msg.err)
			m.mode = ModeList
			return m, nil
		}
		m.statusMsg = fmt.Sprintf("Target %q saved", msg.source.Name)
		m.mode = ModeList
		return m, tea.Batch(
			m.loadSources(),
			func() tea.Msg { return SourceSavedMsg{Source: msg.source} },
		)

	case sourceDeletedInternalMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error deleting target: %v", msg.err)
			m.mode = ModeList
			return m, nil
		}
		m.statusMsg = "Target deleted"
		m.mode = ModeList
		if m.selectedIdx >= len(m.sources)-1 && m.selectedIdx > 0 {
			m.selectedIdx--
		}
		return m, tea.Batch(
			m.loadSources(),
			func() tea.Msg { return SourceDeletedMsg{ID: msg.id} },
		)

	case ValidateResultMsg:
		m.validating = false
		m.validResult = msg.Name
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	// Delegate to active form
	return m.updateActiveForm(msg)
}

// handleKeyMsg processes key messages based on the current mode.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeList:
		return m.handleListKeys(msg)
	case ModeForm:
		return m.updateForm(msg)
	case ModeValidateResult:
		return m.handleValidateResultKeys(msg)
	case ModeConfirmDelete:
		return m.updateConfirmDelete(msg)
	case ModeValidating:
		// Only allow escape during validation
		if msg.String() == "esc" {
			m.mode = ModeList
			m.validating = false
			return m, nil
		}
		return m, nil
	}
	return m, nil
}

// handleListKeys processes key events in the target list mode.
func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return ConfigDoneMsg{} }

	case msg.String() == "a":
		m.editingSource = nil
		m.resetFormFields()
		m.mode = ModeForm
		m.form = m.buildForm()
		return m, m.form.Init()

	case msg.String() == "e":
		if len(m.sources) == 0 {
			return m, nil
		}
		src := m.sources[m.selectedIdx]
		m.editingSource = &src
		return m.startEditForm(src)

	case msg.String() == "d":
		if len(m.sources) == 0 {
			return m, nil
		}
		m.deleteConfirm = false
		m.confirmDelete = m.buildDeleteConfirmForm()
		m.mode = ModeConfirmDelete
		return m, m.confirmDelete.Init()

	case msg.String() == "enter":
		if len(m.sources) == 0 {
			return m, nil
		}
		src := m.sources[m.selectedIdx]
		m.mode = ModeValidating
		m.validating = true
		return m, tea.Batch(
			m.spinner.Tick,
			m.validateSource(src),
		)

	case key.Matches(msg, m.keys.Down):
		if len(m.sources) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.sources)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.sources) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.sources) - 1
			}
		}
		return m, nil
	}

	return m, nil
}

// handleValidateResultKeys processes key events on the validation result screen.
func (m Model) handleValidateResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.mode = ModeList
		m.validResult = ""
		m.validError = nil
		return m, nil
	case "r":
		if m.validError != nil && len(m.sources) > 0 {
			src := m.sources[m.selectedIdx]
			m.mode = ModeValidating
			m.validating = true
			return m, tea.Batch(
				m.spinner.Tick,
				m.validateSource(src),
			)
		}
		return m, nil
	}
	return m, nil
}

// updateActiveForm dispatches non-key messages to the currently active form.
func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeForm:
		return m.updateForm(msg)
	case ModeConfirmDelete:
		return m.updateConfirmDelete(msg)
	}
	return m, nil
}

// --- Target Form ---

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("A label for this Bugzilla instance").
				Placeholder("My Bugzilla").
				Value(&m.formName).
				Validate(validateRequired("Name")),
			huh.NewInput().
				Title("Base URI").
				Description("Bugzilla root URL (scheme optional, defaults to https)").
				Placeholder("https://bugzilla.example.com").
				Value(&m.formBaseURI).
				Validate(bugzilla.ValidateBaseURI),
			huh.NewInput().
				Title("Username").
				Description("Your Bugzilla login").
				Placeholder("user@example.com").
				Value(&m.formUsername).
				Validate(validateRequired("Username")),
			huh.NewSelect[string]().
				Title("Authentication").
				Description("How to authenticate against the instance").
				Options(
					huh.NewOption("Password", authMethodPassword),
					huh.NewOption("API key", authMethodAPIKey),
				).
				Value(&m.formAuthMethod),
			huh.NewInput().
				Title("Secret").
				Description(m.secretDescription()).
				EchoMode(huh.EchoModePassword).
				Value(&m.formSecret).
				Validate(m.secretValidator()),
			huh.NewInput().
				Title("Only if assigned").
				Description("Optional: only show bugs assigned to this user").
				Placeholder("user@example.com").
				Value(&m.formOnlyIfAssigned),
			huh.NewConfirm().
				Title("Also unassigned").
				Description("Additionally show unassigned bugs (with the filter above)").
				Affirmative("Yes").
				Negative("No").
				Value(&m.formAlsoUnassigned),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m.saveTarget()
	}
	if m.form.State == huh.StateAborted {
		m.mode = ModeList
		return m, nil
	}

	return m, cmd
}

func (m Model) saveTarget() (Model, tea.Cmd) {
	src := m.buildSourceConfig()

	// Store the secret in the keyring. An empty secret on edit keeps
	// the stored credential.
	credKey := "bugzilla-" + src.ID
	if m.formSecret != "" {
		if err := credential.Set(credKey, m.formSecret); err != nil {
			m.statusMsg = fmt.Sprintf("Error saving credential: %v", err)
			m.mode = ModeList
			return m, nil
		}
	}

	src.Config["secret_ref"] = "keyring:" + credKey

	m.mode = ModeValidating
	m.validating = true
	return m, tea.Batch(
		m.spinner.Tick,
		m.validateAndSave(src),
	)
}

// --- Delete Confirmation ---

func (m *Model) buildDeleteConfirmForm() *huh.Form {
	sourceName := ""
	if m.selectedIdx < len(m.sources) {
		sourceName = m.sources[m.selectedIdx].Name
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete target %q?", sourceName)).
				Description(
					"This will remove the target configuration and " +
						"clear cached bugs.",
				).
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.deleteConfirm),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateConfirmDelete(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmDelete == nil {
		return m, nil
	}

	mdl, cmd := m.confirmDelete.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmDelete = f
	}

	if m.confirmDelete.State == huh.StateCompleted {
		if m.deleteConfirm {
			src := m.sources[m.selectedIdx]
			return m, m.deleteSource(src)
		}
		m.mode = ModeList
		return m, nil
	}
	if m.confirmDelete.State == huh.StateAborted {
		m.mode = ModeList
		return m, nil
	}

	return m, cmd
}

// --- View ---

// View renders the configuration UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeForm:
		return m.viewForm(m.form)
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	case ModeConfirmDelete:
		return m.viewForm(m.confirmDelete)
	default:
		return ""
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	b.WriteString(titleStyle.Render("Bugzilla Targets"))
	b.WriteString("\n\n")

	if len(m.sources) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true)
		b.WriteString(emptyStyle.Render(
			"No targets configured.\nPress 'a' to add a Bugzilla instance.",
		))
	} else {
		for i, src := range m.sources {
			b.WriteString(m.renderSourceItem(i, src))
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		b.WriteString(statusStyle.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	hintStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	b.WriteString(hintStyle.Render(
		"a add | e edit | d delete | enter test | esc back",
	))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

func (m Model) renderSourceItem(idx int, src model.SourceConfig) string {
	enabledLabel := "enabled"
	enabledColor := theme.ColorGreen
	if !src.Enabled {
		enabledLabel = "disabled"
		enabledColor = theme.ColorGray
	}

	name := src.Name
	if name == "" {
		name = "(unnamed)"
	}

	statusLabel := lipgloss.NewStyle().
		Foreground(enabledColor).
		Render(enabledLabel)

	line := fmt.Sprintf("[B]  %s  %s  %s",
		name, src.BaseURL, statusLabel,
	)

	if idx == m.selectedIdx {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}

	content := f.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing connection...\n\nPress esc to cancel.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | enter/esc back")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		displayName := m.validResult
		if displayName == "" {
			displayName = "OK"
		}
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("Authenticated as: %s", displayName) + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter/esc back")
	}

	return style.Render(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// EditingForm reports whether a form currently has keyboard focus.
func (m Model) EditingForm() bool {
	return m.mode == ModeForm || m.mode == ModeConfirmDelete
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m *Model) resetFormFields() {
	m.formName = ""
	m.formBaseURI = ""
	m.formUsername = ""
	m.formAuthMethod = authMethodPassword
	m.formSecret = ""
	m.formOnlyIfAssigned = ""
	m.formAlsoUnassigned = false
}

func (m Model) startEditForm(src model.SourceConfig) (Model, tea.Cmd) {
	m.formName = src.Name
	m.formBaseURI = src.BaseURL
	m.formSecret = "" // Never pre-fill credentials
	m.formAuthMethod = authMethodPassword
	m.formOnlyIfAssigned = ""
	m.formAlsoUnassigned = false

	if src.Config != nil {
		m.formUsername = src.Config["username"]
		if src.Config["auth"] == authMethodAPIKey {
			m.formAuthMethod = authMethodAPIKey
		}
		m.formOnlyIfAssigned = src.Config["only_if_assigned"]
		m.formAlsoUnassigned = src.Config["also_unassigned"] == "true"
	}

	m.mode = ModeForm
	m.form = m.buildForm()
	return m, m.form.Init()
}

func (m Model) buildSourceConfig() model.SourceConfig {
	src := model.SourceConfig{
		Type:            "bugzilla",
		Name:            m.formName,
		BaseURL:         m.formBaseURI,
		Enabled:         true,
		PollIntervalSec: 300,
		Config: map[string]string{
			"username":         m.formUsername,
			"auth":             m.formAuthMethod,
			"only_if_assigned": m.formOnlyIfAssigned,
			"also_unassigned":  fmt.Sprintf("%t", m.formAlsoUnassigned),
		},
	}

	if m.editingSource != nil {
		src.ID = m.editingSource.ID
	} else {
		src.ID = uuid.New().String()
	}

	return src
}

// loadSources returns a command that loads all targets from the store.
func (m Model) loadSources() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx := context.Background()
		sources, err := s.GetSources(ctx)
		return sourcesLoadedMsg{sources: sources, err: err}
	}
}

// deleteSource returns a command that removes a target and its credential.
func (m Model) deleteSource(src model.SourceConfig) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx := context.Background()

		// Remove credential from keyring
		credKey := "bugzilla-" + src.ID
		_ = credential.Delete(credKey) // Best-effort deletion

		if err := s.DeleteTasksBySource(ctx, src.ID); err != nil {
			return sourceDeletedInternalMsg{id: src.ID, err: err}
		}

		err := s.DeleteSource(ctx, src.ID)
		return sourceDeletedInternalMsg{id: src.ID, err: err}
	}
}

// validateSource tests the connection for an existing target.
func (m Model) validateSource(src model.SourceConfig) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		adapter, err := createAdapter(src)
		if err != nil {
			return ValidateResultMsg{Err: err}
		}

		name, err := adapter.ValidateConnection(ctx)
		return ValidateResultMsg{Name: name, Err: err}
	}
}

// validateAndSave validates the connection then saves the target if successful.
func (m Model) validateAndSave(src model.SourceConfig) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx := context.Background()

		adapter, err := createAdapter(src)
		if err != nil {
			return ValidateResultMsg{Err: err}
		}

		name, err := adapter.ValidateConnection(ctx)
		if err != nil {
			return ValidateResultMsg{Name: name, Err: err}
		}

		// Validation passed; persist the target
		if saveErr := s.UpsertSource(ctx, src); saveErr != nil {
			return ValidateResultMsg{
				Name: name,
				Err:  fmt.Errorf("connection OK but save failed: %w", saveErr),
			}
		}

		return sourceSavedInternalMsg{source: src, err: nil}
	}
}

// createAdapter builds a Bugzilla adapter from a stored target,
// resolving the secret from the keyring.
func createAdapter(src model.SourceConfig) (*bugzilla.Adapter, error) {
	secret, err := credential.Get("bugzilla-" + src.ID)
	if err != nil {
		return nil, fmt.Errorf("credential not found: %w", err)
	}

	cfg := bugzilla.Config{
		BaseURI:        src.BaseURL,
		OnlyIfAssigned: src.Config["only_if_assigned"],
		AlsoUnassigned: src.Config["also_unassigned"] == "true",
	}
	cfg.Username = src.Config["username"]
	if src.Config["auth"] == authMethodAPIKey {
		cfg.APIKey = secret
	} else {
		cfg.Password = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target configuration: %w", err)
	}

	return bugzilla.NewAdapter(cfg, src.ID), nil
}

// --- Validators ---

// secretDescription explains the secret field; on edit an empty value
// keeps the stored credential.
func (m *Model) secretDescription() string {
	if m.editingSource != nil {
		return "Leave blank to keep the stored secret"
	}
	return "The password or API key, per the selection above"
}

// secretValidator requires a secret for new targets only.
func (m *Model) secretValidator() func(string) error {
	if m.editingSource != nil {
		return func(string) error { return nil }
	}
	return validateRequired("Secret")
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
