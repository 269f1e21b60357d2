package bugzilla

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bugboard/internal/model"
	"bugboard/internal/source"
)

// fetchFields are the bug fields requested during list/search queries.
var fetchFields = []string{
	"id", "product", "component", "status", "resolution", "summary",
	"severity", "priority", "assigned_to", "creator", "creation_time",
	"last_change_time", "flags", "keywords",
}

// Adapter implements source.Source for Bugzilla.
type Adapter struct {
	client   *Client
	cfg      Config
	sourceID string
}

// NewAdapter creates a new Bugzilla source adapter. The configuration
// must have been validated first.
func NewAdapter(cfg Config, sourceID string) *Adapter {
	return &Adapter{
		client: NewClient(
			cfg.NormalizedBaseURI(),
			cfg.Username, cfg.Password, cfg.APIKey,
		),
		cfg:      cfg,
		sourceID: sourceID,
	}
}

// Type returns the source type identifier for Bugzilla.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeBugzilla
}

// ValidateConnection verifies credentials by calling GET /rest/whoami.
// Returns the user's real name on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	var me WhoAmI
	if err := a.client.Get(ctx, "/rest/whoami", nil, &me); err != nil {
		return "", fmt.Errorf("validating Bugzilla connection: %w", err)
	}
	if me.RealName != "" {
		return me.RealName, nil
	}
	return me.Name, nil
}

// FetchItems retrieves a page of open bugs, filtered by the configured
// assignment policy and normalized into tasks.
func (a *Adapter) FetchItems(
	ctx context.Context,
	opts source.FetchOptions,
) (*source.FetchResult, error) {
	records, err := a.fetchRecords(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching Bugzilla items: %w", err)
	}

	return a.paginate(records, opts), nil
}

// GetItemDetail retrieves a single bug with its comment thread.
func (a *Adapter) GetItemDetail(
	ctx context.Context,
	sourceItemID string,
) (*source.ItemDetail, error) {
	var bugsResp BugsResponse
	path := "/rest/bug/" + sourceItemID
	if err := a.client.Get(ctx, path, nil, &bugsResp); err != nil {
		return nil, fmt.Errorf("fetching bug %s: %w", sourceItemID, err)
	}
	if len(bugsResp.Bugs) == 0 {
		return nil, fmt.Errorf("bug %s not found", sourceItemID)
	}
	record := bugsResp.Bugs[0]

	comments, err := a.fetchComments(ctx, sourceItemID)
	if err != nil {
		return nil, err
	}

	task := a.recordToTask(record)

	// Comment 0 is the bug description; the rest are the discussion.
	body := ""
	thread := comments
	if len(comments) > 0 {
		body = comments[0].Text
		thread = comments[1:]
	}

	metadata := map[string]string{
		"Product":   record.Product,
		"Component": record.Component,
		"Severity":  record.Severity,
	}
	if record.Priority != "" {
		metadata["Priority"] = record.Priority
	}
	if record.Resolution != "" {
		metadata["Resolution"] = record.Resolution
	}
	if len(record.Keywords) > 0 {
		metadata["Keywords"] = strings.Join(record.Keywords, ", ")
	}
	if needInfo := needInfoDate(record, a.cfg.Username); needInfo != "" {
		metadata["NeedInfo since"] = needInfo
	}

	detail := &source.ItemDetail{
		Task:         task,
		RenderedBody: body,
		Metadata:     metadata,
	}
	for _, c := range thread {
		detail.Comments = append(detail.Comments, source.Comment{
			Author:    c.Creator,
			Body:      c.Text,
			CreatedAt: c.CreationTime,
		})
	}

	return detail, nil
}

// GetActions returns the available actions for a bug. Commenting is
// always available.
func (a *Adapter) GetActions(
	_ context.Context,
	_ string,
) ([]source.Action, error) {
	return []source.Action{
		{
			ID:            "comment",
			Name:          "Add Comment",
			RequiresInput: true,
			InputPrompt:   "Enter comment text:",
		},
	}, nil
}

// ExecuteAction performs an action on a bug.
func (a *Adapter) ExecuteAction(
	ctx context.Context,
	sourceItemID string,
	action source.Action,
	input string,
) error {
	if action.ID == "comment" {
		return a.addComment(ctx, sourceItemID, input)
	}
	return fmt.Errorf("unknown action %q for bug %s", action.ID, sourceItemID)
}

// Search finds bugs matching a quicksearch query, subject to the same
// assignment filtering as FetchItems.
func (a *Adapter) Search(
	ctx context.Context,
	query string,
	opts source.FetchOptions,
) (*source.FetchResult, error) {
	params := url.Values{}
	params.Set("quicksearch", query)

	records, err := a.fetchRecords(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("searching Bugzilla bugs: %w", err)
	}

	return a.paginate(records, opts), nil
}

// Issues fetches and filters the configured bugs and wraps each in an
// Issue carrying its synthesized URL and assignment extras. This is
// the export path.
func (a *Adapter) Issues(ctx context.Context) ([]*Issue, error) {
	records, err := a.fetchRecords(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching Bugzilla issues: %w", err)
	}

	issues := make([]*Issue, 0, len(records))
	for _, record := range records {
		extra := Extra{
			URL:         a.cfg.ShowBugURL(record.ID),
			Annotations: []string{},
			NeedInfo:    needInfoDate(record, a.cfg.Username),
		}

		if a.cfg.OnlyIfAssigned != "" &&
			record.AssignedTo == a.cfg.OnlyIfAssigned {
			assignedOn, err := a.assignedDate(ctx, record)
			if err != nil {
				return nil, err
			}
			extra.AssignedOn = assignedOn
		}

		issues = append(issues, NewIssue(record, extra))
	}

	return issues, nil
}

// fetchRecords queries /rest/bug over the configured open statuses and
// applies the assignment filter. Extra query parameters (e.g.
// quicksearch) may be supplied by the caller.
func (a *Adapter) fetchRecords(
	ctx context.Context,
	extra url.Values,
) ([]Bug, error) {
	params := url.Values{}
	for _, status := range a.cfg.openStatuses() {
		params.Add("status", status)
	}
	params.Set("include_fields", strings.Join(fetchFields, ","))
	for key, values := range extra {
		for _, v := range values {
			params.Add(key, v)
		}
	}

	var resp BugsResponse
	if err := a.client.Get(ctx, "/rest/bug", params, &resp); err != nil {
		return nil, err
	}

	filtered := resp.Bugs[:0]
	for _, record := range resp.Bugs {
		if a.includeRecord(record) {
			filtered = append(filtered, record)
		}
	}

	return filtered, nil
}

// includeRecord applies the assignment filtering policy: with
// only_if_assigned set, a record passes when assigned to that user, or
// unassigned when also_unassigned is on. Without it everything passes.
func (a *Adapter) includeRecord(record Bug) bool {
	if a.cfg.OnlyIfAssigned == "" {
		return true
	}
	if record.AssignedTo == a.cfg.OnlyIfAssigned {
		return true
	}
	return a.cfg.AlsoUnassigned && record.AssignedTo == ""
}

// paginate slices filtered records into a FetchResult page.
func (a *Adapter) paginate(
	records []Bug,
	opts source.FetchOptions,
) *source.FetchResult {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	start := (page - 1) * pageSize
	if start > len(records) {
		start = len(records)
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}

	tasks := make([]model.Task, 0, end-start)
	for _, record := range records[start:end] {
		tasks = append(tasks, a.recordToTask(record))
	}

	return &source.FetchResult{
		Items:   tasks,
		Total:   len(records),
		HasMore: end < len(records),
	}
}

// fetchComments retrieves the comment thread for a bug.
func (a *Adapter) fetchComments(
	ctx context.Context,
	sourceItemID string,
) ([]Comment, error) {
	var resp CommentsResponse
	path := "/rest/bug/" + sourceItemID + "/comment"
	if err := a.client.Get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf(
			"fetching comments for bug %s: %w", sourceItemID, err,
		)
	}
	return resp.Bugs[sourceItemID].Comments, nil
}

// addComment posts a new comment to a bug.
func (a *Adapter) addComment(
	ctx context.Context,
	sourceItemID string,
	text string,
) error {
	path := "/rest/bug/" + sourceItemID + "/comment"
	payload := map[string]string{"comment": text}
	return a.client.Post(ctx, path, payload, nil)
}

// assignedDate walks the bug history for the most recent change that
// assigned the bug to the configured user and returns its timestamp.
func (a *Adapter) assignedDate(ctx context.Context, record Bug) (string, error) {
	var resp HistoryResponse
	path := fmt.Sprintf("/rest/bug/%d/history", record.ID)
	if err := a.client.Get(ctx, path, nil, &resp); err != nil {
		return "", fmt.Errorf(
			"fetching history for bug %d: %w", record.ID, err,
		)
	}
	if len(resp.Bugs) == 0 {
		return "", nil
	}

	assignedOn := ""
	for _, change := range resp.Bugs[0].History {
		for _, field := range change.Changes {
			if field.FieldName == "assigned_to" &&
				field.Added == record.AssignedTo {
				assignedOn = change.When
			}
		}
	}
	return assignedOn, nil
}

// recordToTask normalizes a bug record into the unified task model.
func (a *Adapter) recordToTask(record Bug) model.Task {
	rawData, _ := json.Marshal(record)

	return model.Task{
		ID:           "bugzilla-" + strconv.Itoa(record.ID),
		SourceType:   model.SourceTypeBugzilla,
		SourceItemID: strconv.Itoa(record.ID),
		SourceID:     a.sourceID,
		Title:        record.Summary,
		Status:       a.normalizeStatus(record),
		Priority:     normalizePriority(record.Priority),
		Assignee:     record.AssignedTo,
		Author:       record.Creator,
		Project:      record.Component,
		SourceURL:    a.cfg.ShowBugURL(record.ID),
		CreatedAt:    parseBugzillaTime(record.CreationTime),
		UpdatedAt:    parseBugzillaTime(record.LastChange),
		FetchedAt:    time.Now(),
		RawData:      string(rawData),
	}
}

// normalizeStatus maps a bug status to a normalized status constant.
// Bugs with an open needinfo request for the configured user show up
// as "review" regardless of their workflow status.
func (a *Adapter) normalizeStatus(record Bug) string {
	if needInfoDate(record, a.cfg.Username) != "" {
		return model.StatusReview
	}

	switch record.Status {
	case "UNCONFIRMED", "NEW", "CONFIRMED", "REOPENED":
		return model.StatusOpen
	case "ASSIGNED", "IN_PROGRESS":
		return model.StatusInProgress
	case "RESOLVED", "VERIFIED", "CLOSED":
		return model.StatusDone
	default:
		return model.StatusOpen
	}
}

// normalizePriority maps the bug's priority field to a normalized
// priority level. Unknown values fall back to medium, matching the
// export mapping's default.
func normalizePriority(priority string) int {
	switch priority {
	case "blocker", "critical", "immediate", "urgent":
		return model.PriorityCritical
	case "major", "high":
		return model.PriorityHigh
	case "minor", "low":
		return model.PriorityLow
	case "trivial", "enhancement":
		return model.PriorityLowest
	default:
		return model.PriorityMedium
	}
}

// parseBugzillaTime parses a Bugzilla timestamp. The REST API uses
// RFC 3339 (e.g. "2024-05-01T12:30:00Z").
func parseBugzillaTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
