package bugzilla

// BugsResponse is the response from GET /rest/bug.
type BugsResponse struct {
	Bugs []Bug `json:"bugs"`
}

// Bug represents a single bug record from the REST API.
type Bug struct {
	ID           int      `json:"id"`
	Product      string   `json:"product"`
	Component    string   `json:"component"`
	Status       string   `json:"status"`
	Resolution   string   `json:"resolution,omitempty"`
	Summary      string   `json:"summary"`
	Severity     string   `json:"severity"`
	Priority     string   `json:"priority,omitempty"`
	AssignedTo   string   `json:"assigned_to"`
	Creator      string   `json:"creator,omitempty"`
	CreationTime string   `json:"creation_time,omitempty"`
	LastChange   string   `json:"last_change_time,omitempty"`
	Flags        []Flag   `json:"flags,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Flag represents a flag set on a bug (e.g. needinfo requests).
type Flag struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	Requestee    string `json:"requestee,omitempty"`
	Setter       string `json:"setter,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
}

// CommentsResponse is the response from GET /rest/bug/{id}/comment.
// The comments are keyed by bug ID under "bugs".
type CommentsResponse struct {
	Bugs map[string]CommentList `json:"bugs"`
}

// CommentList holds the comments for a single bug.
type CommentList struct {
	Comments []Comment `json:"comments"`
}

// Comment represents a single comment on a bug.
type Comment struct {
	ID           int    `json:"id"`
	BugID        int    `json:"bug_id"`
	Creator      string `json:"creator"`
	Text         string `json:"text"`
	CreationTime string `json:"creation_time"`
}

// HistoryResponse is the response from GET /rest/bug/{id}/history.
type HistoryResponse struct {
	Bugs []BugHistory `json:"bugs"`
}

// BugHistory holds the change history for a single bug.
type BugHistory struct {
	ID      int             `json:"id"`
	History []HistoryChange `json:"history"`
}

// HistoryChange is one dated set of field changes.
type HistoryChange struct {
	When    string        `json:"when"`
	Who     string        `json:"who"`
	Changes []FieldChange `json:"changes"`
}

// FieldChange records a single field transition within a change set.
type FieldChange struct {
	FieldName string `json:"field_name"`
	Removed   string `json:"removed"`
	Added     string `json:"added"`
}

// WhoAmI is the response from GET /rest/whoami.
type WhoAmI struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
}

// LoginResponse is the response from GET /rest/login.
type LoginResponse struct {
	ID    int    `json:"id"`
	Token string `json:"token"`
}

// ErrorResponse is the standard Bugzilla REST error format.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
