package bugzilla

import "fmt"

// Taskwarrior UDA field names for bugzilla records.
const (
	UDABugID      = "bugzillabugid"
	UDAStatus     = "bugzillastatus"
	UDASummary    = "bugzillasummary"
	UDAURL        = "bugzillaurl"
	UDAProduct    = "bugzillaproduct"
	UDAComponent  = "bugzillacomponent"
	UDAAssignedOn = "bugzillaassignedon"
	UDANeedInfo   = "bugzillaneedinfo"
)

// defaultPriority is used for priority values absent from PriorityMap.
const defaultPriority = "M"

// PriorityMap translates bug priority values to taskwarrior priority codes.
var PriorityMap = map[string]string{
	"unspecified": "M",
	"enhancement": "L",
	"trivial":     "L",
	"minor":       "L",
	"low":         "L",
	"normal":      "M",
	"major":       "H",
	"high":        "H",
	"critical":    "H",
	"blocker":     "H",
	"immediate":   "H",
	"urgent":      "H",
}

// Extra carries per-issue data computed outside the raw bug record:
// the synthesized URL, comment annotations, and assignment metadata.
type Extra struct {
	// URL is the canonical bug page link.
	URL string

	// Annotations are comment texts attached to the exported record.
	Annotations []string

	// AssignedOn is the timestamp of the most recent assignment to the
	// configured user. Only set when assignment filtering matched.
	AssignedOn string

	// NeedInfo is the creation date of an open needinfo request
	// directed at the configured user, if any.
	NeedInfo string
}

// Issue pairs a bug record with its extras and converts the two into
// taskwarrior records.
type Issue struct {
	Record Bug
	Extra  Extra
}

// NewIssue creates an Issue for a bug record.
func NewIssue(record Bug, extra Extra) *Issue {
	return &Issue{Record: record, Extra: extra}
}

// Priority translates the bug's priority field through PriorityMap,
// falling back to the default for unknown values.
func (i *Issue) Priority() string {
	if p, ok := PriorityMap[i.Record.Priority]; ok {
		return p
	}
	return defaultPriority
}

// ToTaskwarrior maps the bug record onto the fixed taskwarrior field
// set: the component becomes the project, the priority is translated
// to a priority code, and the bugzilla UDAs carry the raw fields.
func (i *Issue) ToTaskwarrior() map[string]interface{} {
	return map[string]interface{}{
		"project":     i.Record.Component,
		"priority":    i.Priority(),
		"annotations": i.Extra.Annotations,

		UDAStatus:    i.Record.Status,
		UDAURL:       i.Extra.URL,
		UDASummary:   i.Record.Summary,
		UDABugID:     i.Record.ID,
		UDAProduct:   i.Record.Product,
		UDAComponent: i.Record.Component,
	}
}

// TaskwarriorRecord builds the full import record: the field mapping
// plus the synthesized description, tags, and assignment extras.
func (i *Issue) TaskwarriorRecord() map[string]interface{} {
	record := i.ToTaskwarrior()
	if record["annotations"] == nil {
		record["annotations"] = []string{}
	}

	record["description"] = defaultDescription(
		i.Record.ID, i.Record.Summary, i.Extra.URL,
	)
	record["tags"] = []string{}

	if i.Extra.AssignedOn != "" {
		record[UDAAssignedOn] = i.Extra.AssignedOn
	}
	if i.Extra.NeedInfo != "" {
		record[UDANeedInfo] = i.Extra.NeedInfo
	}

	return record
}

// defaultDescription synthesizes the one-line task description from
// the bug ID, summary, and URL.
func defaultDescription(id int, summary, url string) string {
	return fmt.Sprintf("(bw)Is#%d - %s .. %s", id, summary, url)
}

// needInfoDate returns the creation date of an open needinfo request
// directed at username, or "" when there is none.
func needInfoDate(record Bug, username string) string {
	for _, flag := range record.Flags {
		if flag.Name != "needinfo" || flag.Status != "?" {
			continue
		}
		if flag.Requestee != "" && flag.Requestee != username {
			continue
		}
		return flag.CreationDate
	}
	return ""
}
