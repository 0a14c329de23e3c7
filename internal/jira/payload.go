package jira

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/treeline-dev/treeline/internal/types"
)

// PayloadBuilder turns one human-level input record into a validated Jira
// creation payload. Build performs validation and field mapping only; it
// never contacts Jira.
type PayloadBuilder struct {
	// Project is the default project key for records that don't set one.
	Project string

	// now anchors natural-language due-date parsing. Zero means time.Now.
	now time.Time

	dateParser *when.Parser
}

// NewPayloadBuilder creates a builder with the given default project key.
func NewPayloadBuilder(project string) *PayloadBuilder {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &PayloadBuilder{Project: project, dateParser: w}
}

// issueTypeNames maps accepted input spellings to Jira issue type names.
var issueTypeNames = map[string]string{
	"bug":      "Bug",
	"task":     "Task",
	"sub-task": "Sub-task",
	"subtask":  "Sub-task",
	"story":    "Story",
	"feature":  "Story",
	"epic":     "Epic",
}

// priorityNames maps accepted input spellings to Jira priority names.
var priorityNames = map[string]string{
	"highest": "Highest",
	"high":    "High",
	"medium":  "Medium",
	"low":     "Low",
	"lowest":  "Lowest",
	"p0":      "Highest",
	"p1":      "High",
	"p2":      "Medium",
	"p3":      "Low",
	"p4":      "Lowest",
}

// handledFields are input fields the builder maps explicitly. Everything
// else passes through verbatim so callers can set raw Jira fields, custom
// fields included.
var handledFields = map[string]bool{
	types.FieldUID:    true,
	types.FieldParent: true,
	"summary":         true,
	"description":     true,
	"project":         true,
	"type":            true,
	"issuetype":       true,
	"priority":        true,
	"labels":          true,
	"assignee":        true,
	"due":             true,
	"duedate":         true,
}

// Build validates the record and produces the creation payload. Failures are
// returned as *types.ValidationError with one entry per offending field and
// are row-local: the engine captures them without blocking sibling rows.
func (b *PayloadBuilder) Build(ctx context.Context, rec types.Record) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}

	fieldErrs := make(map[string]string)
	fields := make(map[string]any)

	summary, _ := rec["summary"].(string)
	summary = strings.TrimSpace(summary)
	if summary == "" {
		fieldErrs["summary"] = "summary is required"
	} else {
		fields["summary"] = summary
	}

	project := b.Project
	if p, ok := rec["project"].(string); ok && strings.TrimSpace(p) != "" {
		project = strings.TrimSpace(p)
	}
	if project == "" {
		fieldErrs["project"] = "no project key set and no default configured"
	} else {
		fields["project"] = map[string]string{"key": project}
	}

	fields["issuetype"] = map[string]string{"name": "Task"}
	if raw, ok := firstString(rec, "type", "issuetype"); ok {
		if name, known := issueTypeNames[strings.ToLower(raw)]; known {
			fields["issuetype"] = map[string]string{"name": name}
		} else {
			fieldErrs["type"] = fmt.Sprintf("unknown issue type %q", raw)
		}
	}

	if raw, ok := rec["priority"].(string); ok && raw != "" {
		if name, known := priorityNames[strings.ToLower(raw)]; known {
			fields["priority"] = map[string]string{"name": name}
		} else {
			fieldErrs["priority"] = fmt.Sprintf("unknown priority %q", raw)
		}
	}

	if desc, ok := rec["description"].(string); ok && desc != "" {
		fields["description"] = PlainTextToADF(desc)
	}

	if raw, present := rec["labels"]; present && raw != nil {
		if labels, ok := labelList(raw); ok {
			fields["labels"] = labels
		} else {
			fieldErrs["labels"] = "labels must be a string or list of strings"
		}
	}

	if assignee, ok := rec["assignee"].(string); ok && assignee != "" {
		fields["assignee"] = map[string]string{"accountId": assignee}
	}

	if raw, ok := firstString(rec, "due", "duedate"); ok {
		due, err := b.parseDue(raw)
		if err != nil {
			fieldErrs["due"] = err.Error()
		} else {
			fields["duedate"] = due
		}
	}

	if parent, ok := rec.Parent(); ok {
		fields["parent"] = map[string]string{"key": parent}
	}

	// Pass-through for raw Jira fields (customfield_*, components, ...).
	for k, v := range rec {
		if !handledFields[k] {
			fields[k] = v
		}
	}

	if len(fieldErrs) > 0 {
		return Payload{}, &types.ValidationError{Fields: fieldErrs}
	}
	return Payload{Fields: fields}, nil
}

// parseDue accepts ISO dates and natural language ("next friday").
func (b *PayloadBuilder) parseDue(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.Format("2006-01-02"), nil
	}
	base := b.now
	if base.IsZero() {
		base = time.Now()
	}
	if r, err := b.dateParser.Parse(raw, base); err == nil && r != nil {
		return r.Time.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("cannot parse due date %q", raw)
}

func firstString(rec types.Record, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := rec[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

// labelList accepts []string, []any of strings, or a comma-separated string.
func labelList(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
