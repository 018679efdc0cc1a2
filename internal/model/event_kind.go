// Package model defines the wire-level types shared by every pipeline stage:
// the closed EventKind enumeration, the stream record shape, and the
// classification envelope.
package model

// EventKind discriminates the webhook events the pipeline understands. It is
// a closed set: any value outside this list must be rejected at ingress, and
// no other stage is ever expected to see an unrecognized kind.
type EventKind string

const (
	EventProjectCreate   EventKind = "project_create"
	EventProjectRename   EventKind = "project_rename"
	EventProjectTransfer EventKind = "project_transfer"
	EventUserCreate      EventKind = "user_create"
	EventUserRename      EventKind = "user_rename"
	EventIssueOpen       EventKind = "issue_open"
	EventIssueUpdate     EventKind = "issue_update"
	EventIssueClose      EventKind = "issue_close"
	EventIssueReopen     EventKind = "issue_reopen"
	EventIssueNoteCreate EventKind = "issue_note_create"
	EventIssueNoteUpdate EventKind = "issue_note_update"
	EventGroupCreate     EventKind = "group_create"
	EventGroupRename     EventKind = "group_rename"
	EventSnippetCheck    EventKind = "snippet_check"
)

// knownKinds backs Valid and ParseEventKind with an O(1) membership test.
var knownKinds = map[EventKind]struct{}{
	EventProjectCreate:   {},
	EventProjectRename:   {},
	EventProjectTransfer: {},
	EventUserCreate:      {},
	EventUserRename:      {},
	EventIssueOpen:       {},
	EventIssueUpdate:     {},
	EventIssueClose:      {},
	EventIssueReopen:     {},
	EventIssueNoteCreate: {},
	EventIssueNoteUpdate: {},
	EventGroupCreate:     {},
	EventGroupRename:     {},
	EventSnippetCheck:    {},
}

// Valid reports whether k is one of the recognized EventKind values.
func (k EventKind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// ParseEventKind validates a raw string against the closed enumeration.
func ParseEventKind(s string) (EventKind, bool) {
	k := EventKind(s)
	if !k.Valid() {
		return "", false
	}
	return k, true
}

// ProjectKinds, UserKinds, IssueKinds, IssueNoteKinds, GroupKinds and
// SnippetKinds group the enumeration the way Verification and Retrieval need
// to branch on it.
var (
	ProjectKinds = map[EventKind]struct{}{
		EventProjectCreate:   {},
		EventProjectRename:   {},
		EventProjectTransfer: {},
	}
	UserKinds = map[EventKind]struct{}{
		EventUserCreate: {},
		EventUserRename: {},
	}
	IssueKinds = map[EventKind]struct{}{
		EventIssueOpen:    {},
		EventIssueUpdate:  {},
		EventIssueClose:   {},
		EventIssueReopen:  {},
	}
	IssueNoteKinds = map[EventKind]struct{}{
		EventIssueNoteCreate: {},
		EventIssueNoteUpdate: {},
	}
	GroupKinds = map[EventKind]struct{}{
		EventGroupCreate: {},
		EventGroupRename: {},
	}
	SnippetKinds = map[EventKind]struct{}{
		EventSnippetCheck: {},
	}
)

// IsIssueOrNote reports whether k is one of the issue or issue-note kinds,
// which Verification treats identically when extracting an email.
func IsIssueOrNote(k EventKind) bool {
	if _, ok := IssueKinds[k]; ok {
		return true
	}
	_, ok := IssueNoteKinds[k]
	return ok
}
