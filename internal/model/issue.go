package model

import "fmt"

type IssueKind string

const (
	MissingRequiredField IssueKind = "MissingRequiredField"
	InvalidFieldShape    IssueKind = "InvalidFieldShape"
	DanglingReference    IssueKind = "DanglingReference"
	LegacyShapeDetected  IssueKind = "LegacyShapeDetected"
	DuplicateOrder       IssueKind = "DuplicateOrder"
	DuplicateGrant       IssueKind = "DuplicateGrant"
	DuplicateEntry       IssueKind = "DuplicateEntry"
	UsernameConflict     IssueKind = "UsernameConflict"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding about one record. Issues are data, never panics.
type Issue struct {
	Kind       IssueKind `json:"kind"`
	Severity   Severity  `json:"severity"`
	Collection string    `json:"collection"`
	RecordID   string    `json:"recordId"`
	Field      string    `json:"field,omitempty"`
	Message    string    `json:"message,omitempty"`
}

func (i Issue) String() string {
	s := fmt.Sprintf("%s %s/%s", i.Kind, i.Collection, i.RecordID)
	if i.Field != "" {
		s += " field=" + i.Field
	}
	if i.Message != "" {
		s += ": " + i.Message
	}
	return s
}

func NewError(kind IssueKind, collection, id, field, msg string) Issue {
	return Issue{Kind: kind, Severity: SeverityError, Collection: collection, RecordID: id, Field: field, Message: msg}
}

func NewWarning(kind IssueKind, collection, id, field, msg string) Issue {
	return Issue{Kind: kind, Severity: SeverityWarning, Collection: collection, RecordID: id, Field: field, Message: msg}
}

// CountBySeverity splits issues into error and warning counts.
func CountBySeverity(issues []Issue) (errs, warnings int) {
	for _, i := range issues {
		if i.Severity == SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}
