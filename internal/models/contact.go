package models

import (
	"slices"
	"time"
)

type ContactMethod string

const (
	MethodPhone    ContactMethod = "phone"
	MethodInPerson ContactMethod = "in_person"
	MethodText     ContactMethod = "text"
	MethodEmail    ContactMethod = "email"
)

func (m ContactMethod) Valid() bool {
	return slices.Contains([]ContactMethod{MethodPhone, MethodInPerson, MethodText, MethodEmail}, m)
}

type Outcome string

const (
	OutcomePositive Outcome = "positive"
	OutcomeNeutral  Outcome = "neutral"
	OutcomeNegative Outcome = "negative"
	OutcomeNoAnswer Outcome = "no_answer"
)

func (o Outcome) Valid() bool {
	return slices.Contains([]Outcome{OutcomePositive, OutcomeNeutral, OutcomeNegative, OutcomeNoAnswer}, o)
}

// ContactRecord is one append-only outreach attempt. StatusBefore and
// StatusAfter are both set when the contact caused or reaffirmed a status.
type ContactRecord struct {
	Seq          int64         `json:"seq"`
	TargetID     string        `json:"target_id"`
	ContactedBy  string        `json:"contacted_by"`
	Method       ContactMethod `json:"method"`
	Outcome      Outcome       `json:"outcome"`
	Notes        string        `json:"notes,omitempty"`
	StatusBefore *Status       `json:"status_before,omitempty"`
	StatusAfter  *Status       `json:"status_after,omitempty"`
	ContactedAt  time.Time     `json:"contacted_at"`
}

// ContactInput is what a caller supplies to the contact log.
type ContactInput struct {
	TargetID     string        `json:"target_id"`
	ContactedBy  string        `json:"contacted_by"`
	Method       ContactMethod `json:"method"`
	Outcome      Outcome       `json:"outcome"`
	Notes        string        `json:"notes,omitempty"`
	StatusBefore *Status       `json:"status_before,omitempty"`
	StatusAfter  *Status       `json:"status_after,omitempty"`
}

// ContactFilter narrows a contact listing by target and/or actor.
type ContactFilter struct {
	TargetID    string
	ContactedBy string
	After       int64
	Limit       int
}
