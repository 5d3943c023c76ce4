package models

import "slices"

// EntityKind tags a tracked entity; each kind has its own closed status set.
type EntityKind string

const (
	KindCandidate   EntityKind = "candidate"
	KindChallenger  EntityKind = "challenger"
	KindSpeakerVote EntityKind = "speaker_vote"
)

// Status is a lifecycle status value. Legality depends on the entity kind.
type Status string

const (
	StatusNewRecruit  Status = "new_recruit"
	StatusRecruiting  Status = "recruiting"
	StatusConsidering Status = "considering"
	StatusPotential   Status = "potential"
	StatusConfirmed   Status = "confirmed"
	StatusDeclined    Status = "declined"

	StatusUnknown    Status = "unknown"
	StatusLeaningYes Status = "leaning_yes"
	StatusLeaningNo  Status = "leaning_no"
	StatusCommitted  Status = "committed"
	StatusOpposed    Status = "opposed"
)

// Feature slugs gate access to each kind.
const (
	FeatureCandidates      = "candidates"
	FeatureSecretPrimaries = "secret_primaries"
	FeatureSpeakerVotes    = "speaker_votes"
)

type kindSpec struct {
	feature  string
	gated    bool
	statuses []Status // first entry is the initial status
	terminal []Status
	// confidence marks kinds that carry a 1..10 confidence level.
	confidence bool
}

var kinds = map[EntityKind]kindSpec{
	KindCandidate: {
		feature:  FeatureCandidates,
		statuses: []Status{StatusNewRecruit, StatusConsidering, StatusPotential, StatusConfirmed, StatusDeclined},
		terminal: []Status{StatusConfirmed, StatusDeclined},
	},
	KindChallenger: {
		feature:  FeatureSecretPrimaries,
		gated:    true,
		statuses: []Status{StatusRecruiting, StatusPotential, StatusConsidering, StatusConfirmed, StatusDeclined},
		terminal: []Status{StatusConfirmed, StatusDeclined},
	},
	KindSpeakerVote: {
		feature:    FeatureSpeakerVotes,
		statuses:   []Status{StatusUnknown, StatusLeaningYes, StatusLeaningNo, StatusCommitted, StatusOpposed},
		terminal:   []Status{StatusCommitted, StatusOpposed},
		confidence: true,
	},
}

// Kinds returns every entity kind in a stable order.
func Kinds() []EntityKind {
	return []EntityKind{KindCandidate, KindChallenger, KindSpeakerVote}
}

// Valid reports whether k is a known kind.
func (k EntityKind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Statuses returns the legal statuses for k, initial status first.
func (k EntityKind) Statuses() []Status {
	return slices.Clone(kinds[k].statuses)
}

// InitialStatus is the status a new entity of kind k starts in.
func (k EntityKind) InitialStatus() Status {
	def, ok := kinds[k]
	if !ok {
		return ""
	}
	return def.statuses[0]
}

// Allows reports whether s is a legal status for k.
func (k EntityKind) Allows(s Status) bool {
	return slices.Contains(kinds[k].statuses, s)
}

// Terminal reports whether s ends the forward path for k. Transitions out of a
// terminal status are still legal.
func (k EntityKind) Terminal(s Status) bool {
	return slices.Contains(kinds[k].terminal, s)
}

// FeatureSlug is the grant slug that gates k.
func (k EntityKind) FeatureSlug() string {
	return kinds[k].feature
}

// PrivacyGated reports whether entities of kind k start private.
func (k EntityKind) PrivacyGated() bool {
	return kinds[k].gated
}

// TracksConfidence reports whether entities of kind k carry a confidence level.
func (k EntityKind) TracksConfidence() bool {
	return kinds[k].confidence
}

// Confidence bounds for speaker votes.
const (
	MinConfidence     = 1
	MaxConfidence     = 10
	DefaultConfidence = 5
)

// ValidConfidence reports whether level is inside the confidence scale.
func ValidConfidence(level int) bool {
	return level >= MinConfidence && level <= MaxConfidence
}

// Features returns every known feature slug.
func Features() []string {
	return []string{FeatureCandidates, FeatureSecretPrimaries, FeatureSpeakerVotes}
}

// KnownFeature reports whether slug names a gated feature.
func KnownFeature(slug string) bool {
	return slices.Contains(Features(), slug)
}
