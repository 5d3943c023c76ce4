package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatusSets(t *testing.T) {
	tests := []struct {
		kind    EntityKind
		initial Status
		feature string
		gated   bool
		legal   []Status
		illegal []Status
	}{
		{
			kind:    KindCandidate,
			initial: StatusNewRecruit,
			feature: FeatureCandidates,
			legal:   []Status{StatusConsidering, StatusPotential, StatusConfirmed, StatusDeclined},
			illegal: []Status{StatusRecruiting, StatusCommitted, ""},
		},
		{
			kind:    KindChallenger,
			initial: StatusRecruiting,
			feature: FeatureSecretPrimaries,
			gated:   true,
			legal:   []Status{StatusPotential, StatusConfirmed, StatusDeclined},
			illegal: []Status{StatusNewRecruit, StatusLeaningYes},
		},
		{
			kind:    KindSpeakerVote,
			initial: StatusUnknown,
			feature: FeatureSpeakerVotes,
			legal:   []Status{StatusLeaningYes, StatusLeaningNo, StatusCommitted, StatusOpposed},
			illegal: []Status{StatusConfirmed, "Committed"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.True(t, tt.kind.Valid())
			assert.Equal(t, tt.initial, tt.kind.InitialStatus())
			assert.Equal(t, tt.initial, tt.kind.Statuses()[0])
			assert.Equal(t, tt.feature, tt.kind.FeatureSlug())
			assert.Equal(t, tt.gated, tt.kind.PrivacyGated())
			for _, s := range tt.legal {
				assert.True(t, tt.kind.Allows(s), s)
			}
			for _, s := range tt.illegal {
				assert.False(t, tt.kind.Allows(s), s)
			}
		})
	}
}

func TestUnknownKind(t *testing.T) {
	k := EntityKind("senator")
	assert.False(t, k.Valid())
	assert.Equal(t, Status(""), k.InitialStatus())
	assert.False(t, k.Allows(StatusUnknown))
	assert.Empty(t, k.FeatureSlug())
}

func TestStatusesReturnsCopy(t *testing.T) {
	s := KindCandidate.Statuses()
	s[0] = "tampered"
	assert.Equal(t, StatusNewRecruit, KindCandidate.InitialStatus())
}

func TestTerminalIsDescriptive(t *testing.T) {
	assert.True(t, KindCandidate.Terminal(StatusConfirmed))
	assert.True(t, KindSpeakerVote.Terminal(StatusOpposed))
	assert.False(t, KindChallenger.Terminal(StatusRecruiting))
	// Terminal statuses are still legal transition targets and sources.
	assert.True(t, KindCandidate.Allows(StatusConsidering))
}

func TestKnownFeature(t *testing.T) {
	assert.True(t, KnownFeature(FeatureSecretPrimaries))
	assert.True(t, KnownFeature(FeatureSpeakerVotes))
	assert.False(t, KnownFeature("photos"))
	assert.False(t, KnownFeature(""))
}

func TestContactEnums(t *testing.T) {
	assert.True(t, MethodInPerson.Valid())
	assert.False(t, ContactMethod("fax").Valid())
	assert.True(t, OutcomeNoAnswer.Valid())
	assert.False(t, Outcome("maybe").Valid())
}

func TestActorRoles(t *testing.T) {
	assert.True(t, Actor{ID: "a", Role: RoleAdmin}.IsAdmin())
	assert.False(t, Actor{ID: "s", Role: RoleStaff}.IsAdmin())
	assert.True(t, Actor{ID: "c", Role: RoleCandidate}.IsCandidate())
	assert.True(t, ValidRole(RoleStaff))
	assert.False(t, ValidRole("superuser"))
}
