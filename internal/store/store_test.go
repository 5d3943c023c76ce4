package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
	"recruitment-tracker-go/internal/store/storetest"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func insertEntity(t *testing.T, s store.Store, e models.Entity) models.Entity {
	t.Helper()
	if e.Kind == "" {
		e.Kind = models.KindChallenger
	}
	if e.Status == "" {
		e.Status = e.Kind.InitialStatus()
	}
	if e.Priority == 0 {
		e.Priority = 5
	}
	e.Version = 1
	e.CreatedBy = "admin"
	e.CreatedAt = t0
	e.UpdatedAt = t0
	require.NoError(t, s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertEntity(context.Background(), e)
	}))
	return e
}

func seedCampaign(t *testing.T, s store.Store) (models.Campaign, models.CallList) {
	t.Helper()
	ctx := context.Background()
	c := models.Campaign{ID: "camp-1", Name: "2026 primaries", FeatureSlug: models.FeatureSecretPrimaries, CreatedBy: "admin", CreatedAt: t0}
	l := models.CallList{ID: "list-1", CampaignID: c.ID, Name: "North", AssignedTo: "caller-a", CreatedBy: "admin", CreatedAt: t0}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertCampaign(ctx, c); err != nil {
			return err
		}
		return tx.InsertCallList(ctx, l)
	}))
	return c, l
}

func TestEntityRoundTrip(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	want := insertEntity(t, s, models.Entity{ID: "target-42", Name: "Pat Doe", DistrictCode: "HD-12"})

	got, err := s.GetEntity(ctx, "target-42")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = s.GetEntity(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDuplicateEntityIsConflict(t *testing.T) {
	s := storetest.New(t)
	insertEntity(t, s, models.Entity{ID: "e1", Name: "One"})

	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertEntity(context.Background(), models.Entity{
			ID: "e1", Kind: models.KindCandidate, Name: "Dup", Status: models.StatusNewRecruit,
			Priority: 5, Version: 1, CreatedBy: "admin", CreatedAt: t0, UpdatedAt: t0,
		})
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUpdateEntityStatusVersionGuard(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	insertEntity(t, s, models.Entity{ID: "e1", Name: "One"})

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		v, err := tx.UpdateEntityStatus(ctx, "e1", models.StatusPotential, 1, t0.Add(time.Minute))
		assert.Equal(t, int64(2), v)
		return err
	}))

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.UpdateEntityStatus(ctx, "e1", models.StatusDeclined, 1, t0.Add(2*time.Minute))
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := s.GetEntity(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPotential, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestTransactionRollsBack(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	insertEntity(t, s, models.Entity{ID: "e1", Name: "One"})

	boom := apperr.New(apperr.CodeInternal, "injected")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.UpdateEntityStatus(ctx, "e1", models.StatusConfirmed, 1, t0); err != nil {
			return err
		}
		if _, err := tx.InsertTransition(ctx, models.StatusTransition{
			EntityID: "e1", From: models.StatusRecruiting, To: models.StatusConfirmed, Actor: "a", OccurredAt: t0,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.Same(t, boom, err)

	got, err := s.GetEntity(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRecruiting, got.Status)

	history, err := s.ListTransitions(ctx, "e1", models.Page{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTransitionsOrderAndCursor(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	insertEntity(t, s, models.Entity{ID: "e1", Name: "One"})

	steps := []models.Status{models.StatusPotential, models.StatusConsidering, models.StatusConfirmed}
	from := models.StatusRecruiting
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for _, to := range steps {
			// Same timestamp on purpose: seq must break the tie.
			if _, err := tx.InsertTransition(ctx, models.StatusTransition{
				EntityID: "e1", From: from, To: to, Actor: "staff_a", OccurredAt: t0,
			}); err != nil {
				return err
			}
			from = to
		}
		return nil
	}))

	all, err := s.ListTransitions(ctx, "e1", models.Page{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, to := range steps {
		assert.Equal(t, to, all[i].To)
	}
	assert.NoError(t, models.VerifyChain(models.StatusConfirmed, all))

	first, err := s.ListTransitions(ctx, "e1", models.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := s.ListTransitions(ctx, "e1", models.Page{After: first[1].Seq})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, models.StatusConfirmed, rest[0].To)
}

func TestHistoryIsAppendOnly(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	insertEntity(t, s, models.Entity{ID: "e1", Name: "One"})

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.InsertTransition(ctx, models.StatusTransition{
			EntityID: "e1", From: models.StatusRecruiting, To: models.StatusPotential, Actor: "a", OccurredAt: t0,
		})
		return err
	}))

	_, err := s.DB().ExecContext(ctx, `UPDATE status_transitions SET to_status = 'declined'`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = s.DB().ExecContext(ctx, `UPDATE contacts SET notes = 'edited'`)
	// No rows, so the trigger never fires.
	assert.NoError(t, err)
}

func TestContactsFilterAndOrder(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	insertEntity(t, s, models.Entity{ID: "e1", Name: "One"})
	insertEntity(t, s, models.Entity{ID: "e2", Name: "Two"})

	before, after := models.StatusRecruiting, models.StatusConfirmed
	records := []models.ContactRecord{
		{TargetID: "e1", ContactedBy: "a", Method: models.MethodPhone, Outcome: models.OutcomePositive, ContactedAt: t0.Add(2 * time.Minute), StatusBefore: &before, StatusAfter: &after},
		{TargetID: "e1", ContactedBy: "b", Method: models.MethodEmail, Outcome: models.OutcomeNoAnswer, ContactedAt: t0.Add(time.Minute)},
		{TargetID: "e2", ContactedBy: "a", Method: models.MethodText, Outcome: models.OutcomeNeutral, ContactedAt: t0},
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for _, r := range records {
			if _, err := tx.InsertContact(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}))

	byTarget, err := s.ListContacts(ctx, models.ContactFilter{TargetID: "e1"})
	require.NoError(t, err)
	require.Len(t, byTarget, 2)
	assert.Equal(t, "a", byTarget[0].ContactedBy)
	require.NotNil(t, byTarget[0].StatusAfter)
	assert.Equal(t, models.StatusConfirmed, *byTarget[0].StatusAfter)
	assert.Nil(t, byTarget[1].StatusBefore)

	byActor, err := s.ListContacts(ctx, models.ContactFilter{ContactedBy: "a"})
	require.NoError(t, err)
	require.Len(t, byActor, 2)
	assert.Equal(t, "e1", byActor[0].TargetID)
	assert.Equal(t, "e2", byActor[1].TargetID)
}

func TestContactCursorAcrossTargets(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	insertEntity(t, s, models.Entity{ID: "c1", Name: "One"})
	insertEntity(t, s, models.Entity{ID: "c2", Name: "Two"})

	// c1 was touched later, so its contact commits first with the later time.
	records := []models.ContactRecord{
		{TargetID: "c1", ContactedBy: "a", Method: models.MethodPhone, Outcome: models.OutcomePositive, ContactedAt: t0.Add(10 * time.Second)},
		{TargetID: "c2", ContactedBy: "a", Method: models.MethodPhone, Outcome: models.OutcomeNeutral, ContactedAt: t0.Add(5 * time.Second)},
		{TargetID: "c2", ContactedBy: "a", Method: models.MethodEmail, Outcome: models.OutcomeNoAnswer, ContactedAt: t0.Add(6 * time.Second)},
	}
	var want []int64
	for _, r := range records {
		require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
			rec, err := tx.InsertContact(ctx, r)
			want = append(want, rec.Seq)
			return err
		}))
	}

	var got []int64
	var after int64
	for {
		page, err := s.ListContacts(ctx, models.ContactFilter{ContactedBy: "a", After: after, Limit: 1})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		got = append(got, page[0].Seq)
		after = page[0].Seq
	}
	assert.Equal(t, want, got)
}

func TestListEntitiesFilters(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	c, l := seedCampaign(t, s)
	insertEntity(t, s, models.Entity{ID: "e1", Name: "B", CampaignID: c.ID, CallListID: l.ID, AssignedCaller: "caller-a", Priority: 1})
	insertEntity(t, s, models.Entity{ID: "e2", Name: "A", CampaignID: c.ID, Priority: 2})
	insertEntity(t, s, models.Entity{ID: "e3", Kind: models.KindSpeakerVote, Name: "C"})

	byCampaign, err := s.ListEntities(ctx, models.EntityFilter{CampaignID: c.ID})
	require.NoError(t, err)
	require.Len(t, byCampaign, 2)
	assert.Equal(t, "e1", byCampaign[0].ID)

	unassigned, err := s.ListEntities(ctx, models.EntityFilter{Kind: models.KindChallenger, AssignedCaller: models.CallerUnassigned})
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.Equal(t, "e2", unassigned[0].ID)

	byList, err := s.ListEntities(ctx, models.EntityFilter{CallListID: l.ID})
	require.NoError(t, err)
	assert.Len(t, byList, 1)

	counts, err := s.CountByStatus(ctx, models.KindSpeakerVote, false)
	require.NoError(t, err)
	assert.Equal(t, map[models.Status]int{models.StatusUnknown: 1}, counts)
}

func TestSubjectFilterAndConfidence(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	insertEntity(t, s, models.Entity{ID: "c1", Kind: models.KindCandidate, Name: "A", SubjectUserID: "u1"})
	insertEntity(t, s, models.Entity{ID: "c2", Kind: models.KindCandidate, Name: "B"})
	insertEntity(t, s, models.Entity{ID: "v1", Kind: models.KindSpeakerVote, Name: "C", ConfidenceLevel: 5})
	insertEntity(t, s, models.Entity{ID: "t1", Name: "C", SourceEntityID: "v1"})

	own, err := s.ListEntities(ctx, models.EntityFilter{Kind: models.KindCandidate, SubjectUserID: "u1"})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "c1", own[0].ID)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateConfidence(ctx, "v1", 9, t0.Add(time.Minute))
	}))
	v, err := s.GetEntity(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 9, v.ConfidenceLevel)
	assert.Equal(t, int64(2), v.Version)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateConfidence(ctx, "missing", 3, t0)
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	target, err := s.GetEntity(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "v1", target.SourceEntityID)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertEntity(ctx, models.Entity{
			ID: "t2", Kind: models.KindChallenger, Name: "Dup", Status: models.StatusRecruiting,
			Priority: 5, SourceEntityID: "v1", Version: 1, CreatedBy: "admin", CreatedAt: t0, UpdatedAt: t0,
		})
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUsersAndPushSubscriptions(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "staff_a", "correct horse", models.RoleStaff)
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = s.CreateUser(ctx, "staff_a", "another", models.RoleStaff)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := s.GetUserByUsername(ctx, "staff_a")
	require.NoError(t, err)
	assert.True(t, got.CheckPassword("correct horse"))
	assert.False(t, got.TOTPEnabled)

	require.NoError(t, s.UpdateUser2FA(ctx, u.ID, "JBSWY3DPEHPK3PXP", true))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.TOTPEnabled)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", got.TOTPSecret)

	require.NoError(t, s.SavePushSubscription(ctx, u.ID, "https://push.example/1", "p", "a"))
	require.NoError(t, s.SavePushSubscription(ctx, u.ID, "https://push.example/1", "p2", "a2"))
	subs, err := s.GetPushSubscriptions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "p2", subs[0].P256dh)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, _, err := tx.InsertGrant(ctx, models.AccessGrant{UserID: u.ID, FeatureSlug: models.FeatureCandidates, GrantedBy: "admin", GrantedAt: t0})
		return err
	}))

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	grants, err := s.ListGrants(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)
	subs, err = s.GetPushSubscriptions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), apperr.ErrNotFound)
}
