// Package recruitment is the status, audit and access-control core. Every
// operation takes the actor as given by the authentication layer, authorizes
// it, and commits its writes in a single store transaction.
package recruitment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
)

// EventPublisher fans committed changes out to live subscribers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt models.StatusEvent) error
}

// AssignmentNotifier tells a caller a target was assigned to them.
type AssignmentNotifier interface {
	NotifyAssignment(ctx context.Context, callerID string, target models.Entity) error
}

// Service is the single entry point for the HTTP layer.
type Service struct {
	store     store.Store
	access    *AccessRegistry
	privacy   *PrivacyGate
	ledger    *StatusLedger
	contacts  *ContactLog
	campaigns *CampaignRegistry

	cache    GrantCache
	events   EventPublisher
	notifier AssignmentNotifier
	metrics  *Metrics
	log      *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Service)

func WithGrantCache(c GrantCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithNotifier(n AssignmentNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces the wall clock. Times are truncated to milliseconds.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		s.now = func() time.Time { return fn().UTC().Truncate(time.Millisecond) }
	}
}

func NewService(st store.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		log:    log,
		tracer: otel.Tracer("recruitment-tracker-go/internal/recruitment"),
		now:    now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.NewRegistry())
	}

	s.access = newAccessRegistry(st, s.cache, log)
	s.access.now = s.now
	s.privacy = newPrivacyGate(s.access)
	s.ledger = newStatusLedger(st)
	s.contacts = newContactLog(st)
	s.campaigns = newCampaignRegistry(st)
	return s
}

// Tracing

func (s *Service) startSpan(ctx context.Context, op string, actor models.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("actor.id", actor.ID), attribute.String("actor.role", actor.Role))
	return s.tracer.Start(ctx, "recruitment."+op, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.CodeOf(err)))
	}
	span.End()
}

// Authorization

func (s *Service) deny(op, message string) error {
	s.metrics.denials.WithLabelValues(op).Inc()
	return apperr.Unauthorized(message)
}

// authorizeWrite requires the kind's feature grant. allowSelf lets a
// candidate act on their own record without one.
func (s *Service) authorizeWrite(ctx context.Context, rd store.Reader, op string, actor models.Actor, e models.Entity, allowSelf bool) error {
	if allowSelf && ownsEntity(actor, e) {
		return nil
	}
	ok, err := s.access.hasAccess(ctx, rd, actor, e.Kind.FeatureSlug())
	if err != nil {
		return err
	}
	if !ok {
		return s.deny(op, "no access to "+e.Kind.FeatureSlug())
	}
	return nil
}

func (s *Service) authorizeFeature(ctx context.Context, rd store.Reader, op string, actor models.Actor, featureSlug string) error {
	ok, err := s.access.hasAccess(ctx, rd, actor, featureSlug)
	if err != nil {
		return err
	}
	if !ok {
		return s.deny(op, "no access to "+featureSlug)
	}
	return nil
}

func (s *Service) viewable(ctx context.Context, op string, actor models.Actor, id string) (models.Entity, error) {
	e, err := s.store.GetEntity(ctx, id)
	if err != nil {
		return models.Entity{}, err
	}
	ok, err := s.privacy.CanView(ctx, actor, e)
	if err != nil {
		return models.Entity{}, err
	}
	if !ok {
		return models.Entity{}, s.deny(op, "not allowed to view entity")
	}
	return e, nil
}

// CanView reports whether actor may see e.
func (s *Service) CanView(ctx context.Context, actor models.Actor, e models.Entity) (bool, error) {
	return s.privacy.CanView(ctx, actor, e)
}

// Post-commit side effects. Failures are logged and counted, never returned.

func (s *Service) publishEvent(ctx context.Context, evt models.StatusEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(context.WithoutCancel(ctx), evt); err != nil {
		s.metrics.sideEffects.WithLabelValues("event").Inc()
		s.log.Warn("failed to publish status event",
			zap.String("type", evt.Type), zap.String("entity_id", evt.EntityID), zap.Error(err))
	}
}

func (s *Service) notifyAssignment(ctx context.Context, callerID string, e models.Entity) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAssignment(context.WithoutCancel(ctx), callerID, e); err != nil {
		s.metrics.sideEffects.WithLabelValues("push").Inc()
		s.log.Warn("failed to send assignment notification",
			zap.String("caller", callerID), zap.String("entity_id", e.ID), zap.Error(err))
	}
}

// Entities

// RegisterEntity is the intake hook for import and manual-create flows. No
// transition is recorded: history starts empty at the initial status.
func (s *Service) RegisterEntity(ctx context.Context, actor models.Actor, ne models.NewEntity) (e models.Entity, err error) {
	ctx, span := s.startSpan(ctx, "RegisterEntity", actor, attribute.String("kind", string(ne.Kind)))
	defer func() { finishSpan(span, err) }()

	if !ne.Kind.Valid() {
		return models.Entity{}, apperr.WithMetadata(apperr.CodeValidation, "unknown entity kind", map[string]string{"kind": string(ne.Kind)})
	}
	ne.Name = strings.TrimSpace(ne.Name)
	if ne.Name == "" {
		return models.Entity{}, apperr.Validation("name is required")
	}
	if ne.Status == "" {
		ne.Status = ne.Kind.InitialStatus()
	}
	if !ne.Kind.Allows(ne.Status) {
		return models.Entity{}, invalidStatus(ne.Kind, ne.Status)
	}
	if ne.Priority == 0 {
		ne.Priority = 5
	}
	if ne.Priority < 1 || ne.Priority > 10 {
		return models.Entity{}, apperr.Validation("priority must be between 1 and 10")
	}
	if ne.SubjectUserID != "" && ne.Kind != models.KindCandidate {
		return models.Entity{}, apperr.Validation("only candidates can be linked to a user")
	}
	if ne.Kind.TracksConfidence() && ne.ConfidenceLevel == 0 {
		ne.ConfidenceLevel = models.DefaultConfidence
	}
	if err := checkConfidence(ne.Kind, ne.ConfidenceLevel); err != nil {
		return models.Entity{}, err
	}
	if ne.ID == "" {
		ne.ID = uuid.NewString()
	}

	at := s.now()
	e = models.Entity{
		ID:            ne.ID,
		Kind:          ne.Kind,
		Name:          ne.Name,
		DistrictCode:  ne.DistrictCode,
		Status:        ne.Status,
		SubjectUserID: ne.SubjectUserID,
		CampaignID:    ne.CampaignID,
		Priority:      ne.Priority,
		Notes:         ne.Notes,
		Version:       1,
		CreatedBy:     actor.ID,
		CreatedAt:     at,
		UpdatedAt:     at,

		ConfidenceLevel: ne.ConfidenceLevel,
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.authorizeFeature(ctx, tx, "register_entity", actor, ne.Kind.FeatureSlug()); err != nil {
			return err
		}
		if e.CampaignID != "" {
			if _, err := tx.GetCampaign(ctx, e.CampaignID); err != nil {
				return err
			}
		}
		if err := tx.InsertEntity(ctx, e); err != nil {
			return err
		}
		return insertAudit(ctx, tx, actor.ID, models.ActionRegisterEntity, string(e.Kind), e.ID, at,
			map[string]any{"name": e.Name, "status": e.Status})
	})
	if err != nil {
		return models.Entity{}, err
	}
	return e, nil
}

// Entity returns one entity the actor can view.
func (s *Service) Entity(ctx context.Context, actor models.Actor, id string) (e models.Entity, err error) {
	ctx, span := s.startSpan(ctx, "Entity", actor, attribute.String("entity_id", id))
	defer func() { finishSpan(span, err) }()

	return s.viewable(ctx, "entity", actor, id)
}

// Entities lists one kind. Without the kind's grant a gated kind yields only
// public entities and a candidate sees only their own record.
func (s *Service) Entities(ctx context.Context, actor models.Actor, f models.EntityFilter) (list []models.Entity, err error) {
	ctx, span := s.startSpan(ctx, "Entities", actor, attribute.String("kind", string(f.Kind)))
	defer func() { finishSpan(span, err) }()

	if !f.Kind.Valid() {
		return nil, apperr.WithMetadata(apperr.CodeValidation, "unknown entity kind", map[string]string{"kind": string(f.Kind)})
	}
	ok, err := s.access.HasAccess(ctx, actor, f.Kind.FeatureSlug())
	if err != nil {
		return nil, err
	}
	switch {
	case ok:
		return s.campaigns.Targets(ctx, f)
	case f.Kind.PrivacyGated():
		f.PublicOnly = true
		return s.campaigns.Targets(ctx, f)
	case actor.IsCandidate() && f.Kind == models.KindCandidate:
		f.SubjectUserID = actor.ID
		return s.campaigns.Targets(ctx, f)
	default:
		return nil, s.deny("entities", "no access to "+f.Kind.FeatureSlug())
	}
}

// Tally counts entities of kind per status, every legal status present. For
// speaker votes this is the whip count.
func (s *Service) Tally(ctx context.Context, actor models.Actor, kind models.EntityKind) (counts map[models.Status]int, err error) {
	ctx, span := s.startSpan(ctx, "Tally", actor, attribute.String("kind", string(kind)))
	defer func() { finishSpan(span, err) }()

	if !kind.Valid() {
		return nil, apperr.WithMetadata(apperr.CodeValidation, "unknown entity kind", map[string]string{"kind": string(kind)})
	}
	ok, err := s.access.HasAccess(ctx, actor, kind.FeatureSlug())
	if err != nil {
		return nil, err
	}
	if !ok && !kind.PrivacyGated() {
		return nil, s.deny("tally", "no access to "+kind.FeatureSlug())
	}

	stored, err := s.store.CountByStatus(ctx, kind, !ok)
	if err != nil {
		return nil, err
	}
	counts = make(map[models.Status]int, len(kind.Statuses()))
	for _, st := range kind.Statuses() {
		counts[st] = stored[st]
	}
	return counts, nil
}

// DeleteEntity removes the entity with its history and contacts.
func (s *Service) DeleteEntity(ctx context.Context, actor models.Actor, id string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteEntity", actor, attribute.String("entity_id", id))
	defer func() { finishSpan(span, err) }()

	var e models.Entity
	at := s.now()
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.LockEntity(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, tx, "delete_entity", actor, e, false); err != nil {
			return err
		}
		if _, err := tx.DeleteEntity(ctx, id); err != nil {
			return err
		}
		return insertAudit(ctx, tx, actor.ID, models.ActionDeleteEntity, string(e.Kind), id, at,
			map[string]any{"name": e.Name, "status": e.Status})
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, models.StatusEvent{
		Type: models.EventDeleted, EntityID: id, Kind: e.Kind, From: e.Status, Actor: actor.ID, OccurredAt: at,
	})
	return nil
}

// Ledger and contacts

// ContactDetails is an outreach attempt that accompanies a transition.
type ContactDetails struct {
	Method  models.ContactMethod `json:"method"`
	Outcome models.Outcome       `json:"outcome"`
	Notes   string               `json:"notes,omitempty"`
}

// TransitionCommand changes an entity's status, optionally logging the
// contact that caused it in the same transaction.
type TransitionCommand struct {
	EntityID        string          `json:"entity_id"`
	To              models.Status   `json:"to"`
	Note            string          `json:"note,omitempty"`
	ExpectedVersion int64           `json:"expected_version,omitempty"`
	Contact         *ContactDetails `json:"contact,omitempty"`
	// Confidence updates a speaker vote's confidence level with the move.
	Confidence *int `json:"confidence_level,omitempty"`
}

type TransitionResult struct {
	Transition models.StatusTransition `json:"transition"`
	Contact    *models.ContactRecord   `json:"contact,omitempty"`
	Entity     models.Entity           `json:"entity"`
}

// Transition moves an entity to cmd.To. The status write, the ledger record
// and the optional contact commit together or not at all.
func (s *Service) Transition(ctx context.Context, actor models.Actor, cmd TransitionCommand) (res TransitionResult, err error) {
	ctx, span := s.startSpan(ctx, "Transition", actor,
		attribute.String("entity_id", cmd.EntityID), attribute.String("to", string(cmd.To)))
	defer func() { finishSpan(span, err) }()

	at := s.now()
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		e, err := tx.LockEntity(ctx, cmd.EntityID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, tx, "transition", actor, e, true); err != nil {
			return err
		}

		before := e.Status
		rec, err := s.ledger.apply(ctx, tx, &e, TransitionRequest{
			EntityID:        e.ID,
			To:              cmd.To,
			Actor:           actor.ID,
			Note:            cmd.Note,
			ExpectedVersion: cmd.ExpectedVersion,
		}, at)
		if err != nil {
			return err
		}

		var contact *models.ContactRecord
		if cmd.Contact != nil {
			after := rec.To
			c, err := s.contacts.append(ctx, tx, &e, models.ContactInput{
				TargetID:     e.ID,
				ContactedBy:  actor.ID,
				Method:       cmd.Contact.Method,
				Outcome:      cmd.Contact.Outcome,
				Notes:        cmd.Contact.Notes,
				StatusBefore: &before,
				StatusAfter:  &after,
			}, rec.OccurredAt)
			if err != nil {
				return err
			}
			contact = &c
		}
		if cmd.Confidence != nil {
			if err := s.ledger.setConfidence(ctx, tx, &e, *cmd.Confidence, rec.OccurredAt); err != nil {
				return err
			}
		}

		res = TransitionResult{Transition: rec, Contact: contact, Entity: e}
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	s.metrics.transitions.WithLabelValues(string(res.Entity.Kind), string(res.Transition.To)).Inc()
	if res.Contact != nil {
		s.metrics.contacts.WithLabelValues(string(res.Contact.Method), string(res.Contact.Outcome)).Inc()
	}
	s.publishEvent(ctx, models.StatusEvent{
		Type:       models.EventTransition,
		EntityID:   res.Entity.ID,
		Kind:       res.Entity.Kind,
		From:       res.Transition.From,
		To:         res.Transition.To,
		Actor:      actor.ID,
		OccurredAt: res.Transition.OccurredAt,
	})
	return res, nil
}

// ContactCommand logs an outreach attempt. CausesTransitionTo applies a
// transition first and records it as the contact's before/after. Otherwise
// StatusBefore/StatusAfter may describe a transition already applied.
type ContactCommand struct {
	TargetID           string               `json:"target_id"`
	Method             models.ContactMethod `json:"method"`
	Outcome            models.Outcome       `json:"outcome"`
	Notes              string               `json:"notes,omitempty"`
	CausesTransitionTo *models.Status       `json:"causes_transition_to,omitempty"`
	StatusBefore       *models.Status       `json:"status_before,omitempty"`
	StatusAfter        *models.Status       `json:"status_after,omitempty"`
	Confidence         *int                 `json:"confidence_level,omitempty"`
}

type ContactResult struct {
	Contact    models.ContactRecord     `json:"contact"`
	Transition *models.StatusTransition `json:"transition,omitempty"`
	Entity     models.Entity            `json:"entity"`
}

func (s *Service) RecordContact(ctx context.Context, actor models.Actor, cmd ContactCommand) (res ContactResult, err error) {
	ctx, span := s.startSpan(ctx, "RecordContact", actor, attribute.String("entity_id", cmd.TargetID))
	defer func() { finishSpan(span, err) }()

	if cmd.CausesTransitionTo != nil && (cmd.StatusBefore != nil || cmd.StatusAfter != nil) {
		return ContactResult{}, apperr.Validation("causes_transition_to excludes status_before and status_after")
	}

	at := s.now()
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		e, err := tx.LockEntity(ctx, cmd.TargetID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, tx, "record_contact", actor, e, false); err != nil {
			return err
		}

		in := models.ContactInput{
			TargetID:     e.ID,
			ContactedBy:  actor.ID,
			Method:       cmd.Method,
			Outcome:      cmd.Outcome,
			Notes:        cmd.Notes,
			StatusBefore: cmd.StatusBefore,
			StatusAfter:  cmd.StatusAfter,
		}
		// Reject a bad method or outcome before touching the ledger.
		if !in.Method.Valid() || !in.Outcome.Valid() {
			return validateContact(e, in)
		}

		var transition *models.StatusTransition
		if cmd.CausesTransitionTo != nil {
			before := e.Status
			rec, err := s.ledger.apply(ctx, tx, &e, TransitionRequest{
				EntityID: e.ID,
				To:       *cmd.CausesTransitionTo,
				Actor:    actor.ID,
				Note:     cmd.Notes,
			}, at)
			if err != nil {
				return err
			}
			after := rec.To
			in.StatusBefore, in.StatusAfter = &before, &after
			at = rec.OccurredAt
			transition = &rec
		}

		c, err := s.contacts.append(ctx, tx, &e, in, at)
		if err != nil {
			return err
		}
		if cmd.Confidence != nil {
			if err := s.ledger.setConfidence(ctx, tx, &e, *cmd.Confidence, c.ContactedAt); err != nil {
				return err
			}
		}
		res = ContactResult{Contact: c, Transition: transition, Entity: e}
		return nil
	})
	if err != nil {
		return ContactResult{}, err
	}

	s.metrics.contacts.WithLabelValues(string(res.Contact.Method), string(res.Contact.Outcome)).Inc()
	if res.Transition != nil {
		s.metrics.transitions.WithLabelValues(string(res.Entity.Kind), string(res.Transition.To)).Inc()
		s.publishEvent(ctx, models.StatusEvent{
			Type:       models.EventTransition,
			EntityID:   res.Entity.ID,
			Kind:       res.Entity.Kind,
			From:       res.Transition.From,
			To:         res.Transition.To,
			Actor:      actor.ID,
			OccurredAt: res.Transition.OccurredAt,
		})
	}
	s.publishEvent(ctx, models.StatusEvent{
		Type:       models.EventContact,
		EntityID:   res.Entity.ID,
		Kind:       res.Entity.Kind,
		Actor:      actor.ID,
		OccurredAt: res.Contact.ContactedAt,
	})
	return res, nil
}

// History returns an entity's transitions, oldest first.
func (s *Service) History(ctx context.Context, actor models.Actor, entityID string, page models.Page) (history []models.StatusTransition, err error) {
	ctx, span := s.startSpan(ctx, "History", actor, attribute.String("entity_id", entityID))
	defer func() { finishSpan(span, err) }()

	if _, err := s.viewable(ctx, "history", actor, entityID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, entityID, page)
}

// Contacts lists contact records in seq order. Records on entities the actor
// cannot view are skipped and further pages are read until f.Limit visible
// records are found, so a short page means there is nothing after it.
func (s *Service) Contacts(ctx context.Context, actor models.Actor, f models.ContactFilter) (records []models.ContactRecord, err error) {
	ctx, span := s.startSpan(ctx, "Contacts", actor,
		attribute.String("entity_id", f.TargetID), attribute.String("contacted_by", f.ContactedBy))
	defer func() { finishSpan(span, err) }()

	if f.TargetID != "" {
		if _, err := s.viewable(ctx, "contacts", actor, f.TargetID); err != nil {
			return nil, err
		}
		return s.contacts.List(ctx, f)
	}

	if actor.IsAdmin() {
		return s.contacts.List(ctx, f)
	}
	visible := make(map[string]bool)
	page := f
	for {
		batch, err := s.contacts.List(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, r := range batch {
			ok, seen := visible[r.TargetID]
			if !seen {
				e, err := s.store.GetEntity(ctx, r.TargetID)
				if err != nil {
					return nil, err
				}
				if ok, err = s.privacy.CanView(ctx, actor, e); err != nil {
					return nil, err
				}
				visible[r.TargetID] = ok
			}
			if !ok {
				continue
			}
			records = append(records, r)
			if f.Limit > 0 && len(records) == f.Limit {
				return records, nil
			}
		}
		if f.Limit <= 0 || len(batch) < page.Limit {
			return records, nil
		}
		page.After = batch[len(batch)-1].Seq
	}
}

// VerifyHistory checks that an entity's history replays to its status.
func (s *Service) VerifyHistory(ctx context.Context, actor models.Actor, entityID string) (err error) {
	ctx, span := s.startSpan(ctx, "VerifyHistory", actor, attribute.String("entity_id", entityID))
	defer func() { finishSpan(span, err) }()

	if _, err := s.viewable(ctx, "verify_history", actor, entityID); err != nil {
		return err
	}
	return s.ledger.Verify(ctx, entityID)
}

// SeedPrimaryTarget opens a private challenger record for the seat of an
// opposed speaker vote, starting at recruiting with the default priority.
// A vote seeds at most one target.
func (s *Service) SeedPrimaryTarget(ctx context.Context, actor models.Actor, voteID string) (e models.Entity, err error) {
	ctx, span := s.startSpan(ctx, "SeedPrimaryTarget", actor, attribute.String("entity_id", voteID))
	defer func() { finishSpan(span, err) }()

	at := s.now()
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		vote, err := tx.LockEntity(ctx, voteID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, tx, "seed_primary_target", actor, vote, false); err != nil {
			return err
		}
		if err := s.authorizeFeature(ctx, tx, "seed_primary_target", actor, models.FeatureSecretPrimaries); err != nil {
			return err
		}
		if vote.Kind != models.KindSpeakerVote || vote.Status != models.StatusOpposed {
			return apperr.WithMetadata(apperr.CodeValidation, "only an opposed speaker vote can seed a primary target", map[string]string{
				"kind":   string(vote.Kind),
				"status": string(vote.Status),
			})
		}

		e = models.Entity{
			ID:             uuid.NewString(),
			Kind:           models.KindChallenger,
			Name:           vote.Name,
			DistrictCode:   vote.DistrictCode,
			Status:         models.KindChallenger.InitialStatus(),
			Priority:       5,
			SourceEntityID: vote.ID,
			Version:        1,
			CreatedBy:      actor.ID,
			CreatedAt:      at,
			UpdatedAt:      at,
		}
		if err := tx.InsertEntity(ctx, e); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.WithMetadata(apperr.CodeConflict, "already a primary target", map[string]string{"source_entity_id": vote.ID})
			}
			return err
		}
		return insertAudit(ctx, tx, actor.ID, models.ActionSeedTarget, string(e.Kind), e.ID, at,
			map[string]any{"source_entity_id": vote.ID, "district_code": vote.DistrictCode})
	})
	if err != nil {
		return models.Entity{}, err
	}
	return e, nil
}

// Privacy

// Publish reveals a privacy-gated entity. Repeating it returns the state
// from the first publish.
func (s *Service) Publish(ctx context.Context, actor models.Actor, entityID string) (state models.PrivacyState, err error) {
	ctx, span := s.startSpan(ctx, "Publish", actor, attribute.String("entity_id", entityID))
	defer func() { finishSpan(span, err) }()

	var e models.Entity
	var changed bool
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.LockEntity(ctx, entityID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, tx, "publish", actor, e, false); err != nil {
			return err
		}
		state, changed, err = s.privacy.publish(ctx, tx, &e, actor.ID, s.now())
		return err
	})
	if err != nil {
		return models.PrivacyState{}, err
	}

	if changed {
		s.metrics.publishes.WithLabelValues(string(e.Kind)).Inc()
		s.publishEvent(ctx, models.StatusEvent{
			Type: models.EventPublished, EntityID: e.ID, Kind: e.Kind, To: e.Status, Actor: actor.ID, OccurredAt: *state.MadePublicAt,
		})
	}
	return state, nil
}

// Grants

func (s *Service) GrantAccess(ctx context.Context, actor models.Actor, userID, featureSlug, notes string) (g models.AccessGrant, err error) {
	ctx, span := s.startSpan(ctx, "GrantAccess", actor, attribute.String("feature", featureSlug))
	defer func() { finishSpan(span, err) }()

	if !actor.IsAdmin() {
		return models.AccessGrant{}, s.deny("grant_access", "only admins can grant access")
	}
	g, err = s.access.Grant(ctx, userID, featureSlug, actor.ID, notes)
	if err != nil {
		return models.AccessGrant{}, err
	}
	s.metrics.grants.WithLabelValues("grant", featureSlug).Inc()
	return g, nil
}

// RevokeAccess reports false when there was no grant to remove.
func (s *Service) RevokeAccess(ctx context.Context, actor models.Actor, userID, featureSlug string) (removed bool, err error) {
	ctx, span := s.startSpan(ctx, "RevokeAccess", actor, attribute.String("feature", featureSlug))
	defer func() { finishSpan(span, err) }()

	if !actor.IsAdmin() {
		return false, s.deny("revoke_access", "only admins can revoke access")
	}
	removed, err = s.access.Revoke(ctx, userID, featureSlug, actor.ID)
	if err != nil {
		return false, err
	}
	if removed {
		s.metrics.grants.WithLabelValues("revoke", featureSlug).Inc()
	}
	return removed, nil
}

func (s *Service) HasAccess(ctx context.Context, actor models.Actor, featureSlug string) (bool, error) {
	if !models.KnownFeature(featureSlug) {
		return false, apperr.WithMetadata(apperr.CodeValidation, "unknown feature", map[string]string{"feature": featureSlug})
	}
	return s.access.HasAccess(ctx, actor, featureSlug)
}

func (s *Service) Features(ctx context.Context, actor models.Actor) ([]string, error) {
	return s.access.Features(ctx, actor)
}

// Grants lists grants. Non-admins may only list their own.
func (s *Service) Grants(ctx context.Context, actor models.Actor, userID string) ([]models.AccessGrant, error) {
	if !actor.IsAdmin() {
		if userID != "" && userID != actor.ID {
			return nil, s.deny("grants", "only admins can list other users' grants")
		}
		userID = actor.ID
	}
	return s.access.Grants(ctx, userID)
}

// Campaigns

func (s *Service) CreateCampaign(ctx context.Context, actor models.Actor, nc NewCampaign) (c models.Campaign, err error) {
	ctx, span := s.startSpan(ctx, "CreateCampaign", actor)
	defer func() { finishSpan(span, err) }()

	if nc.FeatureSlug == "" {
		nc.FeatureSlug = models.FeatureSecretPrimaries
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if models.KnownFeature(nc.FeatureSlug) {
			if err := s.authorizeFeature(ctx, tx, "create_campaign", actor, nc.FeatureSlug); err != nil {
				return err
			}
		}
		var err error
		c, err = s.campaigns.createCampaign(ctx, tx, actor.ID, nc, s.now())
		return err
	})
	if err != nil {
		return models.Campaign{}, err
	}
	return c, nil
}

func (s *Service) Campaign(ctx context.Context, actor models.Actor, id string) (c models.Campaign, err error) {
	ctx, span := s.startSpan(ctx, "Campaign", actor, attribute.String("campaign_id", id))
	defer func() { finishSpan(span, err) }()

	c, err = s.campaigns.Campaign(ctx, id)
	if err != nil {
		return models.Campaign{}, err
	}
	ok, err := s.access.HasAccess(ctx, actor, c.FeatureSlug)
	if err != nil {
		return models.Campaign{}, err
	}
	if !ok {
		return models.Campaign{}, s.deny("campaign", "no access to "+c.FeatureSlug)
	}
	return c, nil
}

// Campaigns lists the campaigns whose feature the actor holds.
func (s *Service) Campaigns(ctx context.Context, actor models.Actor) (list []models.Campaign, err error) {
	ctx, span := s.startSpan(ctx, "Campaigns", actor)
	defer func() { finishSpan(span, err) }()

	all, err := s.campaigns.Campaigns(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		ok, err := s.access.HasAccess(ctx, actor, c.FeatureSlug)
		if err != nil {
			return nil, err
		}
		if ok {
			list = append(list, c)
		}
	}
	return list, nil
}

// DeleteCampaign removes a campaign together with its targets and call lists.
func (s *Service) DeleteCampaign(ctx context.Context, actor models.Actor, id string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteCampaign", actor, attribute.String("campaign_id", id))
	defer func() { finishSpan(span, err) }()

	return s.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCampaign(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizeFeature(ctx, tx, "delete_campaign", actor, c.FeatureSlug); err != nil {
			return err
		}
		return s.campaigns.deleteCampaign(ctx, tx, actor.ID, id, s.now())
	})
}

func (s *Service) CreateCallList(ctx context.Context, actor models.Actor, nl NewCallList) (l models.CallList, err error) {
	ctx, span := s.startSpan(ctx, "CreateCallList", actor, attribute.String("campaign_id", nl.CampaignID))
	defer func() { finishSpan(span, err) }()

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCampaign(ctx, nl.CampaignID)
		if err != nil {
			return err
		}
		if err := s.authorizeFeature(ctx, tx, "create_call_list", actor, c.FeatureSlug); err != nil {
			return err
		}
		l, err = s.campaigns.createCallList(ctx, tx, actor.ID, nl, s.now())
		return err
	})
	if err != nil {
		return models.CallList{}, err
	}
	return l, nil
}

func (s *Service) CallLists(ctx context.Context, actor models.Actor, campaignID string) (lists []models.CallList, err error) {
	ctx, span := s.startSpan(ctx, "CallLists", actor, attribute.String("campaign_id", campaignID))
	defer func() { finishSpan(span, err) }()

	if _, err := s.Campaign(ctx, actor, campaignID); err != nil {
		return nil, err
	}
	return s.campaigns.CallLists(ctx, campaignID)
}

// DeleteCallList removes a call list; its targets are kept and unlinked.
func (s *Service) DeleteCallList(ctx context.Context, actor models.Actor, id string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteCallList", actor, attribute.String("call_list_id", id))
	defer func() { finishSpan(span, err) }()

	return s.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := tx.GetCallList(ctx, id)
		if err != nil {
			return err
		}
		c, err := tx.GetCampaign(ctx, l.CampaignID)
		if err != nil {
			return err
		}
		if err := s.authorizeFeature(ctx, tx, "delete_call_list", actor, c.FeatureSlug); err != nil {
			return err
		}
		return s.campaigns.deleteCallList(ctx, tx, actor.ID, id, s.now())
	})
}

// AssignTarget edits a target's call list and direct caller. A newly
// assigned caller gets a push notification after commit.
func (s *Service) AssignTarget(ctx context.Context, actor models.Actor, targetID string, change models.AssignmentChange) (e models.Entity, err error) {
	ctx, span := s.startSpan(ctx, "AssignTarget", actor, attribute.String("entity_id", targetID))
	defer func() { finishSpan(span, err) }()

	var newCaller bool
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.LockEntity(ctx, targetID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, tx, "assign_target", actor, e, false); err != nil {
			return err
		}
		newCaller, err = s.campaigns.assign(ctx, tx, &e, actor.ID, change, s.now())
		return err
	})
	if err != nil {
		return models.Entity{}, err
	}

	s.publishEvent(ctx, models.StatusEvent{
		Type: models.EventAssigned, EntityID: e.ID, Kind: e.Kind, To: e.Status, Actor: actor.ID, OccurredAt: e.UpdatedAt,
	})
	if newCaller {
		s.notifyAssignment(ctx, e.AssignedCaller, e)
	}
	return e, nil
}

// Audit returns the newest administrative actions. Admin only.
func (s *Service) Audit(ctx context.Context, actor models.Actor, limit int) ([]models.AuditLog, error) {
	if !actor.IsAdmin() {
		return nil, s.deny("audit", "only admins can read the audit log")
	}
	return s.store.ListAudit(ctx, limit)
}
