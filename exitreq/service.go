package exitreq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/warp/exit-engine/correct"
	"github.com/warp/exit-engine/extract"
	"github.com/warp/exit-engine/logger"
	"github.com/warp/exit-engine/rules"
	"github.com/warp/exit-engine/temporal"
)

// Extractor produces a candidate object from raw text.
// *extract.Orchestrator is the production implementation.
type Extractor interface {
	Extract(ctx context.Context, text string, now time.Time) (*extract.Candidate, error)
}

// Service runs the submission pipeline and the decision workflow.
type Service struct {
	store      Store
	extractor  Extractor
	normalizer *temporal.Normalizer
	fees       rules.FeeSchedule
	risk       rules.RiskThresholds
	now        func() time.Time
	newID      func() string
	log        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFeeSchedule overrides the default fee schedule.
func WithFeeSchedule(fs rules.FeeSchedule) Option {
	return func(s *Service) { s.fees = fs }
}

// WithRiskThresholds overrides the default risk thresholds.
func WithRiskThresholds(rt rules.RiskThresholds) Option {
	return func(s *Service) { s.risk = rt }
}

// WithClock sets the source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator sets how request IDs are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService wires the pipeline. normalizer may be nil for the default zone.
func NewService(store Store, extractor Extractor, normalizer *temporal.Normalizer, opts ...Option) *Service {
	if normalizer == nil {
		normalizer = temporal.NewNormalizer(nil)
	}
	s := &Service{
		store:      store,
		extractor:  extractor,
		normalizer: normalizer,
		fees:       rules.DefaultFeeSchedule(),
		risk:       rules.DefaultRiskThresholds(),
		now:        time.Now,
		newID:      uuid.NewString,
		log:        logger.WithComponent("exitreq"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit derives and stores a pending ExitRequest from raw text.
//
// Pipeline:
//  1. Length gate (TooShortError, no extraction call)
//  2. Extraction; any failure falls through to the pattern fallback
//  3. Fallback for each unusable date field (UnparseableDateError on a miss)
//  4. Temporal normalization (UnparseableDateError naming failed sides)
//  5. Return-time corrections from the raw text
//  6. Range check (InvalidRangeError)
//  7. Room/contact supplements, classification, risk, fee
//  8. Atomic create
func (s *Service) Submit(ctx context.Context, who Identity, text string) (ExitRequest, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < MinTextLength {
		return ExitRequest{}, &TooShortError{Length: n, Min: MinTextLength}
	}

	now := s.now().In(s.normalizer.Location)

	cand, extractErr := s.extractor.Extract(ctx, text, now)
	if extractErr != nil {
		s.log.WarnContext(ctx, "extraction failed, using fallback patterns",
			"requester", who.RequesterID, "error", extractErr)
	}
	if cand == nil {
		cand = &extract.Candidate{}
	}

	leavePhrase, returnPhrase, err := s.datePhrases(ctx, text, cand, extractErr)
	if err != nil {
		return ExitRequest{}, err
	}

	leaveAt, leaveOK := s.normalizer.Normalize(leavePhrase, now)
	returnAt, returnOK := s.normalizer.Normalize(returnPhrase, now)
	if !leaveOK || !returnOK {
		return ExitRequest{}, unparseable(leavePhrase, leaveOK, returnPhrase, returnOK, extractErr)
	}

	corrected, err := correct.Correct(correct.Input{
		Text:         text,
		ReturnPhrase: returnPhrase,
		LeaveAt:      leaveAt,
		ReturnAt:     returnAt,
	})
	var rangeErr *correct.OffsetRangeError
	if errors.As(err, &rangeErr) {
		return ExitRequest{}, &UnparseableDateError{
			Side:    extract.SideReturn,
			Phrase:  rangeErr.Phrase,
			Example: extract.ReturnExample,
			Cause:   err,
		}
	}
	if err != nil {
		return ExitRequest{}, fmt.Errorf("correct return time: %w", err)
	}
	if len(corrected.Applied) > 0 {
		s.log.DebugContext(ctx, "return time corrected",
			"rules", corrected.Applied,
			"from", temporal.Format(returnAt),
			"to", temporal.Format(corrected.ReturnAt))
	}
	returnAt = corrected.ReturnAt

	if returnAt.Before(leaveAt) {
		return ExitRequest{}, &InvalidRangeError{LeaveAt: leaveAt, ReturnAt: returnAt}
	}

	room := correct.SupplementRoom(rules.NormalizeRoom(cand.RoomType), text)
	contact := correct.SupplementContact(cand.EmergencyContact, text)

	req := ExitRequest{
		ID:               s.newID(),
		RequesterID:      who.RequesterID,
		RawText:          text,
		Reason:           cand.Reason,
		ExitType:         rules.Classify(leaveAt, returnAt),
		LeaveAt:          leaveAt,
		ReturnAt:         returnAt,
		RoomCategory:     room,
		EmergencyContact: contact,
		RiskLevel:        s.risk.Assess(leaveAt, returnAt, contact),
		Fee:              s.fees.Calculate(leaveAt, returnAt, room),
		Status:           StatusPending,
		CreatedAt:        now,
	}

	if err := s.store.Create(ctx, req); err != nil {
		return ExitRequest{}, fmt.Errorf("store exit request: %w", err)
	}

	s.log.InfoContext(ctx, "exit request submitted",
		"id", req.ID,
		"requester", req.RequesterID,
		"exit_type", req.ExitType,
		"leave_at", temporal.Format(req.LeaveAt),
		"return_at", temporal.Format(req.ReturnAt),
		"risk", req.RiskLevel,
		"fee", req.Fee)

	return req, nil
}

// datePhrases picks the string each side is normalized from: the extracted
// value when usable, otherwise a cue-anchored phrase found in the text.
func (s *Service) datePhrases(ctx context.Context, text string, cand *extract.Candidate, extractErr error) (string, string, error) {
	leave, leaveOK := s.phraseFor(ctx, text, cand.LeaveDatetime, extract.SideLeave)
	ret, returnOK := s.phraseFor(ctx, text, cand.ReturnDatetime, extract.SideReturn)

	switch {
	case !leaveOK && !returnOK:
		return "", "", &UnparseableDateError{Side: SideBoth, Example: extract.CombinedExample, Cause: extractErr}
	case !leaveOK:
		return "", "", &UnparseableDateError{Side: extract.SideLeave, Example: extract.LeaveExample, Cause: extractErr}
	case !returnOK:
		return "", "", &UnparseableDateError{Side: extract.SideReturn, Example: extract.ReturnExample, Cause: extractErr}
	}
	return leave, ret, nil
}

func (s *Service) phraseFor(ctx context.Context, text, extracted string, side extract.Side) (string, bool) {
	if !extract.NeedsFallback(extracted) {
		return strings.TrimSpace(extracted), true
	}

	phrase, ok := extract.FindDatePhrase(text, side)
	if ok {
		s.log.DebugContext(ctx, "fallback phrase found", "side", side, "phrase", phrase)
	}
	return phrase, ok
}

func unparseable(leave string, leaveOK bool, ret string, returnOK bool, cause error) error {
	e := &UnparseableDateError{Example: extract.CombinedExample, Cause: cause}
	switch {
	case !leaveOK && !returnOK:
		e.Side = SideBoth
		e.Phrase = leave + "; " + ret
	case !leaveOK:
		e.Side = extract.SideLeave
		e.Phrase = leave
	default:
		e.Side = extract.SideReturn
		e.Phrase = ret
	}
	return e
}

// =============================================================================
// DECIDE
// =============================================================================

// Decide moves a pending request to approved or rejected. Only admins may
// decide. Repeating the current decision returns the record unchanged.
func (s *Service) Decide(ctx context.Context, who Identity, id string, decision Decision) (ExitRequest, error) {
	if !who.IsAdmin() {
		return ExitRequest{}, &AuthorizationError{RequesterID: who.RequesterID, Action: "decide exit requests"}
	}
	if !decision.Terminal() {
		return ExitRequest{}, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return ExitRequest{}, err
	}

	switch current.Status {
	case decision:
		return current, nil
	case StatusPending:
	default:
		return ExitRequest{}, fmt.Errorf("%w: %s is %s", ErrAlreadyDecided, id, current.Status)
	}

	updated, err := s.store.UpdateStatus(ctx, id, decision, who.RequesterID, s.now().In(s.normalizer.Location))
	if err != nil {
		return ExitRequest{}, fmt.Errorf("update status: %w", err)
	}

	s.log.InfoContext(ctx, "exit request decided", "id", id, "status", decision, "by", who.RequesterID)
	return updated, nil
}

// =============================================================================
// READ
// =============================================================================

// List returns the caller's own requests, or every request (admin only)
// optionally filtered by status.
func (s *Service) List(ctx context.Context, who Identity, scope Scope, status Status) ([]ExitRequest, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	switch scope {
	case ScopeOwn, "":
		reqs, err := s.store.ListByRequester(ctx, who.RequesterID)
		if err != nil {
			return nil, err
		}
		if status == "" {
			return reqs, nil
		}
		filtered := reqs[:0]
		for _, r := range reqs {
			if r.Status == status {
				filtered = append(filtered, r)
			}
		}
		return filtered, nil

	case ScopeAll:
		if !who.IsAdmin() {
			return nil, &AuthorizationError{RequesterID: who.RequesterID, Action: "list all exit requests"}
		}
		return s.store.ListAll(ctx, status)

	default:
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
}

// Get returns one request to its owner or an admin.
func (s *Service) Get(ctx context.Context, who Identity, id string) (ExitRequest, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return ExitRequest{}, err
	}
	if r.RequesterID != who.RequesterID && !who.IsAdmin() {
		return ExitRequest{}, &AuthorizationError{RequesterID: who.RequesterID, Action: "read exit request " + id}
	}
	return r, nil
}

// IsExtractionFailure reports whether err, or its cause, is an extraction
// boundary failure rather than a problem with the text.
func IsExtractionFailure(err error) bool {
	return errors.Is(err, ErrExtractionUnavailable) ||
		errors.Is(err, ErrExtractionFormat) ||
		errors.Is(err, ErrPlaceholderValue)
}
