package exitreq_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/exit-engine/correct"
	"github.com/warp/exit-engine/exitreq"
	"github.com/warp/exit-engine/exitreq/store"
	"github.com/warp/exit-engine/extract"
	"github.com/warp/exit-engine/rules"
	"github.com/warp/exit-engine/temporal"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	kolkata = temporal.MustLoadZone("Asia/Kolkata")
	now     = time.Date(2025, 12, 19, 9, 0, 0, 0, kolkata)

	student = exitreq.Identity{RequesterID: "student-1", Role: "student"}
	other   = exitreq.Identity{RequesterID: "student-2", Role: "student"}
	warden  = exitreq.Identity{RequesterID: "warden-1", Role: exitreq.RoleAdmin}
)

func at(day, hour, min int) time.Time {
	return time.Date(2025, 12, day, hour, min, 0, 0, kolkata)
}

// scriptedService answers every call with the same response or error.
type scriptedService struct {
	response string
	err      error
	calls    int32
}

func (s *scriptedService) Name() string { return "scripted" }

func (s *scriptedService) Extract(_ context.Context, _ string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.response, s.err
}

// phraseTable is a NaturalParser that only knows the phrases it was given.
type phraseTable map[string]time.Time

func (p phraseTable) ParseNatural(phrase string, _ time.Time, _ *time.Location) (time.Time, error) {
	if t, ok := p[strings.ToLower(phrase)]; ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unknown phrase %q", phrase)
}

var phrases = phraseTable{
	"20 december 2025 at 10:00 am": at(20, 10, 0),
	"27 december 2025 at 6:00 pm":  at(27, 18, 0),
	"tomorrow 10am":                at(20, 10, 0),
	"sunday evening":               at(21, 18, 0),
}

type fixture struct {
	svc   *exitreq.Service
	store *store.Memory
	llm   *scriptedService
}

func newFixture(response string, err error) *fixture {
	llm := &scriptedService{response: response, err: err}
	mem := store.NewMemory()
	normalizer := &temporal.Normalizer{Location: kolkata, Natural: phrases}
	orch := extract.NewOrchestrator(llm, time.Second, kolkata)

	ids := int32(0)
	svc := exitreq.NewService(mem, orch, normalizer,
		exitreq.WithClock(func() time.Time { return now }),
		exitreq.WithIDGenerator(func() string { return fmt.Sprintf("req-%d", atomic.AddInt32(&ids, 1)) }),
	)
	return &fixture{svc: svc, store: mem, llm: llm}
}

func candidate(leave, ret, room, contact string) string {
	return fmt.Sprintf(`{"intent":"REGULAR_EXIT","reason":"family visit","leave_datetime":%q,"return_datetime":%q,"room_type":%q,"emergency_contact":%q}`,
		leave, ret, room, contact)
}

// =============================================================================
// SUBMIT - INPUT GATE
// =============================================================================

func TestSubmit_TooShort_NoExtractionNoRecord(t *testing.T) {
	for _, text := range []string{"", "home", "  going   ", "123456789"} {
		f := newFixture(extract.StaticResponse, nil)

		_, err := f.svc.Submit(context.Background(), student, text)

		var tooShort *exitreq.TooShortError
		require.True(t, errors.As(err, &tooShort), "text %q", text)
		assert.Equal(t, exitreq.MinTextLength, tooShort.Min)
		assert.True(t, exitreq.IsClientError(err))
		assert.Equal(t, int32(0), atomic.LoadInt32(&f.llm.calls))

		all, err := f.store.ListAll(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, all)
	}
}

// =============================================================================
// SUBMIT - DERIVATION
// =============================================================================

func TestSubmit_ISOTimestamps_DerivesRecord(t *testing.T) {
	// GIVEN: Extraction returns exact timestamps for a 5-day absence from a 2-seater
	f := newFixture(candidate("2025-12-20T10:00:00", "2025-12-25T10:00:00", "2-seater", "98765 43210"), nil)

	// WHEN: Submitting
	req, err := f.svc.Submit(context.Background(), student, "Going home for Christmas, 20th to 25th December")

	// THEN: The record is derived deterministically
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, "student-1", req.RequesterID)
	assert.True(t, req.LeaveAt.Equal(at(20, 10, 0)))
	assert.True(t, req.ReturnAt.Equal(at(25, 10, 0)))
	assert.Equal(t, rules.HostelLeave, req.ExitType, "extractor intent is ignored")
	assert.Equal(t, rules.RoomTwoSeater, req.RoomCategory)
	assert.Equal(t, "9876543210", req.EmergencyContact)
	assert.Equal(t, rules.RiskLow, req.RiskLevel)
	assert.Equal(t, int64(1200), req.Fee)
	assert.Equal(t, exitreq.StatusPending, req.Status)
	assert.Equal(t, "family visit", req.Reason)

	stored, err := f.store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Fee, stored.Fee)
}

func TestSubmit_AfterHours_OverridesExtractedReturn(t *testing.T) {
	// GIVEN: The extractor got the arithmetic wrong (return before leave + 3h)
	f := newFixture(candidate("2025-12-19T09:00:00", "2025-12-19T10:00:00", "unknown", "9876543210"), nil)

	// WHEN: Submitting text that says "after 3 hours"
	req, err := f.svc.Submit(context.Background(), student, "Going to the market now, back after 3 hours")

	// THEN: Return is exactly leave + 3h and it's a regular exit
	require.NoError(t, err)
	assert.True(t, req.ReturnAt.Equal(req.LeaveAt.Add(3*time.Hour)))
	assert.Equal(t, rules.RegularExit, req.ExitType)
	assert.Equal(t, int64(0), req.Fee)
}

func TestSubmit_HugeOffset_RejectedNotWrapped(t *testing.T) {
	// GIVEN: An hour count whose nanoseconds overflow int64
	f := newFixture(candidate("2025-12-20T10:00:00", "2025-12-20T18:00:00", "4_seater", "9876543210"), nil)

	// WHEN: Submitting
	_, err := f.svc.Submit(context.Background(), student, "Leaving tomorrow, back after 5124096 hours")

	// THEN: The return side is reported, nothing is stored
	var dateErr *exitreq.UnparseableDateError
	require.True(t, errors.As(err, &dateErr), "got %v", err)
	assert.Equal(t, extract.SideReturn, dateErr.Side)
	assert.Equal(t, "after 5124096 hours", dateErr.Phrase)
	assert.Equal(t, extract.ReturnExample, dateErr.Example)
	assert.ErrorIs(t, err, correct.ErrOffsetOutOfRange)
	assert.True(t, exitreq.IsClientError(err))

	all, err := f.store.ListAll(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmit_MissingContact_HighRisk(t *testing.T) {
	f := newFixture(candidate("2025-12-20T10:00:00", "2025-12-21T10:00:00", "4_seater", ""), nil)

	req, err := f.svc.Submit(context.Background(), student, "Visiting my aunt overnight")

	require.NoError(t, err)
	assert.Equal(t, "", req.EmergencyContact)
	assert.Equal(t, rules.RiskHigh, req.RiskLevel)
	assert.Equal(t, int64(0), req.Fee)
}

func TestSubmit_SupplementsRoomAndContactFromText(t *testing.T) {
	f := newFixture(candidate("2025-12-20T10:00:00", "2025-12-23T10:00:00", "unknown", ""), nil)

	req, err := f.svc.Submit(context.Background(), student, "I live in a 2 seater, call 98765-43210 in an emergency")

	require.NoError(t, err)
	assert.Equal(t, rules.RoomTwoSeater, req.RoomCategory)
	assert.Equal(t, "9876543210", req.EmergencyContact)
	assert.Equal(t, int64(600), req.Fee)
}

func TestSubmit_ReturnBeforeLeave_Rejected(t *testing.T) {
	f := newFixture(candidate("2025-12-25T10:00:00", "2025-12-20T10:00:00", "4_seater", "9876543210"), nil)

	_, err := f.svc.Submit(context.Background(), student, "Going home, dates below")

	var rangeErr *exitreq.InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.True(t, exitreq.IsClientError(err))

	all, _ := f.store.ListAll(context.Background(), "")
	assert.Empty(t, all)
}

// =============================================================================
// SUBMIT - RECOVERY PATHS
// =============================================================================

func TestSubmit_ExtractionDown_FallbackPhrases(t *testing.T) {
	// GIVEN: The extraction service is unreachable
	f := newFixture("", errors.New("connection refused"))

	// WHEN: The text carries cue-anchored dates
	req, err := f.svc.Submit(context.Background(), student,
		"Leaving on 20 December 2025 at 10:00 AM and returning on 27 December 2025 at 6:00 PM. Contact 9876543210")

	// THEN: The fallback phrases are normalized and the request succeeds
	require.NoError(t, err)
	assert.True(t, req.LeaveAt.Equal(at(20, 10, 0)))
	assert.True(t, req.ReturnAt.Equal(at(27, 18, 0)))
	assert.Equal(t, "9876543210", req.EmergencyContact)
	assert.Equal(t, rules.RoomUnknown, req.RoomCategory)
	assert.Equal(t, int64(1200), req.Fee)
}

func TestSubmit_ExtractionDown_NoPhrases_Unparseable(t *testing.T) {
	cause := errors.New("connection refused")
	f := newFixture("", cause)

	_, err := f.svc.Submit(context.Background(), student, "I want to go home for a while please")

	var ude *exitreq.UnparseableDateError
	require.True(t, errors.As(err, &ude))
	assert.Equal(t, exitreq.SideBoth, ude.Side)
	assert.Equal(t, extract.CombinedExample, ude.Example)
	assert.Contains(t, err.Error(), extract.CombinedExample)
	assert.ErrorIs(t, err, exitreq.ErrExtractionUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, exitreq.IsClientError(err))
	assert.True(t, exitreq.IsExtractionFailure(err))
}

func TestSubmit_PlaceholderReturn_FallbackForReturnOnly(t *testing.T) {
	f := newFixture(candidate("2025-12-20T10:00:00", "...", "4_seater", "9876543210"), nil)

	req, err := f.svc.Submit(context.Background(), student, "Going home, back on 27 December 2025 at 6:00 PM")

	require.NoError(t, err)
	assert.True(t, req.LeaveAt.Equal(at(20, 10, 0)))
	assert.True(t, req.ReturnAt.Equal(at(27, 18, 0)))
}

func TestSubmit_PlaceholderReturn_NoPhrase(t *testing.T) {
	f := newFixture(candidate("2025-12-20T10:00:00", "...", "4_seater", "9876543210"), nil)

	_, err := f.svc.Submit(context.Background(), student, "Going home, will come back later")

	var ude *exitreq.UnparseableDateError
	require.True(t, errors.As(err, &ude))
	assert.Equal(t, extract.SideReturn, ude.Side)
	assert.Equal(t, extract.ReturnExample, ude.Example)
	assert.ErrorIs(t, err, exitreq.ErrPlaceholderValue)
}

func TestSubmit_NaturalLanguageValues(t *testing.T) {
	f := newFixture(candidate("tomorrow 10am", "sunday evening", "4_seater", "9876543210"), nil)

	req, err := f.svc.Submit(context.Background(), student, "Leaving tomorrow 10am, back sunday evening")

	require.NoError(t, err)
	assert.True(t, req.LeaveAt.Equal(at(20, 10, 0)))
	assert.True(t, req.ReturnAt.Equal(at(21, 18, 0)))
	assert.Equal(t, rules.HostelLeave, req.ExitType)
}

func TestSubmit_NormalizationFails_NamesSide(t *testing.T) {
	f := newFixture(candidate("2025-12-20T10:00:00", "whenever I feel like it", "4_seater", "9876543210"), nil)

	_, err := f.svc.Submit(context.Background(), student, "Leaving tomorrow, back whenever")

	var ude *exitreq.UnparseableDateError
	require.True(t, errors.As(err, &ude))
	assert.Equal(t, extract.SideReturn, ude.Side)
	assert.Equal(t, "whenever I feel like it", ude.Phrase)
	assert.Nil(t, ude.Cause)
}

// =============================================================================
// DECIDE
// =============================================================================

func submitted(t *testing.T, f *fixture) exitreq.ExitRequest {
	t.Helper()
	req, err := f.svc.Submit(context.Background(), student, "Going home for the weekend, leaving Saturday")
	require.NoError(t, err)
	return req
}

func TestDecide_NonAdmin_Forbidden_StatusUnchanged(t *testing.T) {
	f := newFixture(extract.StaticResponse, nil)
	req := submitted(t, f)

	for _, who := range []exitreq.Identity{student, other, {RequesterID: "x"}} {
		for _, d := range []exitreq.Decision{exitreq.StatusApproved, exitreq.StatusRejected} {
			_, err := f.svc.Decide(context.Background(), who, req.ID, d)

			var authErr *exitreq.AuthorizationError
			require.True(t, errors.As(err, &authErr))
			assert.True(t, exitreq.IsForbidden(err))
		}
	}

	stored, err := f.store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, exitreq.StatusPending, stored.Status)
}

func TestDecide_Lifecycle(t *testing.T) {
	f := newFixture(extract.StaticResponse, nil)
	req := submitted(t, f)

	// GIVEN: A pending request
	// WHEN: The warden approves
	approved, err := f.svc.Decide(context.Background(), warden, req.ID, exitreq.StatusApproved)

	// THEN: Status and decision metadata are set
	require.NoError(t, err)
	assert.Equal(t, exitreq.StatusApproved, approved.Status)
	assert.Equal(t, "warden-1", approved.DecidedBy)
	require.NotNil(t, approved.DecidedAt)
	assert.Equal(t, req.Fee, approved.Fee, "derived fields untouched")

	// Approving again is a no-op
	again, err := f.svc.Decide(context.Background(), warden, req.ID, exitreq.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, exitreq.StatusApproved, again.Status)

	// Rejecting an approved request conflicts
	_, err = f.svc.Decide(context.Background(), warden, req.ID, exitreq.StatusRejected)
	assert.ErrorIs(t, err, exitreq.ErrAlreadyDecided)
	assert.True(t, exitreq.IsConflict(err))
}

func TestDecide_InvalidDecisionAndMissing(t *testing.T) {
	f := newFixture(extract.StaticResponse, nil)
	req := submitted(t, f)

	_, err := f.svc.Decide(context.Background(), warden, req.ID, exitreq.StatusPending)
	assert.ErrorIs(t, err, exitreq.ErrInvalidDecision)

	_, err = f.svc.Decide(context.Background(), warden, "nope", exitreq.StatusApproved)
	assert.True(t, exitreq.IsNotFound(err))
}

// =============================================================================
// LIST / GET
// =============================================================================

func TestList_Scopes(t *testing.T) {
	f := newFixture(extract.StaticResponse, nil)
	ctx := context.Background()

	mine := submitted(t, f)
	_, err := f.svc.Submit(ctx, other, "Another student leaving for personal work")
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, warden, mine.ID, exitreq.StatusRejected)
	require.NoError(t, err)

	own, err := f.svc.List(ctx, student, exitreq.ScopeOwn, "")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	_, err = f.svc.List(ctx, student, exitreq.ScopeAll, "")
	assert.True(t, exitreq.IsForbidden(err))

	all, err := f.svc.List(ctx, warden, exitreq.ScopeAll, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := f.svc.List(ctx, warden, exitreq.ScopeAll, exitreq.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "student-2", pending[0].RequesterID)

	_, err = f.svc.List(ctx, warden, exitreq.ScopeAll, "cancelled")
	assert.ErrorIs(t, err, exitreq.ErrInvalidStatus)
	assert.NotErrorIs(t, err, exitreq.ErrInvalidDecision)
	assert.True(t, exitreq.IsClientError(err))
}

func TestGet_OwnerOrAdmin(t *testing.T) {
	f := newFixture(extract.StaticResponse, nil)
	ctx := context.Background()
	req := submitted(t, f)

	got, err := f.svc.Get(ctx, student, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)

	_, err = f.svc.Get(ctx, warden, req.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, other, req.ID)
	assert.True(t, exitreq.IsForbidden(err))
}
