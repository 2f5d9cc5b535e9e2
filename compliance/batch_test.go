package compliance_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wage-compliance/compliance"
	"github.com/warp/wage-compliance/compliance/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type batchFixture struct {
	store       *store.Memory
	reviews     *compliance.ReviewQueue
	coordinator *compliance.Coordinator
}

func newBatch(t *testing.T, workers int) *batchFixture {
	t.Helper()
	mem := store.NewMemory()
	now := func() time.Time { return tuesday }
	reviews := compliance.NewReviewQueue(mem, compliance.DefaultReviewConfig(), nil, nil).WithClock(now)
	coordinator := compliance.NewCoordinator(newEngine(t), mem, reviews, workers, nil).WithClock(now)
	return &batchFixture{store: mem, reviews: reviews, coordinator: coordinator}
}

func mixedInputs() []compliance.EmployeeInput {
	return []compliance.EmployeeInput{eveningAtOrdinary(), withoutContract(), sundayLowConfidence()}
}

// cancellingStore cancels the run after the first result is saved.
type cancellingStore struct {
	*store.Memory
	cancel context.CancelFunc
}

func (s *cancellingStore) SaveResult(ctx context.Context, rec compliance.StoredResult) (compliance.StoredResult, error) {
	out, err := s.Memory.SaveResult(ctx, rec)
	s.cancel()
	return out, err
}

// =============================================================================
// RUNS
// =============================================================================

func TestCoordinator_Run_MixedOutcomes(t *testing.T) {
	// GIVEN: One underpaid, one incomplete and one uncertain employee
	// WHEN: Running the audit
	// THEN: One outcome each, in input order, with run-level aggregates

	ctx := context.Background()
	b := newBatch(t, 4)

	run, err := b.coordinator.Run(ctx, "acme-childcare", march(), mixedInputs())
	require.NoError(t, err)

	outcomes := run.Outcomes()
	require.Len(t, outcomes, 3)
	assert.Equal(t, compliance.EmployeeID("E-1001"), outcomes[0].EmployeeID)
	assert.Equal(t, compliance.EmployeeID("E-1002"), outcomes[1].EmployeeID)
	assert.Equal(t, compliance.EmployeeID("E-1003"), outcomes[2].EmployeeID)

	stats := run.Stats()
	assert.Equal(t, 3, stats.Employees)
	assert.Equal(t, 1, stats.ByClass[compliance.ClassUnderpaid])
	assert.Equal(t, 1, stats.ByClass[compliance.ClassNeedsReview])
	assert.Equal(t, 0, stats.ByClass[compliance.ClassOK])
	assert.Equal(t, 1, stats.Excluded[compliance.ExcludedInsufficientData])
	assertDecimal(t, "7.13", stats.TotalLiability, "only underpaid results count")
	assertDecimal(t, "363.38", stats.TotalEntitled)
	assertDecimal(t, "213.75", stats.TotalPaid)
	assert.Equal(t, []compliance.ComponentKey{"evening-penalty", "sunday-penalty"}, stats.RootCauseRanking())

	assert.False(t, run.Cancelled)
	assert.Empty(t, run.NotRun)
	assert.Len(t, run.Results(), 2)
	assert.Len(t, b.store.Exclusions(run.ID), 1)

	saved, err := b.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, saved.ID)

	cases, err := b.reviews.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, compliance.EmployeeID("E-1003"), cases[0].Case.EmployeeID)
	assert.Equal(t, compliance.PriorityMedium, cases[0].Priority)
	assert.Equal(t, run.ID, cases[0].Case.RunID)
}

func TestCoordinator_Run_UnchangedInputsAreSkipped(t *testing.T) {
	// GIVEN: A completed run
	// WHEN: Rerunning on the same inputs
	// THEN: Results are reused as is, no new versions or cases appear

	ctx := context.Background()
	b := newBatch(t, 2)

	first, err := b.coordinator.Run(ctx, "acme-childcare", march(), mixedInputs())
	require.NoError(t, err)
	second, err := b.coordinator.Run(ctx, "acme-childcare", march(), mixedInputs())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Stats().Skipped)
	assert.Equal(t, first.Stats().ByClass, second.Stats().ByClass)

	a, err := json.Marshal(first.Results())
	require.NoError(t, err)
	bb, err := json.Marshal(second.Results())
	require.NoError(t, err)
	assert.Equal(t, string(a), string(bb))

	latest, err := b.store.LatestResult(ctx, "E-1001", "2025-03-F1")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)
	assert.Equal(t, first.ID, latest.RunID)

	cases, err := b.reviews.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, cases, 1)
}

func TestCoordinator_Run_CorrectedInputIsANewVersion(t *testing.T) {
	ctx := context.Background()
	b := newBatch(t, 1)

	_, err := b.coordinator.Run(ctx, "acme-childcare", march(), []compliance.EmployeeInput{eveningAtOrdinary()})
	require.NoError(t, err)

	corrected := eveningAtOrdinary()
	corrected.Paid = []compliance.PaidLine{{Component: "evening-penalty", Amount: dec("78.38"), IncludesLoading: true}}
	run, err := b.coordinator.Run(ctx, "acme-childcare", march(), []compliance.EmployeeInput{corrected})
	require.NoError(t, err)

	assert.Equal(t, 0, run.Stats().Skipped)
	assert.Equal(t, 1, run.Stats().ByClass[compliance.ClassOK])

	latest, err := b.store.LatestResult(ctx, "E-1001", "2025-03-F1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, compliance.ClassOK, latest.Result.Classification)
}

func TestCoordinator_Run_RerunRescoresTheOpenCase(t *testing.T) {
	// GIVEN: An uncertain result whose reviewer asked for more data
	// WHEN: Rerunning with extra evidence that is still uncertain
	// THEN: The same case is rescored instead of a second one being opened

	ctx := context.Background()
	b := newBatch(t, 1)

	_, err := b.coordinator.Run(ctx, "acme-childcare", march(), []compliance.EmployeeInput{sundayLowConfidence()})
	require.NoError(t, err)
	cases, err := b.reviews.List(ctx, compliance.StatusPending)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	caseID := cases[0].Case.ID
	_, err = b.reviews.Decide(ctx, caseID, compliance.ActionRequestMoreData, "sam", "need the roster")
	require.NoError(t, err)

	more := sundayLowConfidence()
	more.Evidence = []compliance.EvidenceRef{"roster-0316.pdf#p1"}
	run, err := b.coordinator.Run(ctx, "acme-childcare", march(), []compliance.EmployeeInput{more})
	require.NoError(t, err)
	require.Len(t, run.Outcomes(), 1)
	rerun := run.Outcomes()[0].Result
	require.NotNil(t, rerun)
	assert.Equal(t, compliance.ClassNeedsReview, rerun.Classification)

	all, err := b.reviews.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, caseID, got.Case.ID)
	assert.Equal(t, compliance.StatusPending, got.Status)
	assert.Equal(t, rerun.Key(), got.CurrentResult)
	last := got.Decisions[len(got.Decisions)-1]
	assert.Equal(t, compliance.ActionRescore, last.Action)
}

func TestCoordinator_Run_RerunClosesCaseThatNoLongerNeedsReview(t *testing.T) {
	// GIVEN: An open case for an uncertain result
	// WHEN: Rerunning with a clean extraction that shows an underpayment
	// THEN: The case is closed by the rescore and no new case is opened

	ctx := context.Background()
	b := newBatch(t, 1)

	_, err := b.coordinator.Run(ctx, "acme-childcare", march(), []compliance.EmployeeInput{sundayLowConfidence()})
	require.NoError(t, err)

	clean := sundayLowConfidence()
	clean.Flags = nil
	run, err := b.coordinator.Run(ctx, "acme-childcare", march(), []compliance.EmployeeInput{clean})
	require.NoError(t, err)
	rerun := run.Outcomes()[0].Result
	require.NotNil(t, rerun)
	require.NotEqual(t, compliance.ClassNeedsReview, rerun.Classification)

	all, err := b.reviews.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, compliance.StatusClosed, all[0].Status)
	assert.Equal(t, rerun.Key(), all[0].CurrentResult)

	open, found, err := b.reviews.OpenCaseFor(ctx, "E-1003", "2025-03-F1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, open.Case.ID)
}

func TestCoordinator_Run_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := newBatch(t, 2)

	run, err := b.coordinator.Run(ctx, "acme-childcare", march(), mixedInputs())
	require.NoError(t, err)

	assert.True(t, run.Cancelled)
	assert.Empty(t, run.Outcomes())
	assert.Equal(t, []compliance.EmployeeID{"E-1001", "E-1002", "E-1003"}, run.NotRun)
	assert.Equal(t, 3, run.Stats().NotRun)
}

func TestCoordinator_Run_CancelledMidRun(t *testing.T) {
	// GIVEN: One worker and a context cancelled once the first result is saved
	// WHEN: Running three employees
	// THEN: The first outcome is kept and persisted; the rest are listed as not run

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := &cancellingStore{Memory: store.NewMemory(), cancel: cancel}
	coordinator := compliance.NewCoordinator(newEngine(t), mem, nil, 1, nil)

	run, err := coordinator.Run(ctx, "acme-childcare", march(), mixedInputs())
	require.NoError(t, err)

	assert.True(t, run.Cancelled)
	require.Len(t, run.Outcomes(), 1)
	assert.Equal(t, compliance.EmployeeID("E-1001"), run.Outcomes()[0].EmployeeID)
	assert.Equal(t, []compliance.EmployeeID{"E-1002", "E-1003"}, run.NotRun)

	exists, err := mem.ResultExists(context.Background(), run.Outcomes()[0].Result.Key())
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = mem.GetRun(context.Background(), run.ID)
	assert.NoError(t, err, "a cancelled run is still saved")
}

func TestCoordinator_Run_InvalidPeriod(t *testing.T) {
	b := newBatch(t, 1)
	period := march()
	period.End = period.Start.AddDays(-1)

	_, err := b.coordinator.Run(context.Background(), "acme-childcare", period, mixedInputs())
	assert.True(t, errors.Is(err, compliance.ErrInvalidPeriod))
}

func TestCoordinator_Run_DryRun(t *testing.T) {
	coordinator := compliance.NewCoordinator(newEngine(t), nil, nil, 0, nil)

	run, err := coordinator.Run(context.Background(), "acme-childcare", march(), mixedInputs())
	require.NoError(t, err)
	assert.Len(t, run.Outcomes(), 3)
	assert.Equal(t, 0, run.Stats().Skipped)
}
