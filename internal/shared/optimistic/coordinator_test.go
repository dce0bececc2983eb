package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripDeskWs/internal/shared/normalization"
)

type notification struct {
	severity Severity
	message  string
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []notification
}

func (n *recordingNotifier) Notify(_ context.Context, severity Severity, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notification{severity: severity, message: message})
}

func (n *recordingNotifier) bySeverity(severity Severity) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, item := range n.items {
		if item.severity == severity {
			out = append(out, item)
		}
	}
	return out
}

func usersCollection() *Collection {
	c := NewCollection()
	c.Replace([]normalization.Record{
		{"id": float64(1), "blocked": false, "name": "Ana", "email": "ana@example.com"},
		{"id": float64(2), "blocked": false, "name": "Ben", "email": "ben@example.com"},
	})
	return c
}

func TestCoordinatorApply_RollsBackOnTransportError(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	users := usersCollection()

	var seenDuringCall normalization.Record
	outcome := coordinator.Apply(context.Background(), users, Mutation{
		EntityID: "1",
		Patch:    map[string]any{"blocked": true},
		Call: func(context.Context) (any, error) {
			seenDuringCall, _ = users.Find("1")
			return nil, errors.New("connection refused")
		},
	})

	assert.Equal(t, OutcomeRolledBack, outcome.Status)
	assert.Equal(t, true, seenDuringCall["blocked"], "patch must be visible before the call resolves")

	record, ok := users.Find("1")
	require.True(t, ok)
	assert.Equal(t, false, record["blocked"])
	assert.Len(t, notifier.bySeverity(SeverityError), 1)
	assert.NotEmpty(t, outcome.MutationID)
}

func TestCoordinatorApply_EnvelopeFailureIsRolledBack(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	users := usersCollection()

	outcome := coordinator.Apply(context.Background(), users, Mutation{
		EntityID: "2",
		Patch:    map[string]any{"blocked": true},
		Call: func(context.Context) (any, error) {
			return map[string]any{"Success": false, "Message": "User has active bookings"}, nil
		},
	})

	require.Equal(t, OutcomeRolledBack, outcome.Status)
	var appErr *ApplicationError
	require.ErrorAs(t, outcome.Err, &appErr)

	record, _ := users.Find("2")
	assert.Equal(t, false, record["blocked"])
	errs := notifier.bySeverity(SeverityError)
	require.Len(t, errs, 1)
	assert.Equal(t, "User has active bookings", errs[0].message)
}

func TestCoordinatorApply_RollbackRestoresRewrittenID(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	users := NewCollection()
	users.Replace([]normalization.Record{{"id": "1", "blocked": false}})

	outcome := coordinator.Apply(context.Background(), users, Mutation{
		EntityID: "1",
		Patch:    map[string]any{"id": "99", "blocked": true},
		Call: func(context.Context) (any, error) {
			_, moved := users.Find("99")
			assert.True(t, moved)
			return nil, errors.New("connection refused")
		},
	})

	assert.Equal(t, OutcomeRolledBack, outcome.Status)
	assert.Equal(t, []normalization.Record{{"id": "1", "blocked": false}}, users.Snapshot())
	_, stale := users.Find("99")
	assert.False(t, stale)
	assert.Len(t, notifier.bySeverity(SeverityError), 1)
}

func TestCoordinatorApply_ReportsMissedRollback(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	users := usersCollection()

	outcome := coordinator.Apply(context.Background(), users, Mutation{
		EntityID: "1",
		Patch:    map[string]any{"blocked": true},
		Call: func(context.Context) (any, error) {
			users.Remove("1")
			return nil, errors.New("connection refused")
		},
	})

	assert.Equal(t, OutcomeRollbackMissed, outcome.Status)
	assert.Equal(t, "rollback_missed", outcome.Status.String())
	assert.Error(t, outcome.Err)
	assert.Equal(t, 1, users.Len())
	assert.Len(t, notifier.bySeverity(SeverityError), 1)
}

func TestCoordinatorApply_SuccessTouchesOnlyPatchedFields(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	users := usersCollection()
	before, _ := users.Find("1")

	outcome := coordinator.Apply(context.Background(), users, Mutation{
		EntityID:       "1",
		Patch:          map[string]any{"blocked": true},
		Call:           func(context.Context) (any, error) { return map[string]any{"Success": true}, nil },
		SuccessMessage: "User blocked",
	})

	require.Equal(t, OutcomeConfirmed, outcome.Status)
	after, _ := users.Find("1")
	assert.Equal(t, true, after["blocked"])
	assert.Equal(t, "Ana", after["name"])
	assert.Equal(t, "ana@example.com", after["email"])
	assert.Equal(t, false, before["blocked"], "earlier snapshots are never mutated")

	other, _ := users.Find("2")
	assert.Equal(t, false, other["blocked"])
	assert.Len(t, notifier.bySeverity(SeveritySuccess), 1)
	assert.Empty(t, notifier.bySeverity(SeverityError))
}

func TestCoordinatorApply_RollbackRemovesFieldsAddedByPatch(t *testing.T) {
	t.Parallel()

	coordinator := NewCoordinator(&recordingNotifier{}, nil)
	users := usersCollection()

	coordinator.Apply(context.Background(), users, Mutation{
		EntityID: "1",
		Patch:    map[string]any{"blockedReason": "fraud"},
		Call:     func(context.Context) (any, error) { return nil, errors.New("boom") },
	})

	record, _ := users.Find("1")
	_, present := record["blockedReason"]
	assert.False(t, present)
}

func TestCoordinatorApply_RefetchRunsAfterConfirmation(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	users := usersCollection()

	refetched := false
	outcome := coordinator.Apply(context.Background(), users, Mutation{
		EntityID: "1",
		Patch:    map[string]any{"blocked": true},
		Call:     func(context.Context) (any, error) { return nil, nil },
		Refetch: func(context.Context) error {
			refetched = true
			users.Replace([]normalization.Record{{"id": float64(1), "blocked": true, "blockedAt": "2026-10-14"}})
			return nil
		},
	})

	require.Equal(t, OutcomeConfirmed, outcome.Status)
	assert.True(t, refetched)
	record, _ := users.Find("1")
	assert.Equal(t, "2026-10-14", record["blockedAt"])
}

func TestCoordinatorApply_RefetchFailureWarns(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	users := usersCollection()

	outcome := coordinator.Apply(context.Background(), users, Mutation{
		EntityID: "1",
		Patch:    map[string]any{"blocked": true},
		Call:     func(context.Context) (any, error) { return nil, nil },
		Refetch:  func(context.Context) error { return errors.New("timeout") },
	})

	assert.Equal(t, OutcomeConfirmed, outcome.Status)
	assert.Len(t, notifier.bySeverity(SeverityWarning), 1)
	record, _ := users.Find("1")
	assert.Equal(t, true, record["blocked"])
}

func TestCoordinatorApply_DiscardsAfterUnmount(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	users := usersCollection()
	mounted := true

	outcome := coordinator.Apply(context.Background(), users, Mutation{
		EntityID: "1",
		Patch:    map[string]any{"blocked": true},
		Call: func(context.Context) (any, error) {
			mounted = false
			return nil, errors.New("late failure")
		},
		Alive: func() bool { return mounted },
	})

	assert.Equal(t, OutcomeDiscarded, outcome.Status)
	assert.Empty(t, notifier.bySeverity(SeverityError))
}

func TestCoordinatorApply_MissingEntity(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	called := false

	outcome := coordinator.Apply(context.Background(), usersCollection(), Mutation{
		EntityID: "99",
		Patch:    map[string]any{"blocked": true},
		Call: func(context.Context) (any, error) {
			called = true
			return nil, nil
		},
	})

	assert.Equal(t, OutcomeNotFound, outcome.Status)
	assert.ErrorIs(t, outcome.Err, ErrEntityNotFound)
	assert.False(t, called)
	assert.Len(t, notifier.bySeverity(SeverityError), 1)
}

func TestCoordinatorDelete_RemovesOnlyAfterConfirmation(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, nil)
	users := usersCollection()

	outcome := coordinator.Delete(context.Background(), users, Removal{
		EntityID: "2",
		Call: func(context.Context) (any, error) {
			_, stillThere := users.Find("2")
			assert.True(t, stillThere, "record must stay until the server confirms")
			return map[string]any{"success": true}, nil
		},
		SuccessMessage: "Deleted",
	})

	require.Equal(t, OutcomeConfirmed, outcome.Status)
	_, ok := users.Find("2")
	assert.False(t, ok)
	assert.Equal(t, 1, users.Len())
	assert.Len(t, notifier.bySeverity(SeveritySuccess), 1)
}

func TestCoordinatorDelete_FailureKeepsRecord(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(notifier, func(err error) string { return "custom: " + err.Error() })
	users := usersCollection()

	outcome := coordinator.Delete(context.Background(), users, Removal{
		EntityID: "1",
		Call:     func(context.Context) (any, error) { return nil, errors.New("409 conflict") },
	})

	assert.Equal(t, OutcomeRolledBack, outcome.Status)
	assert.Equal(t, 2, users.Len())
	errs := notifier.bySeverity(SeverityError)
	require.Len(t, errs, 1)
	assert.Equal(t, "custom: 409 conflict", errs[0].message)
}

func TestCoordinator_MissingCall(t *testing.T) {
	t.Parallel()

	coordinator := NewCoordinator(nil, nil)
	outcome := coordinator.Apply(context.Background(), usersCollection(), Mutation{EntityID: "1"})
	assert.ErrorIs(t, outcome.Err, ErrMissingCall)

	outcome = coordinator.Delete(context.Background(), usersCollection(), Removal{EntityID: "1"})
	assert.ErrorIs(t, outcome.Err, ErrMissingCall)
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SeverityError, ParseSeverity(" ERR "))
	assert.Equal(t, SeverityWarning, ParseSeverity("warn"))
	assert.Equal(t, SeveritySuccess, ParseSeverity("success"))
	assert.Equal(t, SeverityInfo, ParseSeverity("whatever"))
}
