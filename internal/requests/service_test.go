package requests

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/upkeep-hq/upkeep/internal/actors"
	"github.com/upkeep-hq/upkeep/internal/audit"
	"github.com/upkeep-hq/upkeep/internal/lifecycle"
	"github.com/upkeep-hq/upkeep/internal/notify"
)

type memoryRepo struct {
	requests map[uuid.UUID]*Request
	failNext bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{requests: map[uuid.UUID]*Request{}}
}

func (r *memoryRepo) Create(_ context.Context, req Request) (*Request, error) {
	stored := req
	r.requests[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (*Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *memoryRepo) Update(_ context.Context, req Request) (*Request, error) {
	if r.failNext {
		r.failNext = false
		return nil, context.DeadlineExceeded
	}
	if _, ok := r.requests[req.ID]; !ok {
		return nil, ErrNotFound
	}
	stored := req
	r.requests[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *memoryRepo) List(_ context.Context, _ ListFilter) ([]Request, error) {
	var out []Request
	for _, req := range r.requests {
		out = append(out, *req)
	}
	return out, nil
}

type stubGate struct {
	active map[int64]bool
}

func (g *stubGate) IsActive(_ context.Context, actorID int64) (bool, error) {
	return g.active[actorID], nil
}

type memorySink struct {
	entries []audit.Entry
}

func (s *memorySink) Record(_ context.Context, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

type memoryNotifier struct {
	sent []notify.Notification
}

func (n *memoryNotifier) Dispatch(_ context.Context, notification notify.Notification) error {
	n.sent = append(n.sent, notification)
	return nil
}

type fixture struct {
	repo     *memoryRepo
	gate     *stubGate
	sink     *memorySink
	notifier *memoryNotifier
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemoryRepo(),
		gate:     &stubGate{active: map[int64]bool{}},
		sink:     &memorySink{},
		notifier: &memoryNotifier{},
	}
	f.svc = NewService(f.repo, f.gate, f.sink, f.notifier, slog.Default())
	return f
}

func authFor(id int64, roles []actors.Role, active actors.Role) actors.AuthContext {
	return actors.AuthContext{
		ActorID: id,
		Roles:   actors.NewRoleSet(roles, active),
		Status:  actors.StatusApproved,
	}
}

func applicant(id int64) actors.AuthContext {
	return authFor(id, []actors.Role{actors.RoleApplicant}, actors.RoleApplicant)
}

func executor(id int64) actors.AuthContext {
	return authFor(id, []actors.Role{actors.RoleApplicant, actors.RoleExecutor}, actors.RoleExecutor)
}

func manager(id int64) actors.AuthContext {
	return authFor(id, []actors.Role{actors.RoleApplicant, actors.RoleManager}, actors.RoleManager)
}

func validInput() CreateInput {
	return CreateInput{
		Category:    CategoryPlumbing,
		AddressRef:  "Building 4, apartment 12",
		Description: "Kitchen sink is leaking under the cabinet",
		Urgency:     UrgencyHigh,
	}
}

func (f *fixture) mustCreate(t *testing.T, auth actors.AuthContext) *Request {
	t.Helper()
	req, err := f.svc.Create(context.Background(), auth, validInput())
	require.NoError(t, err)
	return req
}

func TestCreateStartsInNew(t *testing.T) {
	f := newFixture()

	req := f.mustCreate(t, applicant(1))
	require.Equal(t, StatusNew, req.Status)
	require.Equal(t, int64(1), req.SubmitterID)
	require.Nil(t, req.ExecutorID)
	require.Nil(t, req.CompletedAt)

	require.Len(t, f.sink.entries, 1)
	require.Equal(t, audit.ActionRequestCreate, f.sink.entries[0].Action)
	require.Len(t, f.notifier.sent, 1)
	require.Equal(t, notify.TemplateRequestCreated, f.notifier.sent[0].Template)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	bad := validInput()
	bad.Category = "GARDENING"
	_, err := f.svc.Create(ctx, applicant(1), bad)
	require.Equal(t, lifecycle.CodeValidation, lifecycle.CodeOf(err))

	bad = validInput()
	bad.Urgency = "WHENEVER"
	_, err = f.svc.Create(ctx, applicant(1), bad)
	require.Equal(t, lifecycle.CodeValidation, lifecycle.CodeOf(err))

	bad = validInput()
	bad.Description = "too short"
	_, err = f.svc.Create(ctx, applicant(1), bad)
	require.Equal(t, lifecycle.CodeValidation, lifecycle.CodeOf(err))

	// Characters, not bytes: nine Cyrillic characters exceed ten bytes but
	// still fail the minimum length.
	bad = validInput()
	bad.Description = "кран течь"
	_, err = f.svc.Create(ctx, applicant(1), bad)
	require.Equal(t, lifecycle.CodeValidation, lifecycle.CodeOf(err))

	bad = validInput()
	bad.AddressRef = "   "
	_, err = f.svc.Create(ctx, applicant(1), bad)
	require.Equal(t, lifecycle.CodeValidation, lifecycle.CodeOf(err))

	// The address minimum matches the description minimum; a short but
	// non-empty address is still rejected.
	bad = validInput()
	bad.AddressRef = "Bldg 6"
	_, err = f.svc.Create(ctx, applicant(1), bad)
	require.Equal(t, lifecycle.CodeValidation, lifecycle.CodeOf(err))
}

func TestCreateRejectsBlockedActor(t *testing.T) {
	f := newFixture()
	blocked := applicant(1)
	blocked.Status = actors.StatusBlocked

	_, err := f.svc.Create(context.Background(), blocked, validInput())
	require.Equal(t, lifecycle.CodeActorBlocked, lifecycle.CodeOf(err))
}

func TestTransitionUnknownRequest(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Transition(context.Background(), manager(1), uuid.New(), StatusAccepted, "")
	require.Equal(t, lifecycle.CodeNotFound, lifecycle.CodeOf(err))
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	f := newFixture()
	req := f.mustCreate(t, applicant(1))

	_, err := f.svc.Transition(context.Background(), manager(2), req.ID, StatusConfirmed, "")
	require.Equal(t, lifecycle.CodeInvalidTransition, lifecycle.CodeOf(err))
}

func TestTerminalStatusesAreDeadEnds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.mustCreate(t, applicant(1))

	_, err := f.svc.Transition(ctx, manager(2), req.ID, StatusCancelled, "out of scope")
	require.NoError(t, err)

	for _, target := range []Status{StatusNew, StatusAccepted, StatusInProgress, StatusDone} {
		_, err := f.svc.Transition(ctx, manager(2), req.ID, target, "")
		require.Equal(t, lifecycle.CodeInvalidTransition, lifecycle.CodeOf(err), "cancelled -> %s", target)
	}
}

func TestSeparationOfDuties(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// The submitter also holds manager rights, but still may not work their
	// own request.
	dual := authFor(1, []actors.Role{actors.RoleApplicant, actors.RoleManager}, actors.RoleManager)
	req := f.mustCreate(t, dual)

	for _, target := range []Status{StatusAccepted, StatusInProgress} {
		_, err := f.svc.Transition(ctx, dual, req.ID, target, "")
		require.Equal(t, lifecycle.CodeForbidden, lifecycle.CodeOf(err), "own request -> %s", target)
	}

	// The same manager moves someone else's request freely.
	other := f.mustCreate(t, applicant(2))
	_, err := f.svc.Transition(ctx, dual, other.ID, StatusAccepted, "")
	require.NoError(t, err)
}

func TestSeparationOfDutiesCoversAnnotation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	dual := authFor(1, []actors.Role{actors.RoleApplicant, actors.RoleManager}, actors.RoleManager)
	req := f.mustCreate(t, dual)

	_, err := f.svc.Transition(ctx, manager(2), req.ID, StatusAccepted, "")
	require.NoError(t, err)

	// Re-asserting ACCEPTED on their own request is still a working status.
	_, err = f.svc.Transition(ctx, dual, req.ID, StatusAccepted, "note")
	require.Equal(t, lifecycle.CodeForbidden, lifecycle.CodeOf(err))
}

func TestAnnotationPathAppendsNotes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.mustCreate(t, applicant(1))

	updated, err := f.svc.Transition(ctx, manager(2), req.ID, StatusNew, "awaiting parts quote")
	require.NoError(t, err)
	require.Equal(t, StatusNew, updated.Status)
	require.Contains(t, updated.Notes, "awaiting parts quote")

	// A second note appends rather than replaces.
	updated, err = f.svc.Transition(ctx, manager(2), req.ID, StatusNew, "quote received")
	require.NoError(t, err)
	require.Contains(t, updated.Notes, "awaiting parts quote")
	require.Contains(t, updated.Notes, "quote received")
	require.Equal(t, 2, len(strings.Split(updated.Notes, "\n")))

	last := f.sink.entries[len(f.sink.entries)-1]
	require.Equal(t, audit.ActionRequestAnnotate, last.Action)
}

func TestAnnotationWithEmptyNotesIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.mustCreate(t, applicant(1))
	before := len(f.sink.entries)

	updated, err := f.svc.Transition(ctx, manager(2), req.ID, StatusNew, "   ")
	require.NoError(t, err)
	require.Equal(t, "", updated.Notes)
	require.Len(t, f.sink.entries, before)
}

func TestExecutorRequiresActiveShift(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.mustCreate(t, applicant(1))

	_, err := f.svc.Transition(ctx, executor(5), req.ID, StatusInProgress, "")
	require.Equal(t, lifecycle.CodeNotInShift, lifecycle.CodeOf(err))

	f.gate.active[5] = true
	updated, err := f.svc.Transition(ctx, executor(5), req.ID, StatusInProgress, "")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, updated.Status)
}

func TestExecutorCannotAcceptOrCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.gate.active[5] = true
	req := f.mustCreate(t, applicant(1))

	for _, target := range []Status{StatusAccepted, StatusCancelled} {
		_, err := f.svc.Transition(ctx, executor(5), req.ID, target, "")
		require.Equal(t, lifecycle.CodeForbidden, lifecycle.CodeOf(err), "executor -> %s", target)
	}
}

func TestManagerBypassesShiftGate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.mustCreate(t, applicant(1))

	updated, err := f.svc.Transition(ctx, manager(9), req.ID, StatusInProgress, "")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, updated.Status)
}

func TestExecutorAutoAssignedOnFirstInProgress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.gate.active[5] = true
	req := f.mustCreate(t, applicant(1))

	updated, err := f.svc.Transition(ctx, executor(5), req.ID, StatusInProgress, "")
	require.NoError(t, err)
	require.NotNil(t, updated.ExecutorID)
	require.Equal(t, int64(5), *updated.ExecutorID)

	// A different executor re-entering IN_PROGRESS does not steal the
	// assignment.
	f.gate.active[6] = true
	_, err = f.svc.Transition(ctx, executor(6), req.ID, StatusClarification, "")
	require.NoError(t, err)
	updated, err = f.svc.Transition(ctx, executor(6), req.ID, StatusInProgress, "")
	require.NoError(t, err)
	require.Equal(t, int64(5), *updated.ExecutorID)
}

func TestDoneStampsCompletedAt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.gate.active[5] = true
	req := f.mustCreate(t, applicant(1))

	_, err := f.svc.Transition(ctx, executor(5), req.ID, StatusInProgress, "")
	require.NoError(t, err)
	updated, err := f.svc.Transition(ctx, executor(5), req.ID, StatusDone, "fixed")
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
}

func TestSubmitterConfirmsOwnDoneRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.gate.active[5] = true
	req := f.mustCreate(t, applicant(1))

	_, err := f.svc.Transition(ctx, executor(5), req.ID, StatusInProgress, "")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, executor(5), req.ID, StatusDone, "")
	require.NoError(t, err)

	// Another applicant may not confirm.
	_, err = f.svc.Transition(ctx, applicant(3), req.ID, StatusConfirmed, "")
	require.Equal(t, lifecycle.CodeForbidden, lifecycle.CodeOf(err))

	updated, err := f.svc.Transition(ctx, applicant(1), req.ID, StatusConfirmed, "thanks")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, updated.Status)
}

func TestSubmitterCancelsOwnNewRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.mustCreate(t, applicant(1))

	updated, err := f.svc.Transition(ctx, applicant(1), req.ID, StatusCancelled, "solved itself")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, updated.Status)
}

func TestApplicantCannotCancelAfterAccept(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.mustCreate(t, applicant(1))

	_, err := f.svc.Transition(ctx, manager(2), req.ID, StatusAccepted, "")
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, applicant(1), req.ID, StatusCancelled, "")
	require.Equal(t, lifecycle.CodeForbidden, lifecycle.CodeOf(err))
}

func TestStorageFailureSurfacesAsStorageError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.mustCreate(t, applicant(1))

	f.repo.failNext = true
	_, err := f.svc.Transition(ctx, manager(2), req.ID, StatusAccepted, "")
	require.Equal(t, lifecycle.CodeStorage, lifecycle.CodeOf(err))

	// The request is unchanged after the failed write.
	current, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusNew, current.Status)
}

func TestTransitionNotifiesSubmitterAndExecutor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.gate.active[5] = true
	req := f.mustCreate(t, applicant(1))

	_, err := f.svc.Transition(ctx, executor(5), req.ID, StatusInProgress, "")
	require.NoError(t, err)

	last := f.notifier.sent[len(f.notifier.sent)-1]
	require.Equal(t, notify.TemplateRequestTransition, last.Template)
	require.Contains(t, last.Recipients, int64(1))
	require.Contains(t, last.Recipients, int64(5))
	require.True(t, last.Ops)
}

func TestAuditRecordsTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.mustCreate(t, applicant(1))

	_, err := f.svc.Transition(ctx, manager(2), req.ID, StatusAccepted, "scheduling")
	require.NoError(t, err)

	last := f.sink.entries[len(f.sink.entries)-1]
	require.Equal(t, audit.ActionRequestTransition, last.Action)
	require.Equal(t, int64(2), last.ActorID)
	require.Equal(t, "NEW", last.Details["from"])
	require.Equal(t, "ACCEPTED", last.Details["to"])
}
