package audit

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCapture struct {
	sql  string
	args []any
}

func (c *execCapture) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.sql = sql
	c.args = args
	return pgconn.CommandTag{}, nil
}

func (c *execCapture) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not used")
}

func (c *execCapture) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not used")
}

func TestRecordRequiresActionAndSubject(t *testing.T) {
	r := &Recorder{db: &execCapture{}}
	ctx := context.Background()

	if err := r.Record(ctx, Entry{SubjectKind: SubjectRequest, SubjectID: "x"}); err == nil {
		t.Fatal("missing action must be rejected")
	}
	if err := r.Record(ctx, Entry{Action: ActionRequestCreate}); err == nil {
		t.Fatal("missing subject must be rejected")
	}
}

func TestRecordSerialisesDetails(t *testing.T) {
	capture := &execCapture{}
	r := &Recorder{db: capture}

	err := r.Record(context.Background(), Entry{
		ActorID:     4,
		Action:      ActionRequestTransition,
		SubjectKind: SubjectRequest,
		SubjectID:   "req-1",
		Details:     map[string]any{"from": "NEW", "to": "ACCEPTED"},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(capture.args) != 6 {
		t.Fatalf("expected 6 insert args, got %d", len(capture.args))
	}
	details, ok := capture.args[4].([]byte)
	if !ok {
		t.Fatalf("details arg is %T, want []byte", capture.args[4])
	}
	if string(details) == "" || string(details) == "null" {
		t.Fatalf("details not serialised: %q", details)
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{
		0:   50,
		-5:  50,
		10:  10,
		500: 200,
	}
	for in, want := range cases {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestNilRecorderRefusesWrites(t *testing.T) {
	var r *Recorder
	if err := r.Record(context.Background(), Entry{Action: ActionShiftStart, SubjectKind: SubjectShift, SubjectID: "s"}); err == nil {
		t.Fatal("nil recorder must error, not panic")
	}
}
