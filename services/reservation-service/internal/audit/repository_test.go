package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingQuerier struct {
	sql  string
	args []any
	err  error
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.sql = sql
	q.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), q.err
}

func (q *recordingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (q *recordingQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestRecordWritesThroughQuerier(t *testing.T) {
	q := &recordingQuerier{}
	repo := NewRepository(nil)

	err := repo.Record(context.Background(), q, Entry{
		EventType: ActionReservationCancelled,
		ActorID:   "user-1",
		EntityID:  "res-1",
		Metadata:  map[string]any{"reason": "owner stay"},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(q.args) != 4 || q.args[0] != ActionReservationCancelled || q.args[1] != "user-1" || q.args[2] != "res-1" {
		t.Fatalf("unexpected args %v", q.args)
	}
	var meta map[string]string
	if err := json.Unmarshal(q.args[3].([]byte), &meta); err != nil || meta["reason"] != "owner stay" {
		t.Fatalf("unexpected metadata %s (%v)", q.args[3], err)
	}
}

func TestRecordDefaultsMetadataToEmptyObject(t *testing.T) {
	q := &recordingQuerier{}
	if err := NewRepository(nil).Record(context.Background(), q, Entry{EventType: ActionReservationImport}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if string(q.args[3].([]byte)) != "{}" {
		t.Fatalf("expected {}, got %s", q.args[3])
	}
}

func TestRecordPropagatesErrors(t *testing.T) {
	q := &recordingQuerier{err: errors.New("tx aborted")}
	if err := NewRepository(nil).Record(context.Background(), q, Entry{EventType: ActionReservationCreated}); err == nil {
		t.Fatal("expected error")
	}
}
