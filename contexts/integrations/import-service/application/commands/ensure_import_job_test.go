package commands_test

import (
	"context"
	"testing"
	"time"

	"cratewatch/contexts/integrations/import-service/adapters/memory"
	"cratewatch/contexts/integrations/import-service/application/commands"
	"cratewatch/contexts/integrations/import-service/domain/entities"
	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
)

type captureRecorder struct {
	records []notifports.EventRecord
}

func (r *captureRecorder) Record(_ context.Context, record notifports.EventRecord) (notifentities.Event, bool, error) {
	r.records = append(r.records, record)
	return notifentities.Event{}, true, nil
}

func newEnsure(store *memory.Store, recorder *captureRecorder) commands.EnsureImportJobUseCase {
	return commands.EnsureImportJobUseCase{
		Jobs:        store,
		Events:      recorder,
		Clock:       store,
		IDGenerator: store,
	}
}

func TestEnsureImportJobSingleFlight(t *testing.T) {
	store := memory.NewStore()
	recorder := &captureRecorder{}
	ensure := newEnsure(store, recorder)

	cmd := commands.EnsureImportJobCommand{UserID: "user-1", Scope: entities.ScopeBoth}

	first, created, err := ensure.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if !created || first.Status != entities.JobPending {
		t.Fatalf("first call must insert a pending job: created=%v job=%+v", created, first)
	}
	if first.Provider != "discogs" {
		t.Fatalf("provider defaults to discogs, got %q", first.Provider)
	}

	second, created, err := ensure.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if created || second.JobID != first.JobID {
		t.Fatalf("second call must return the in-flight job: created=%v id=%s want=%s", created, second.JobID, first.JobID)
	}

	if len(recorder.records) != 1 || recorder.records[0].Type != notifentities.EventImportStarted {
		t.Fatalf("exactly one IMPORT_STARTED expected, got %+v", recorder.records)
	}
}

func TestEnsureImportJobScopesAreIndependent(t *testing.T) {
	store := memory.NewStore()
	ensure := newEnsure(store, &captureRecorder{})

	wantlist, created, err := ensure.Execute(context.Background(), commands.EnsureImportJobCommand{UserID: "user-1", Scope: entities.ScopeWantlist})
	if err != nil || !created {
		t.Fatalf("wantlist ensure: created=%v err=%v", created, err)
	}
	collection, created, err := ensure.Execute(context.Background(), commands.EnsureImportJobCommand{UserID: "user-1", Scope: entities.ScopeCollection})
	if err != nil || !created {
		t.Fatalf("collection ensure: created=%v err=%v", created, err)
	}
	if wantlist.JobID == collection.JobID {
		t.Fatal("different scopes must get separate jobs")
	}
}

func TestEnsureImportJobCooldownReturnsRecentCompletedJob(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	ensure := newEnsure(store, &captureRecorder{})

	cmd := commands.EnsureImportJobCommand{UserID: "user-1", Scope: entities.ScopeWantlist, CooldownSeconds: 3600}

	job, _, err := ensure.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	completedAt := store.Now()
	job.Status = entities.JobCompleted
	job.CompletedAt = &completedAt
	if err := store.UpdateJob(context.Background(), job); err != nil {
		t.Fatalf("complete job: %v", err)
	}

	store.SetNow(completedAt.Add(30 * time.Minute))
	inside, created, err := ensure.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("ensure inside cooldown: %v", err)
	}
	if created || inside.JobID != job.JobID {
		t.Fatalf("cooldown must hand back the completed job: created=%v id=%s", created, inside.JobID)
	}

	store.SetNow(completedAt.Add(2 * time.Hour))
	outside, created, err := ensure.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("ensure outside cooldown: %v", err)
	}
	if !created || outside.JobID == job.JobID {
		t.Fatalf("past the cooldown a fresh job is due: created=%v id=%s", created, outside.JobID)
	}
}
