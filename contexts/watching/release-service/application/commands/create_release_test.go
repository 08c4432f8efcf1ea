package commands_test

import (
	"context"
	"errors"
	"testing"

	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/release-service/adapters/memory"
	"cratewatch/contexts/watching/release-service/application/commands"
	"cratewatch/contexts/watching/release-service/domain/entities"
	domainerrors "cratewatch/contexts/watching/release-service/domain/errors"
)

type captureRecorder struct {
	records []notifports.EventRecord
}

func (r *captureRecorder) Record(_ context.Context, record notifports.EventRecord) (notifentities.Event, bool, error) {
	r.records = append(r.records, record)
	return notifentities.Event{}, true, nil
}

func newCreate(store *memory.Store, recorder *captureRecorder) commands.CreateReleaseUseCase {
	return commands.CreateReleaseUseCase{
		Releases:    store,
		Events:      recorder,
		Clock:       store,
		IDGenerator: store,
	}
}

func validCommand() commands.CreateReleaseCommand {
	return commands.CreateReleaseCommand{
		UserID:           "user-1",
		DiscogsReleaseID: 2450123,
		DiscogsMasterID:  9800,
		MatchMode:        entities.MatchModeExactRelease,
		Title:            "Music Has the Right to Children",
		Artist:           "Boards of Canada",
		Year:             1998,
	}
}

func TestCreateReleaseDefaultsAndEvent(t *testing.T) {
	store := memory.NewStore()
	recorder := &captureRecorder{}

	release, err := newCreate(store, recorder).Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !release.IsActive {
		t.Fatal("new releases start active")
	}
	if release.Currency != "USD" {
		t.Fatalf("currency defaults to USD, got %q", release.Currency)
	}
	if release.ImportedFromWantlist || release.ImportedFromCollection {
		t.Fatal("manual creation must not set import flags")
	}

	if len(recorder.records) != 1 {
		t.Fatalf("expected one event, got %d", len(recorder.records))
	}
	record := recorder.records[0]
	if record.Type != notifentities.EventWatchReleaseCreated || record.WatchReleaseID != release.WatchReleaseID {
		t.Fatalf("unexpected event: %+v", record)
	}
}

func TestCreateReleaseValidation(t *testing.T) {
	store := memory.NewStore()
	create := newCreate(store, &captureRecorder{})

	cases := []struct {
		name    string
		mutate  func(*commands.CreateReleaseCommand)
		wantErr error
	}{
		{"bad match mode", func(c *commands.CreateReleaseCommand) { c.MatchMode = "fuzzy" }, domainerrors.ErrInvalidMatchMode},
		{"missing release id", func(c *commands.CreateReleaseCommand) { c.DiscogsReleaseID = 0 }, domainerrors.ErrMissingReleaseID},
		{"master mode without master id", func(c *commands.CreateReleaseCommand) {
			c.MatchMode = entities.MatchModeMasterRelease
			c.DiscogsMasterID = 0
		}, domainerrors.ErrMissingMasterID},
		{"blank title", func(c *commands.CreateReleaseCommand) { c.Title = "   " }, domainerrors.ErrInvalidTitle},
		{"negative target price", func(c *commands.CreateReleaseCommand) { negative := -5.0; c.TargetPrice = &negative }, domainerrors.ErrNegativeTargetPrice},
	}
	for _, tc := range cases {
		cmd := validCommand()
		tc.mutate(&cmd)
		if _, err := create.Execute(context.Background(), cmd); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestCreateReleasePartialUniqueness(t *testing.T) {
	store := memory.NewStore()
	create := newCreate(store, &captureRecorder{})

	if _, err := create.Execute(context.Background(), validCommand()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := create.Execute(context.Background(), validCommand()); !errors.Is(err, domainerrors.ErrDuplicateRelease) {
		t.Fatalf("same release id in exact mode must be rejected, got %v", err)
	}

	// The same master id in master mode is a separate uniqueness scope.
	master := validCommand()
	master.MatchMode = entities.MatchModeMasterRelease
	if _, err := create.Execute(context.Background(), master); err != nil {
		t.Fatalf("master mode row should not collide with the exact row: %v", err)
	}
	if _, err := create.Execute(context.Background(), master); !errors.Is(err, domainerrors.ErrDuplicateRelease) {
		t.Fatalf("duplicate master row must be rejected, got %v", err)
	}
}

func TestSetReleaseActiveEmitsLifecycleEvents(t *testing.T) {
	store := memory.NewStore()
	recorder := &captureRecorder{}

	release, err := newCreate(store, recorder).Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	setActive := commands.SetReleaseActiveUseCase{Releases: store, Events: recorder, Clock: store}
	disabled, err := setActive.Execute(context.Background(), "user-1", release.WatchReleaseID, false)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if disabled.IsActive {
		t.Fatal("release should be inactive")
	}

	// Setting the same state again must not emit another event.
	if _, err := setActive.Execute(context.Background(), "user-1", release.WatchReleaseID, false); err != nil {
		t.Fatalf("repeat disable: %v", err)
	}

	if _, err := setActive.Execute(context.Background(), "user-1", release.WatchReleaseID, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	want := []notifentities.EventType{
		notifentities.EventWatchReleaseCreated,
		notifentities.EventWatchReleaseDisabled,
		notifentities.EventWatchReleaseEnabled,
	}
	if len(recorder.records) != len(want) {
		t.Fatalf("unexpected events: %+v", recorder.records)
	}
	for i := range want {
		if recorder.records[i].Type != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, recorder.records[i].Type, want[i])
		}
	}
}

func TestUpdateReleaseIsUserScoped(t *testing.T) {
	store := memory.NewStore()
	release, err := newCreate(store, &captureRecorder{}).Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	update := commands.UpdateReleaseUseCase{Releases: store, Clock: store}
	title := "renamed"
	_, err = update.Execute(context.Background(), commands.UpdateReleaseCommand{
		UserID:         "user-2",
		WatchReleaseID: release.WatchReleaseID,
		Title:          &title,
	})
	if !errors.Is(err, domainerrors.ErrReleaseNotFound) {
		t.Fatalf("cross-user update must be not found, got %v", err)
	}
}
