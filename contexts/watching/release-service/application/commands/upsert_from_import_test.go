package commands_test

import (
	"context"
	"testing"

	"cratewatch/contexts/watching/release-service/adapters/memory"
	"cratewatch/contexts/watching/release-service/application/commands"
	"cratewatch/contexts/watching/release-service/domain/entities"
)

func newUpsert(store *memory.Store) commands.UpsertFromImportUseCase {
	return commands.UpsertFromImportUseCase{
		Releases:    store,
		Clock:       store,
		IDGenerator: store,
	}
}

func importedBoC() commands.ImportedRelease {
	return commands.ImportedRelease{
		DiscogsReleaseID: 2450123,
		DiscogsMasterID:  9800,
		Title:            "Music Has the Right to Children",
		Artist:           "Boards of Canada",
		Year:             1998,
	}
}

func TestUpsertCreatesFromWantlist(t *testing.T) {
	store := memory.NewStore()

	release, created, err := newUpsert(store).Execute(context.Background(), "user-1", commands.ImportSourceWantlist, importedBoC())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created {
		t.Fatal("fresh release must report created")
	}
	if release.MatchMode != entities.MatchModeExactRelease {
		t.Fatalf("imported rows track the exact release, got %s", release.MatchMode)
	}
	if !release.ImportedFromWantlist || release.ImportedFromCollection {
		t.Fatalf("only the wantlist flag should be set: %+v", release)
	}
	if !release.IsActive || release.Currency != "USD" {
		t.Fatalf("unexpected defaults: %+v", release)
	}
}

func TestUpsertFlagsAccumulateAcrossSources(t *testing.T) {
	store := memory.NewStore()
	upsert := newUpsert(store)

	first, _, err := upsert.Execute(context.Background(), "user-1", commands.ImportSourceWantlist, importedBoC())
	if err != nil {
		t.Fatalf("wantlist upsert: %v", err)
	}

	second, created, err := upsert.Execute(context.Background(), "user-1", commands.ImportSourceCollection, importedBoC())
	if err != nil {
		t.Fatalf("collection upsert: %v", err)
	}
	if created {
		t.Fatal("second upsert must update the existing row")
	}
	if second.WatchReleaseID != first.WatchReleaseID {
		t.Fatalf("upserts must converge on one row: %s vs %s", first.WatchReleaseID, second.WatchReleaseID)
	}
	if !second.ImportedFromWantlist || !second.ImportedFromCollection {
		t.Fatalf("flags are set-on-write and never cleared: %+v", second)
	}
}

func TestUpsertRefreshesDisplayFields(t *testing.T) {
	store := memory.NewStore()
	upsert := newUpsert(store)

	sparse := commands.ImportedRelease{DiscogsReleaseID: 2450123, Title: "Music Has The Right To Children"}
	if _, _, err := upsert.Execute(context.Background(), "user-1", commands.ImportSourceWantlist, sparse); err != nil {
		t.Fatalf("sparse upsert: %v", err)
	}

	release, created, err := upsert.Execute(context.Background(), "user-1", commands.ImportSourceWantlist, importedBoC())
	if err != nil {
		t.Fatalf("full upsert: %v", err)
	}
	if created {
		t.Fatal("second upsert must be an update")
	}
	if release.Artist != "Boards of Canada" || release.Year != 1998 || release.DiscogsMasterID != 9800 {
		t.Fatalf("display fields not refreshed: %+v", release)
	}

	// A later sparse page must not blank out the richer fields.
	release, _, err = upsert.Execute(context.Background(), "user-1", commands.ImportSourceWantlist, sparse)
	if err != nil {
		t.Fatalf("sparse re-upsert: %v", err)
	}
	if release.Artist != "Boards of Canada" || release.Year != 1998 {
		t.Fatalf("sparse payload clobbered cached fields: %+v", release)
	}
}

func TestUpsertIsUserScoped(t *testing.T) {
	store := memory.NewStore()
	upsert := newUpsert(store)

	first, _, err := upsert.Execute(context.Background(), "user-1", commands.ImportSourceWantlist, importedBoC())
	if err != nil {
		t.Fatalf("user-1 upsert: %v", err)
	}
	second, created, err := upsert.Execute(context.Background(), "user-2", commands.ImportSourceWantlist, importedBoC())
	if err != nil {
		t.Fatalf("user-2 upsert: %v", err)
	}
	if !created || second.WatchReleaseID == first.WatchReleaseID {
		t.Fatalf("each user gets their own row: %+v vs %+v", first, second)
	}
}
