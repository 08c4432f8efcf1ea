package commands_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cratewatch/contexts/integrations/import-service/adapters/memory"
	"cratewatch/contexts/integrations/import-service/application/commands"
	"cratewatch/contexts/integrations/import-service/domain/entities"
	gatewaycommands "cratewatch/contexts/integrations/provider-gateway/application/commands"
	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	releasememory "cratewatch/contexts/watching/release-service/adapters/memory"
	releasecommands "cratewatch/contexts/watching/release-service/application/commands"
)

const testToken = "discogs-secret-token"

type staticResolver struct {
	err error
}

func (r staticResolver) Execute(context.Context, string, string) (gatewaycommands.ResolvedToken, error) {
	if r.err != nil {
		return gatewaycommands.ResolvedToken{}, r.err
	}
	return gatewaycommands.ResolvedToken{
		Link:        gatewayports.AccountLink{LinkID: "link-1", ExternalUserID: "collector"},
		AccessToken: testToken,
	}, nil
}

// pagedListClient serves fixed pages and fails when told to.
type pagedListClient struct {
	wantlist   []gatewayports.ListPage
	collection []gatewayports.ListPage
	failWith   error
}

func (c pagedListClient) FetchWantlistPage(_ context.Context, _ string, _ string, page int) (gatewayports.ListPage, error) {
	if c.failWith != nil {
		return gatewayports.ListPage{}, c.failWith
	}
	return pageAt(c.wantlist, page), nil
}

func (c pagedListClient) FetchCollectionPage(_ context.Context, _ string, _ string, page int) (gatewayports.ListPage, error) {
	if c.failWith != nil {
		return gatewayports.ListPage{}, c.failWith
	}
	return pageAt(c.collection, page), nil
}

func pageAt(pages []gatewayports.ListPage, page int) gatewayports.ListPage {
	if page < 1 || page > len(pages) {
		return gatewayports.ListPage{Page: page, Pages: len(pages)}
	}
	return pages[page-1]
}

type fixture struct {
	jobs     *memory.Store
	releases *releasememory.Store
	recorder *captureRecorder
	execute  commands.ExecuteImportJobUseCase
}

func newFixture(t *testing.T, lists gatewayports.DiscogsListClient, resolver staticResolver) *fixture {
	t.Helper()
	jobs := memory.NewStore()
	releases := releasememory.NewStore()
	recorder := &captureRecorder{}
	return &fixture{
		jobs:     jobs,
		releases: releases,
		recorder: recorder,
		execute: commands.ExecuteImportJobUseCase{
			Jobs:   jobs,
			Tokens: resolver,
			Lists:  lists,
			Releases: releasecommands.UpsertFromImportUseCase{
				Releases:    releases,
				Clock:       releases,
				IDGenerator: releases,
			},
			Events: recorder,
			Clock:  jobs,
		},
	}
}

func (f *fixture) seedJob(t *testing.T, scope entities.ImportScope) entities.ImportJob {
	t.Helper()
	job := entities.ImportJob{
		JobID:     "job-1",
		UserID:    "user-1",
		Provider:  "discogs",
		Scope:     scope,
		Status:    entities.JobPending,
		CreatedAt: f.jobs.Now(),
		UpdatedAt: f.jobs.Now(),
	}
	if err := f.jobs.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func listPages() pagedListClient {
	return pagedListClient{
		wantlist: []gatewayports.ListPage{
			{
				Page: 1, Pages: 2,
				Releases: []gatewayports.ListRelease{
					{ReleaseID: 100, MasterID: 10, Title: "Music Has the Right to Children", Artist: "Boards of Canada", Year: 1998},
					{ReleaseID: 200, Title: "Geogaddi", Artist: "Boards of Canada", Year: 2002},
				},
			},
			{
				Page: 2, Pages: 2,
				Releases: []gatewayports.ListRelease{
					{ReleaseID: 300, Title: "Tomorrow's Harvest", Artist: "Boards of Canada", Year: 2013},
				},
			},
		},
		collection: []gatewayports.ListPage{
			{
				Page: 1, Pages: 1,
				Releases: []gatewayports.ListRelease{
					// Also in the wantlist pages, so this one becomes an update.
					{ReleaseID: 100, MasterID: 10, Title: "Music Has the Right to Children", Artist: "Boards of Canada", Year: 1998},
				},
			},
		},
	}
}

func TestExecuteImportJobWalksAllPagesAndUpserts(t *testing.T) {
	f := newFixture(t, listPages(), staticResolver{})
	f.seedJob(t, entities.ScopeBoth)

	job, err := f.execute.Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != entities.JobCompleted || job.CompletedAt == nil {
		t.Fatalf("job should complete: %+v", job)
	}
	if job.ProcessedCount != 4 || job.ImportedCount != 4 {
		t.Fatalf("expected 4 releases processed, got %+v", job)
	}
	if job.CreatedCount != 3 || job.UpdatedCount != 1 {
		t.Fatalf("expected 3 created and 1 updated, got %+v", job)
	}
	if job.AccountLinkID != "link-1" {
		t.Fatalf("job should record the account link, got %q", job.AccountLinkID)
	}

	// The overlapping release carries both import flags.
	overlap, found, err := f.releases.FindByDiscogsRelease(context.Background(), "user-1", 100)
	if err != nil || !found {
		t.Fatalf("overlap release missing: found=%v err=%v", found, err)
	}
	if !overlap.ImportedFromWantlist || !overlap.ImportedFromCollection {
		t.Fatalf("overlap release should carry both flags: %+v", overlap)
	}

	if len(f.recorder.records) != 1 || f.recorder.records[0].Type != notifentities.EventImportCompleted {
		t.Fatalf("expected one IMPORT_COMPLETED, got %+v", f.recorder.records)
	}
	payload := f.recorder.records[0].Payload
	if payload["processed"] != 4 || payload["created"] != 3 {
		t.Fatalf("completion payload missing counters: %+v", payload)
	}
}

func TestExecuteImportJobFailsWithRedactedError(t *testing.T) {
	lists := listPages()
	lists.failWith = errors.New("discogs list returned 401: bad token " + testToken)
	f := newFixture(t, lists, staticResolver{})
	f.seedJob(t, entities.ScopeWantlist)

	job, err := f.execute.Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != entities.JobFailed || job.ErrorCount != 1 || len(job.Errors) != 1 {
		t.Fatalf("job should fail with one recorded error: %+v", job)
	}
	if strings.Contains(job.Errors[0], testToken) {
		t.Fatalf("stored error must not leak the token: %q", job.Errors[0])
	}
	if !strings.Contains(job.Errors[0], "401") {
		t.Fatalf("stored error should keep the diagnostic context: %q", job.Errors[0])
	}

	if len(f.recorder.records) != 1 || f.recorder.records[0].Type != notifentities.EventImportFailed {
		t.Fatalf("expected one IMPORT_FAILED, got %+v", f.recorder.records)
	}
}

func TestExecuteImportJobFailsWhenTokenMissing(t *testing.T) {
	f := newFixture(t, listPages(), staticResolver{err: errors.New("provider access token missing")})
	f.seedJob(t, entities.ScopeWantlist)

	job, err := f.execute.Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != entities.JobFailed {
		t.Fatalf("missing token must fail the job: %+v", job)
	}
	if len(f.recorder.records) != 1 || f.recorder.records[0].Type != notifentities.EventImportFailed {
		t.Fatalf("expected IMPORT_FAILED, got %+v", f.recorder.records)
	}
}

func TestExecuteImportJobRefusesTerminalJobs(t *testing.T) {
	f := newFixture(t, listPages(), staticResolver{})
	job := f.seedJob(t, entities.ScopeWantlist)

	completedAt := f.jobs.Now()
	job.Status = entities.JobCompleted
	job.CompletedAt = &completedAt
	if err := f.jobs.UpdateJob(context.Background(), job); err != nil {
		t.Fatalf("complete job: %v", err)
	}

	if _, err := f.execute.Execute(context.Background(), "job-1"); err == nil {
		t.Fatal("terminal jobs must not run again")
	}
}
