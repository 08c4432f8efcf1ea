package commands_test

import (
	"context"
	"errors"
	"testing"

	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/rule-service/adapters/memory"
	"cratewatch/contexts/watching/rule-service/application/commands"
	"cratewatch/contexts/watching/rule-service/domain/entities"
	domainerrors "cratewatch/contexts/watching/rule-service/domain/errors"
)

type captureRecorder struct {
	records []notifports.EventRecord
}

func (r *captureRecorder) Record(_ context.Context, record notifports.EventRecord) (notifentities.Event, bool, error) {
	r.records = append(r.records, record)
	return notifentities.Event{}, true, nil
}

func newCreate(store *memory.Store, recorder *captureRecorder) commands.CreateRuleUseCase {
	return commands.CreateRuleUseCase{
		Rules:       store,
		Events:      recorder,
		Clock:       store,
		IDGenerator: store,
	}
}

func validCommand() commands.CreateRuleCommand {
	return commands.CreateRuleCommand{
		UserID: "user-1",
		Name:   "primus vinyl",
		Query: entities.RuleQuery{
			Keywords: []string{"primus", "vinyl"},
			Sources:  []string{"Discogs", "discogs", "ebay"},
		},
		PollIntervalSeconds: 300,
	}
}

func TestCreateRuleNormalizesSources(t *testing.T) {
	store := memory.NewStore()
	recorder := &captureRecorder{}

	rule, err := newCreate(store, recorder).Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !rule.IsActive {
		t.Fatal("new rules start active")
	}
	if len(rule.Query.Sources) != 2 || rule.Query.Sources[0] != "discogs" || rule.Query.Sources[1] != "ebay" {
		t.Fatalf("sources should be deduped and lowercased: %v", rule.Query.Sources)
	}
	if rule.NextRunAt != nil {
		t.Fatal("next_run_at starts unset so the scheduler picks the rule up immediately")
	}

	if len(recorder.records) != 1 || recorder.records[0].Type != notifentities.EventRuleCreated {
		t.Fatalf("expected RULE_CREATED event, got %+v", recorder.records)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	store := memory.NewStore()
	create := newCreate(store, &captureRecorder{})

	cases := []struct {
		name    string
		mutate  func(*commands.CreateRuleCommand)
		wantErr error
	}{
		{"no sources", func(c *commands.CreateRuleCommand) { c.Query.Sources = nil }, domainerrors.ErrNoSources},
		{"unknown source", func(c *commands.CreateRuleCommand) { c.Query.Sources = []string{"bandcamp"} }, domainerrors.ErrUnknownSource},
		{"blank keywords", func(c *commands.CreateRuleCommand) { c.Query.Keywords = []string{"", "   "} }, domainerrors.ErrBlankKeywords},
		{"interval too short", func(c *commands.CreateRuleCommand) { c.PollIntervalSeconds = 29 }, domainerrors.ErrInvalidPollInterval},
		{"interval too long", func(c *commands.CreateRuleCommand) { c.PollIntervalSeconds = 86401 }, domainerrors.ErrInvalidPollInterval},
		{"blank name", func(c *commands.CreateRuleCommand) { c.Name = "  " }, domainerrors.ErrInvalidRuleName},
		{"negative max price", func(c *commands.CreateRuleCommand) { negative := -1.0; c.Query.MaxPrice = &negative }, domainerrors.ErrNegativeMaxPrice},
	}
	for _, tc := range cases {
		cmd := validCommand()
		tc.mutate(&cmd)
		if _, err := create.Execute(context.Background(), cmd); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestSetRuleActiveEmitsLifecycleEvents(t *testing.T) {
	store := memory.NewStore()
	recorder := &captureRecorder{}

	rule, err := newCreate(store, recorder).Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	setActive := commands.SetRuleActiveUseCase{Rules: store, Events: recorder, Clock: store}
	disabled, err := setActive.Execute(context.Background(), "user-1", rule.RuleID, false)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if disabled.IsActive {
		t.Fatal("rule should be inactive")
	}

	enabled, err := setActive.Execute(context.Background(), "user-1", rule.RuleID, true)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !enabled.IsActive || enabled.NextRunAt != nil {
		t.Fatalf("enable should reactivate and clear next_run_at: %+v", enabled)
	}

	types := make([]notifentities.EventType, 0, len(recorder.records))
	for _, record := range recorder.records {
		types = append(types, record.Type)
	}
	want := []notifentities.EventType{notifentities.EventRuleCreated, notifentities.EventRuleDisabled, notifentities.EventRuleEnabled}
	if len(types) != len(want) {
		t.Fatalf("unexpected events: %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, types[i], want[i])
		}
	}
}

func TestGetRuleIsUserScoped(t *testing.T) {
	store := memory.NewStore()
	rule, err := newCreate(store, &captureRecorder{}).Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.GetRule(context.Background(), "user-2", rule.RuleID); !errors.Is(err, domainerrors.ErrRuleNotFound) {
		t.Fatalf("cross-user read must be not found, got %v", err)
	}
}
