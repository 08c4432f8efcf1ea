package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cratewatch/contexts/identity/user-service/adapters/memory"
	"cratewatch/contexts/identity/user-service/application/commands"
	domainerrors "cratewatch/contexts/identity/user-service/domain/errors"
)

type recordingDisabler struct {
	userIDs []string
	flipped int64
	err     error
}

func (d *recordingDisabler) DisableRulesForUser(_ context.Context, userID string, _ time.Time) (int64, error) {
	d.userIDs = append(d.userIDs, userID)
	return d.flipped, d.err
}

func newCreate(store *memory.Store) commands.CreateUserUseCase {
	return commands.CreateUserUseCase{Users: store, Clock: store, IDGenerator: store}
}

func TestCreateUserNormalizesEmail(t *testing.T) {
	store := memory.NewStore()

	user, err := newCreate(store).Execute(context.Background(), commands.CreateUserCommand{
		Email:    "  Crate.Digger@Example.COM ",
		Timezone: "Europe/Berlin",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "crate.digger@example.com" {
		t.Fatalf("email should be lowercased and trimmed, got %q", user.Email)
	}
	if user.Currency != "USD" || !user.IsActive {
		t.Fatalf("unexpected defaults: %+v", user)
	}

	// Case-insensitive uniqueness.
	if _, err := newCreate(store).Execute(context.Background(), commands.CreateUserCommand{
		Email: "CRATE.DIGGER@example.com",
	}); !errors.Is(err, domainerrors.ErrDuplicateEmail) {
		t.Fatalf("duplicate email must be rejected, got %v", err)
	}
}

func TestCreateUserRejectsInvalidEmail(t *testing.T) {
	store := memory.NewStore()
	create := newCreate(store)

	for _, email := range []string{"", "no-at-sign", "@example.com", "user@", "user@nodot", "two words@example.com"} {
		if _, err := create.Execute(context.Background(), commands.CreateUserCommand{Email: email}); !errors.Is(err, domainerrors.ErrInvalidEmail) {
			t.Errorf("%q: got %v, want ErrInvalidEmail", email, err)
		}
	}
}

func TestDeactivateUserDisablesRules(t *testing.T) {
	store := memory.NewStore()
	disabler := &recordingDisabler{flipped: 3}

	user, err := newCreate(store).Execute(context.Background(), commands.CreateUserCommand{Email: "digger@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deactivate := commands.DeactivateUserUseCase{Users: store, Rules: disabler, Clock: store}
	deactivated, err := deactivate.Execute(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated.IsActive {
		t.Fatal("user should be inactive")
	}
	if len(disabler.userIDs) != 1 || disabler.userIDs[0] != user.UserID {
		t.Fatalf("rules should be disabled exactly once for the user: %v", disabler.userIDs)
	}

	// Repeat deactivation is a no-op and must not touch rules again.
	if _, err := deactivate.Execute(context.Background(), user.UserID); err != nil {
		t.Fatalf("repeat deactivate: %v", err)
	}
	if len(disabler.userIDs) != 1 {
		t.Fatalf("repeat deactivation must not re-disable rules: %v", disabler.userIDs)
	}
}
