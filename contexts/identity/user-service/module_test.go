package userservice_test

import (
	"context"
	"errors"
	"testing"

	userservice "cratewatch/contexts/identity/user-service"
	"cratewatch/contexts/identity/user-service/application/commands"
	domainerrors "cratewatch/contexts/identity/user-service/domain/errors"
)

func TestDirectoryServesCurrencyAndTimezone(t *testing.T) {
	module := userservice.NewInMemoryModule(nil, nil)

	user, err := module.CreateUser.Execute(context.Background(), commands.CreateUserCommand{
		Email:    "digger@example.com",
		Timezone: "Europe/Berlin",
		Currency: "eur",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	currency, err := module.Directory.GetCurrency(context.Background(), user.UserID)
	if err != nil || currency != "EUR" {
		t.Fatalf("currency: got %q, %v", currency, err)
	}
	timezone, err := module.Directory.GetTimezone(context.Background(), user.UserID)
	if err != nil || timezone != "Europe/Berlin" {
		t.Fatalf("timezone: got %q, %v", timezone, err)
	}

	if _, err := module.Directory.GetCurrency(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrUserNotFound) {
		t.Fatalf("missing user: got %v", err)
	}
}
