package mock

import (
	"context"
	"errors"
	"reflect"
	"testing"

	domainerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

func TestSearchIsDeterministicPerSeed(t *testing.T) {
	client := NewClient()
	query := ports.SearchQuery{Keywords: []string{"boards of canada"}, Seed: "rule-1"}

	first, err := client.Search(context.Background(), query, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	second, err := client.Search(context.Background(), query, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same keywords and seed must produce identical listings")
	}

	other, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{"boards of canada"}, Seed: "rule-2"}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if reflect.DeepEqual(first, other) {
		t.Fatal("different seeds should produce different listings")
	}
}

func TestSearchRejectsBlankKeywords(t *testing.T) {
	client := NewClient()
	_, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{" "}}, 10)
	if !errors.Is(err, domainerrors.ErrInvalidSearchTerm) {
		t.Fatalf("expected ErrInvalidSearchTerm, got %v", err)
	}
}
