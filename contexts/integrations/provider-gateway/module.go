package providergateway

import (
	"log/slog"
	"net/http"
	"sort"

	"cratewatch/contexts/integrations/provider-gateway/adapters/discogs"
	"cratewatch/contexts/integrations/provider-gateway/adapters/ebay"
	"cratewatch/contexts/integrations/provider-gateway/adapters/memory"
	"cratewatch/contexts/integrations/provider-gateway/adapters/mock"
	"cratewatch/contexts/integrations/provider-gateway/adapters/shared"
	"cratewatch/contexts/integrations/provider-gateway/application/commands"
	domainerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

// ProviderConfig carries the upstream credentials and tuning shared by the
// provider clients.
type ProviderConfig struct {
	DiscogsBaseURL    string
	DiscogsToken      string
	EbayBaseURL       string
	EbayClientID      string
	EbayClientSecret  string
	EbayMarketplaceID string
	UserAgent         string
	MockEnabled       bool
	HTTPClient        *http.Client
	Retry             shared.RetryPolicy
}

// Factory builds provider search clients bound to a user and a request-log
// sink per call, so the caller can apply the zero-rows fallback contract.
type Factory struct {
	cfg    ProviderConfig
	logger *slog.Logger
}

func NewFactory(cfg ProviderConfig, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{cfg: cfg, logger: logger}
}

func (f *Factory) Client(provider string, userID string, sink ports.RequestLogSink) (ports.SearchClient, error) {
	switch provider {
	case ports.ProviderDiscogs:
		if f.cfg.DiscogsToken == "" {
			return nil, domainerrors.ErrProviderDisabled
		}
		return discogs.NewSearchClient(discogs.Options{
			BaseURL:    f.cfg.DiscogsBaseURL,
			Token:      f.cfg.DiscogsToken,
			UserAgent:  f.cfg.UserAgent,
			UserID:     userID,
			HTTPClient: f.cfg.HTTPClient,
			Retry:      f.cfg.Retry,
			Sink:       sink,
			Logger:     f.logger,
		}), nil
	case ports.ProviderEbay:
		if f.cfg.EbayClientID == "" || f.cfg.EbayClientSecret == "" {
			return nil, domainerrors.ErrProviderDisabled
		}
		return ebay.NewClient(ebay.Options{
			BaseURL:       f.cfg.EbayBaseURL,
			ClientID:      f.cfg.EbayClientID,
			ClientSecret:  f.cfg.EbayClientSecret,
			MarketplaceID: f.cfg.EbayMarketplaceID,
			UserID:        userID,
			HTTPClient:    f.cfg.HTTPClient,
			Retry:         f.cfg.Retry,
			Sink:          sink,
			Logger:        f.logger,
		}), nil
	case ports.ProviderMock:
		if !f.cfg.MockEnabled {
			return nil, domainerrors.ErrProviderDisabled
		}
		return mock.NewClient(), nil
	default:
		return nil, domainerrors.ErrUnknownProvider
	}
}

// Providers lists the configured provider names in stable order.
func (f *Factory) Providers() []string {
	names := make([]string, 0, 3)
	if f.cfg.DiscogsToken != "" {
		names = append(names, ports.ProviderDiscogs)
	}
	if f.cfg.EbayClientID != "" && f.cfg.EbayClientSecret != "" {
		names = append(names, ports.ProviderEbay)
	}
	if f.cfg.MockEnabled {
		names = append(names, ports.ProviderMock)
	}
	sort.Strings(names)
	return names
}

// Module is the composition surface for the provider gateway.
type Module struct {
	Clients      *Factory
	Sink         ports.RequestLogSink
	ListClient   ports.DiscogsListClient
	ResolveToken commands.ResolveTokenUseCase
	LinkAccount  commands.LinkAccountUseCase
	Store        *memory.Store
}

type Dependencies struct {
	Links       ports.AccountLinkRepository
	Sink        ports.RequestLogSink
	Cipher      ports.TokenCipher
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Providers   ProviderConfig
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	listClient := &discogs.ListClient{
		BaseURL:    deps.Providers.DiscogsBaseURL,
		UserAgent:  deps.Providers.UserAgent,
		HTTPClient: deps.Providers.HTTPClient,
		Retry:      deps.Providers.Retry,
		Sink:       deps.Sink,
		Logger:     deps.Logger,
	}

	return Module{
		Clients:    NewFactory(deps.Providers, deps.Logger),
		Sink:       deps.Sink,
		ListClient: listClient,
		ResolveToken: commands.ResolveTokenUseCase{
			Links:  deps.Links,
			Cipher: deps.Cipher,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		LinkAccount: commands.LinkAccountUseCase{
			Links:  deps.Links,
			Cipher: deps.Cipher,
			Clock:  deps.Clock,
			IDs:    deps.IDGenerator,
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule wires the gateway with the mock provider and in-memory
// adapters, for tests and local runtime.
func NewInMemoryModule(cipher ports.TokenCipher, clock ports.Clock, logger *slog.Logger) Module {
	store := memory.NewStore()
	ids := &memory.IDGenerator{}
	module := NewModule(Dependencies{
		Links:       store,
		Sink:        store,
		Cipher:      cipher,
		Clock:       clock,
		IDGenerator: ids,
		Providers:   ProviderConfig{MockEnabled: true},
		Logger:      logger,
	})
	module.Store = store
	return module
}
