// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/genos-dev/genos/internal/cache"
	"github.com/genos-dev/genos/internal/config"
	"github.com/genos-dev/genos/internal/events"
	"github.com/genos-dev/genos/internal/guardrail"
	"github.com/genos-dev/genos/internal/metrics"
	"github.com/genos-dev/genos/internal/orchestrator"
	"github.com/genos-dev/genos/internal/provider"
	anthropicprov "github.com/genos-dev/genos/internal/provider/anthropic"
	bedrockprov "github.com/genos-dev/genos/internal/provider/bedrock"
	googleprov "github.com/genos-dev/genos/internal/provider/google"
	openaiprov "github.com/genos-dev/genos/internal/provider/openai"
	watsonxprov "github.com/genos-dev/genos/internal/provider/watsonx"
	"github.com/genos-dev/genos/internal/rag"
	"github.com/genos-dev/genos/internal/schedule"
	"github.com/genos-dev/genos/internal/server"
	"github.com/genos-dev/genos/internal/store"
	_ "github.com/genos-dev/genos/internal/store/postgres" // register postgres backend
	_ "github.com/genos-dev/genos/internal/store/sqlite"   // register sqlite backend
	"github.com/genos-dev/genos/internal/tenant"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/types"
)

// Gateway holds all wired subsystems and manages their lifecycle.
type Gateway struct {
	Server     *server.Server
	Store      store.Store
	AdminStore store.Store
	Registry   *provider.Registry
	Breakers   *provider.Breakers
	Metrics    *metrics.Aggregator

	redis  *redis.Client
	pubsub *events.PubSubEmitter
}

// WireGateway creates all subsystems and wires them together. On error every
// resource opened so far is released.
func WireGateway(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	gw := &Gateway{}
	wired := false
	defer func() {
		if !wired {
			_ = gw.Close()
		}
	}()

	var err error

	// 1. Tenant-scoped and privileged stores.
	storeCfg := storageConfig(cfg)
	if gw.Store, err = store.Open(storeCfg); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "opening store")
	}
	if gw.AdminStore, err = store.OpenPrivileged(storeCfg); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "opening privileged store")
	}

	// 2. Optional Redis brand cache in front of the brand store.
	brands := gw.Store.Brands()
	if rc := cfg.Cache.Redis; rc.Addr != "" {
		client, cerr := cache.Connect(ctx, cache.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB, TTL: rc.TTL})
		if cerr != nil {
			slog.Warn("brand cache disabled", "addr", rc.Addr, "error", cerr)
		} else {
			gw.redis = client
			brands = cache.NewBrandCache(brands, client, rc.TTL)
		}
	}

	// 3. Metrics and breakers. Breaker transitions feed the Prometheus gauge.
	gw.Metrics = metrics.NewAggregator(cfg.Metrics.Capacity)
	exporter := metrics.NewExporter()
	gw.Metrics.SetExporter(exporter)

	gw.Breakers, err = provider.NewBreakers(provider.BreakerConfig{
		FailureThreshold:    cfg.Breaker.FailureThreshold,
		ResetTimeout:        cfg.Breaker.ResetTimeout,
		HalfOpenMaxAttempts: cfg.Breaker.HalfOpenMaxAttempts,
	})
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "creating circuit breakers")
	}
	gw.Breakers.SetObserver(func(name string, from, to provider.CircuitState) {
		exporter.SetBreakerState(name, string(to))
		slog.Warn("provider circuit changed", "provider", name, "from", from, "to", to)
	})

	// 4. Provider registry and routing policy.
	gw.Registry = provider.NewRegistry()
	registerBuiltinProviders(ctx, cfg, gw.Registry)
	if err := applyRouting(cfg.Routing, gw.Registry); err != nil {
		return nil, err
	}

	// 5. Events: always logged, optionally published.
	emitter, err := gw.wireEvents(ctx, cfg.Events)
	if err != nil {
		return nil, err
	}

	// 6. Core services.
	verifier, err := guardrail.New()
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "loading guardrail patterns")
	}

	retriever, err := newRetriever(cfg.RAG, gw.Registry, gw.Store.Vectors())
	if err != nil {
		return nil, err
	}

	orchCfg := orchestrator.Config{
		Registry:         gw.Registry,
		Breakers:         gw.Breakers,
		Brands:           brands,
		Verifier:         verifier,
		Metrics:          gw.Metrics,
		ProviderTimeout:  cfg.Routing.Timeout,
		ProviderTimeouts: cfg.ProviderTimeouts(),
		DefaultMaxLength: cfg.Guardrail.MaxLength,
	}
	var indexer server.Indexer
	if retriever != nil {
		orchCfg.Retriever = retriever
		indexer = rag.NewBrandIndexer(brands, retriever)
	}
	orch, err := orchestrator.New(orchCfg)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "creating orchestrator")
	}

	scheduler, err := newScheduler(cfg.Schedule, gw.Store.Analytics())
	if err != nil {
		return nil, err
	}

	validator := tenant.NewValidator(tenant.ContextResolver{}, gw.Store.Ownership(), gw.AdminStore.AuditLog(), emitter)

	// 7. HTTP server.
	gw.Server, err = server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		Version:     version,
		Auth: server.AuthConfig{
			Mode:           cfg.Auth.Mode,
			JWTSecret:      cfg.Auth.JWTSecret,
			Issuer:         cfg.Auth.Issuer,
			TrustedProxies: cfg.Auth.TrustedProxies,
		},
	}, &server.Services{
		Generator: orch,
		Scheduler: scheduler,
		Indexer:   indexer,
		Tenants:   validator,
		Audit:     gw.Store.AuditLog(),
		Events:    emitter,
		Circuits:  gw.Breakers,
		Health:    gw.Metrics,
		Requests:  gw.Metrics,
		Metrics:   exporter.Handler(),
	})
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "creating server")
	}

	if cfg.Auth.Mode == config.AuthModeHeaders && len(cfg.Auth.TrustedProxies) == 0 {
		slog.Warn("identity headers are trusted from every peer; set auth.trusted_proxies when exposed beyond a gateway")
	}

	wired = true
	return gw, nil
}

// Handler returns the HTTP handler of the wired server.
func (gw *Gateway) Handler() http.Handler { return gw.Server.Handler() }

// Start runs the HTTP server and blocks until the context is cancelled.
func (gw *Gateway) Start(ctx context.Context) error {
	return gw.Server.Start(ctx)
}

// Close releases all resources held by the gateway.
func (gw *Gateway) Close() error {
	var errs []error
	if gw.Registry != nil {
		errs = append(errs, gw.Registry.Close())
	}
	if gw.pubsub != nil {
		errs = append(errs, gw.pubsub.Close())
	}
	if gw.redis != nil {
		errs = append(errs, gw.redis.Close())
	}
	if gw.AdminStore != nil {
		errs = append(errs, gw.AdminStore.Close())
	}
	if gw.Store != nil {
		errs = append(errs, gw.Store.Close())
	}
	return errors.Join(errs...)
}

func storageConfig(cfg *config.Config) *store.StorageConfig {
	return &store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		SQLitePath:       cfg.Storage.SQLite.Path,
		PostgresDSN:      cfg.Storage.Postgres.DSN,
		PostgresAdminDSN: cfg.Storage.Postgres.AdminDSN,
	}
}

func (gw *Gateway) wireEvents(ctx context.Context, cfg config.EventsConfig) (events.Emitter, error) {
	logEmitter := events.NewLogEmitter(slog.Default())
	ps := cfg.PubSub
	if ps.ProjectID == "" {
		return logEmitter, nil
	}

	var opts []option.ClientOption
	if ps.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(ps.CredentialsFile))
	}
	emitter, err := events.NewPubSubEmitter(ctx, ps.ProjectID, ps.Topic, opts...)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "creating pubsub emitter")
	}
	gw.pubsub = emitter
	slog.Info("publishing events", "project_id", ps.ProjectID, "topic", ps.Topic)
	return events.NewMultiEmitter(logEmitter, emitter), nil
}

// newRetriever enables RAG when configured and the watsonx provider, which
// supplies embeddings, is registered. It returns nil otherwise.
func newRetriever(cfg config.RAGConfig, reg *provider.Registry, vectors store.VectorStore) (*rag.Retriever, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	g, err := reg.Get(provider.NameWatsonx)
	if err != nil {
		slog.Info("rag disabled: watsonx provider not registered")
		return nil, nil
	}
	emb, ok := g.(rag.Embedder)
	if !ok {
		slog.Warn("rag disabled: watsonx provider cannot embed")
		return nil, nil
	}

	r, err := rag.New(emb, vectors, rag.Config{
		TopK:        cfg.TopK,
		Threshold:   cfg.Threshold,
		SourceTypes: cfg.SourceTypes,
	})
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "creating retriever")
	}
	slog.Info("rag enabled", "top_k", cfg.TopK, "threshold", cfg.Threshold, "source_types", cfg.SourceTypes)
	return r, nil
}

func newScheduler(cfg config.ScheduleConfig, analytics store.AnalyticsStore) (*schedule.Optimizer, error) {
	sc := schedule.Config{
		Analytics: analytics,
		Constraints: schedule.Constraints{
			MaxPostsPerDay:         cfg.MaxPostsPerDay,
			MaxPostsPerPlatformDay: cfg.MaxPostsPerPlatformDay,
		},
		HistoryLimit: cfg.HistoryLimit,
	}
	if len(cfg.Command) > 0 {
		q, err := schedule.NewSubprocessOptimizer(cfg.Command, cfg.Timeout, int(cfg.MaxOutputBytes))
		if err != nil {
			return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "creating schedule optimizer")
		}
		sc.Quantum = q
	}

	opt, err := schedule.New(sc)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "creating scheduler")
	}
	return opt, nil
}

// providerFactory builds a provider.Generator from a ProviderConfig.
type providerFactory func(context.Context, config.ProviderConfig) (provider.Generator, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject failing factories.
var builtinProviderFactories = map[string]providerFactory{
	provider.NameAnthropic: func(_ context.Context, pc config.ProviderConfig) (provider.Generator, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.Endpoint})
	},
	provider.NameGoogle: func(ctx context.Context, pc config.ProviderConfig) (provider.Generator, error) {
		return googleprov.New(ctx, googleprov.Config{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.Endpoint})
	},
	provider.NameOpenAI: func(_ context.Context, pc config.ProviderConfig) (provider.Generator, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.Endpoint})
	},
	provider.NameWatsonx: func(_ context.Context, pc config.ProviderConfig) (provider.Generator, error) {
		return watsonxprov.New(watsonxprov.Config{
			APIKey:         pc.APIKey,
			ProjectID:      pc.ProjectID,
			Model:          pc.Model,
			EmbeddingModel: pc.EmbeddingModel,
			Endpoint:       pc.Endpoint,
		})
	},
	provider.NameBedrock: func(ctx context.Context, pc config.ProviderConfig) (provider.Generator, error) {
		return bedrockprov.New(ctx, bedrockprov.Config{Region: pc.Region, Model: pc.Model})
	},
}

// needsAPIKey reports whether the provider authenticates with an api_key.
// Bedrock uses the AWS credential chain instead.
func needsAPIKey(name string) bool {
	return name != provider.NameBedrock
}

// registerBuiltinProviders iterates configured providers and registers
// matching built-in implementations. Unknown names, missing keys and
// constructor failures are logged and skipped; none is fatal at startup.
func registerBuiltinProviders(ctx context.Context, cfg *config.Config, reg *provider.Registry) {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc := cfg.Providers[name]
		if needsAPIKey(name) && pc.APIKey == "" {
			slog.Warn("skipping provider with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		g, err := factory(ctx, pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(g)
		slog.Info("registered provider", "provider", name)
	}

	if len(reg.Registered()) == 0 {
		slog.Warn("no AI provider registered; generation requests will return 503")
	}
}

func applyRouting(rc config.RoutingConfig, reg *provider.Registry) error {
	if rc.Default != "" {
		if err := reg.SetDefault(rc.Default); err != nil {
			return genoserr.Wrapf(err, genoserr.CodeCLISetupFailure, "setting default provider: %s", rc.Default)
		}
	}
	if len(rc.Failover) > 0 {
		if err := reg.SetFailover(rc.Failover); err != nil {
			return genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "setting failover chain")
		}
	}
	for ct, ref := range rc.ContentTypes {
		if err := reg.SetRoute(types.ContentType(ct), ref); err != nil {
			return genoserr.Wrapf(err, genoserr.CodeCLISetupFailure, "setting route for %s", ct)
		}
	}
	return nil
}
