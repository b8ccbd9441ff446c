package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pricewise-labs/pricewise/internal/agent"
	"github.com/pricewise-labs/pricewise/internal/api"
	"github.com/pricewise-labs/pricewise/internal/approval"
	"github.com/pricewise-labs/pricewise/internal/config"
	"github.com/pricewise-labs/pricewise/internal/events"
	"github.com/pricewise-labs/pricewise/internal/llm"
	"github.com/pricewise-labs/pricewise/internal/research"
	"github.com/pricewise-labs/pricewise/internal/store"
	"github.com/pricewise-labs/pricewise/internal/store/memory"
	"github.com/pricewise-labs/pricewise/internal/store/postgres"
	"github.com/pricewise-labs/pricewise/internal/tavily"
	"github.com/pricewise-labs/pricewise/internal/tools"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newBroker = events.NewBroker
	newStore  = func(cfg config.Config) (store.Store, error) {
		if cfg.StoreBackend == "postgres" {
			return postgres.New(cfg.PostgresURL)
		}
		return memory.New(), nil
	}
	newProvider = llm.NewProvider
	newServer   = func(st store.Store, broker *events.Broker, runtime *agent.Runtime, gate *approval.Gate, cfg config.Config) server {
		return api.NewServer(st, broker, runtime, gate, cfg)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := newStore(cfg)
	if err != nil {
		return err
	}
	broker := newBroker()

	provider, err := newProvider(llm.Config{
		Provider:         cfg.LLMProvider,
		Model:            cfg.LLMModel,
		BaseURL:          cfg.LLMBaseURL,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
	})
	if err != nil {
		return err
	}

	search := tavily.NewClient(tavily.Config{
		APIKey:     cfg.TavilyAPIKey,
		BaseURL:    cfg.TavilyBaseURL,
		MaxResults: cfg.MaxSearchResults,
	})
	orchestrator := research.New(search, cfg.ResearchWorkers)

	registry := tools.NewRegistry()
	for _, tool := range []tools.Tool{
		tools.NewSearchProduct(search),
		tools.NewComparePrices(search),
		tools.NewGetReviews(search),
		tools.NewCheckAvailability(search),
		tools.NewFindCoupons(search),
		tools.NewScrapeURL(search, cfg.ScrapeCharLimit),
		tools.NewCalculateBudget(),
		tools.NewAddToWishlist(st),
		tools.NewGetWishlist(st),
		tools.NewDelegateResearch(orchestrator),
	} {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	gate := approval.NewGate()
	runtime := agent.NewRuntime(provider, registry, gate, st, broker, cfg.SummarizeAfter)

	server := newServer(st, broker, runtime, gate, cfg)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Pricewise listening on %s", addr)
	return server.Start(ctx, addr)
}
