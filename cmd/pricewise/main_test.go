package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/pricewise-labs/pricewise/internal/agent"
	"github.com/pricewise-labs/pricewise/internal/approval"
	"github.com/pricewise-labs/pricewise/internal/config"
	"github.com/pricewise-labs/pricewise/internal/events"
	"github.com/pricewise-labs/pricewise/internal/llm"
	"github.com/pricewise-labs/pricewise/internal/store"
	"github.com/pricewise-labs/pricewise/internal/store/memory"
)

type stubServer struct {
	err error
}

func (s stubServer) Start(ctx context.Context, addr string) error {
	return s.err
}

type stubProvider struct{}

func (stubProvider) Generate(_ context.Context, _ llm.Request) (*llm.Completion, error) {
	return &llm.Completion{Content: "ok"}, nil
}

func captureDeps() func() {
	origLoadConfig := loadConfig
	origNewBroker := newBroker
	origNewStore := newStore
	origNewProvider := newProvider
	origNewServer := newServer
	origNotifyContext := notifyContext

	return func() {
		loadConfig = origLoadConfig
		newBroker = origNewBroker
		newStore = origNewStore
		newProvider = origNewProvider
		newServer = origNewServer
		notifyContext = origNotifyContext
	}
}

func TestRunSuccess(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{
			Port:        "0",
			LLMProvider: "openai",
			LLMModel:    "gpt-4o",
		}, nil
	}
	newStore = func(_ config.Config) (store.Store, error) {
		return memory.New(), nil
	}
	newProvider = func(_ llm.Config) (llm.Provider, error) {
		return stubProvider{}, nil
	}
	var serverStore store.Store
	newServer = func(st store.Store, _ *events.Broker, runtime *agent.Runtime, gate *approval.Gate, _ config.Config) server {
		serverStore = st
		if runtime == nil {
			t.Fatal("expected a runtime")
		}
		if gate == nil {
			t.Fatal("expected an approval gate")
		}
		return stubServer{}
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if serverStore == nil {
		t.Fatal("expected the store to be passed to the server")
	}
}

func TestRunConfigLoadFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{}, errors.New("config load failed")
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunStoreInitFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{StoreBackend: "postgres", PostgresURL: "postgres://example"}, nil
	}
	newStore = func(_ config.Config) (store.Store, error) {
		return nil, errors.New("store init failed")
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunUnknownProviderFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{LLMProvider: "carrier-pigeon"}, nil
	}
	newStore = func(_ config.Config) (store.Store, error) {
		return memory.New(), nil
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}
