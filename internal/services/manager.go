package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/codetrek/cloudsync/internal/api"
	"github.com/codetrek/cloudsync/internal/auth"
	"github.com/codetrek/cloudsync/internal/config"
	"github.com/codetrek/cloudsync/internal/engine"
	"github.com/codetrek/cloudsync/internal/feed"
	"github.com/codetrek/cloudsync/internal/storage"
)

type Options struct {
	RunAPI          bool
	RunFeedConsumer bool
}

type Manager struct {
	cfg  *config.Config
	opts Options

	servers     []*http.Server
	serverNames []string
	factory     storage.Factory
	engine      *engine.Engine
	hub         *feed.Hub
	tokenSvc    *auth.TokenService
	natsConn    *nats.Conn

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

func NewManager(cfg *config.Config, opts Options) *Manager {
	return &Manager{
		cfg:  cfg,
		opts: opts,
	}
}

func (m *Manager) TokenService() *auth.TokenService {
	return m.tokenSvc
}

// Init wires storage, the change feed, the engine and the HTTP servers.
func (m *Manager) Init(ctx context.Context) error {
	m.bgCtx, m.bgCancel = context.WithCancel(context.Background())

	factory, err := storage.NewFactory(ctx, m.cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	m.factory = factory

	m.hub = feed.NewHub()
	var publisher feed.Publisher = feed.HubPublisher{Hub: m.hub}

	if m.cfg.NATS.Enabled {
		nc, err := nats.Connect(m.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		m.natsConn = nc

		publisher, err = feed.NewNatsPublisher(ctx, nc)
		if err != nil {
			return fmt.Errorf("init feed publisher: %w", err)
		}

		if m.opts.RunFeedConsumer {
			consumer, err := feed.NewConsumer(nc, m.hub)
			if err != nil {
				return fmt.Errorf("init feed consumer: %w", err)
			}
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				if err := consumer.Start(m.bgCtx); err != nil {
					log.Printf("[Error] Feed consumer stopped: %v", err)
				}
			}()
		}
	}

	m.engine = engine.New(factory.Documents(), factory.Outbox(), engine.Options{
		PageSize: m.cfg.Sync.PageSize,
		Feed:     publisher,
	})

	var middleware api.Middleware
	if m.cfg.Auth.Enabled {
		key, err := loadOrCreateKey(m.cfg.Auth.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("init auth key: %w", err)
		}
		m.tokenSvc = auth.NewTokenService(key, 24*time.Hour)
		middleware = m.tokenSvc.Middleware
	}

	if m.opts.RunAPI {
		handler := api.NewServer(m.engine, m.hub, middleware)
		m.servers = append(m.servers, &http.Server{
			Addr:    fmt.Sprintf(":%d", m.cfg.API.Port),
			Handler: handler,
		})
		m.serverNames = append(m.serverNames, "Sync API")
	}

	return nil
}

// Run starts the HTTP servers. It does not block.
func (m *Manager) Run() {
	for i, srv := range m.servers {
		name := m.serverNames[i]
		server := srv
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			log.Printf("Starting %s on %s", name, server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[Error] %s failed: %v", name, err)
			}
		}()
	}
}
