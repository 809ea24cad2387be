package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crumbnet/crumb/internal/api"
	"github.com/crumbnet/crumb/internal/bus"
	"github.com/crumbnet/crumb/internal/domain"
	"github.com/crumbnet/crumb/internal/health"
	_ "github.com/crumbnet/crumb/internal/infra/metrics" // Register Prometheus metrics
	"github.com/crumbnet/crumb/internal/infra/sqlite"
	"github.com/crumbnet/crumb/internal/p2p"
	"github.com/crumbnet/crumb/internal/security"
	"github.com/crumbnet/crumb/internal/transport"
)

// Daemon is the core crumb runtime. It wires together all services.
type Daemon struct {
	Config      Config
	DB          *sqlite.DB
	Bus         *bus.Bus
	Keypair     *security.Keypair
	Transport   *transport.Local
	Coordinator *p2p.Coordinator
	Server      *api.Server
	Health      *health.Checker

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	dataDir := cfg.Storage.Dir
	if dataDir == "" {
		dataDir = crumbHome()
	}

	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Crypto identity (Ed25519). The node ID peers see is derived from
	// the public key.
	kp, err := security.LoadOrCreateKeypair(crumbHome())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load keypair: %w", err)
	}

	node := transport.NewNetwork().NewNode(kp.NodeID(), kp.PublicKeyHex())

	eventBus := bus.New()
	coordinator := p2p.New(node, db, eventBus)

	// Serve our feed to peers that sync with us.
	node.SetFeed(coordinator.GetPosts)

	srv := api.NewServer(coordinator, eventBus)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	checker := health.NewChecker(db, coordinator, dataDir)
	srv.SetChecker(checker)

	d := &Daemon{
		Config:      cfg,
		DB:          db,
		Bus:         eventBus,
		Keypair:     kp,
		Transport:   node,
		Coordinator: coordinator,
		Server:      srv,
		Health:      checker,
	}
	d.logEvents()
	return d, nil
}

// logEvents mirrors the interesting domain events into the daemon log.
func (d *Daemon) logEvents() {
	d.Bus.Subscribe(func(ev domain.Event) {
		switch ev.Name {
		case domain.EventPeerDiscovered, domain.EventPeerConnected, domain.EventPeerLost:
			if peer, ok := ev.Payload.(domain.PeerInfo); ok {
				log.Printf("[daemon] %s: %s", ev.Name, peer.NodeID)
			}
		case domain.EventSyncError, domain.EventError:
			log.Printf("[daemon] %s: %v", ev.Name, ev.Payload)
		}
	})
}

// Serve brings the network up, starts the HTTP server, and blocks until
// shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.Coordinator.Initialize(ctx, d.Config.NetworkSettings()); err != nil {
		return fmt.Errorf("initialize network: %w", err)
	}

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		d.Coordinator.Disconnect()
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	fmt.Printf("crumb serving on http://%s (node %s)\n", addr, d.Keypair.NodeID())
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Coordinator != nil {
		d.Coordinator.Disconnect()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
