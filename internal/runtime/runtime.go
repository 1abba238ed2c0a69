package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxilabs/voxi-core/internal/api"
	"github.com/voxilabs/voxi-core/internal/bus"
	"github.com/voxilabs/voxi-core/internal/capture"
	"github.com/voxilabs/voxi-core/internal/classify"
	"github.com/voxilabs/voxi-core/internal/config"
	"github.com/voxilabs/voxi-core/internal/events"
	"github.com/voxilabs/voxi-core/internal/eventstore"
	"github.com/voxilabs/voxi-core/internal/natsserver"
	"github.com/voxilabs/voxi-core/internal/notes"
	"github.com/voxilabs/voxi-core/internal/permission"
	"github.com/voxilabs/voxi-core/internal/recognizer"
	"github.com/voxilabs/voxi-core/internal/sentiment"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	embedded *natsserver.EmbeddedServer
	bus      *bus.Client
	journal  *eventstore.Store
	exporter *events.KafkaExporter
	session  *capture.Session

	addrMu sync.Mutex
	addr   string
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Addr returns the address the HTTP server listens on once started.
func (r *Runtime) Addr() string {
	r.addrMu.Lock()
	defer r.addrMu.Unlock()
	return r.addr
}

// Ready reports whether every component has started.
func (r *Runtime) Ready() bool {
	return r.ready.Load()
}

// Start wires the components, serves HTTP and blocks until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	handler, err := r.wire(ctx, metricsHandler)
	if err != nil {
		r.shutdown()
		_ = shutdownTelemetry(context.Background())
		return err
	}

	addr := net.JoinHostPort(r.cfg.HTTP.Bind, strconv.Itoa(r.cfg.HTTP.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		r.shutdown()
		_ = shutdownTelemetry(context.Background())
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	r.addrMu.Lock()
	r.addr = ln.Addr().String()
	r.addrMu.Unlock()

	r.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slogError(err))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", r.Addr()))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slogError(err))
	}
	r.wg.Wait()
	r.shutdown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slogError(err))
		}
	}

	return nil
}

func (r *Runtime) wire(ctx context.Context, metricsHandler http.Handler) (http.Handler, error) {
	cfg := r.cfg

	if r.needsBus() {
		embedded, err := natsserver.Start(cfg.Bus, r.logger)
		if err != nil {
			return nil, err
		}
		r.embedded = embedded
		busCfg := cfg.Bus
		if url := embedded.ClientURL(); url != "" {
			busCfg.Servers = []string{url}
		}
		client, err := bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to bus: %w", err)
		}
		r.bus = client
	}

	journal, err := eventstore.Open(ctx, cfg.EventStore, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	r.journal = journal

	scorer, err := sentiment.New(cfg.Sentiment, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentiment scorer: %w", err)
	}
	categories := classify.NewCategorySet(cfg.Classification.BuiltinCategories, cfg.Classification.FallbackCategory)
	pipeline := classify.NewPipeline(scorer, categories, r.logger)

	rec, err := recognizer.New(cfg.Recognizer, r.bus, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}

	speech, microphone, err := r.permissionQueriers()
	if err != nil {
		return nil, err
	}

	r.exporter = events.NewKafkaExporter(cfg.Export, r.logger)
	sinks := events.Multi{events.NewJournal(journal, cfg.RuntimeName, r.logger), r.exporter}
	if r.bus != nil {
		sinks = append(sinks, events.NewBusSink(r.bus, r.logger))
	}

	store := notes.NewStore()
	r.session = capture.NewSession(ctx, capture.Options{
		Coordinator: permission.NewCoordinator(speech, microphone, r.logger),
		Recognizer:  rec,
		Pipeline:    pipeline,
		Store:       store,
		Sink:        sinks,
		Logger:      r.logger,
	})

	return api.NewRouter(api.Options{
		Session:    r.session,
		Notes:      store,
		Categories: categories,
		Journal:    journal,
		Metrics:    metricsHandler,
		Ready:      r.healthy,
		Logger:     r.logger,
	}), nil
}

// needsBus reports whether any component talks to NATS.
func (r *Runtime) needsBus() bool {
	return r.cfg.Bus.Embedded || r.cfg.Recognizer.Mode == "bus" || r.cfg.Permissions.Mode == "bus"
}

func (r *Runtime) permissionQueriers() (permission.Querier, permission.Querier, error) {
	cfg := r.cfg.Permissions
	switch cfg.Mode {
	case "static":
		return permission.Static(permission.ParseState(cfg.Speech)),
			permission.Static(permission.ParseState(cfg.Microphone)), nil
	case "bus":
		if r.bus == nil {
			return nil, nil, errors.New("bus permissions require a bus connection")
		}
		return bus.NewPermissionQuerier(r.bus, cfg.SpeechSubject, permission.Speech),
			bus.NewPermissionQuerier(r.bus, cfg.MicrophoneSubject, permission.Microphone), nil
	default:
		return nil, nil, fmt.Errorf("unknown permissions mode %q", cfg.Mode)
	}
}

func (r *Runtime) healthy() bool {
	if !r.ready.Load() {
		return false
	}
	return r.bus == nil || r.bus.Healthy()
}

// shutdown releases components in reverse start order. Safe on a partially
// wired runtime.
func (r *Runtime) shutdown() {
	if r.session != nil {
		r.session.Close()
	}
	if r.exporter != nil {
		if err := r.exporter.Close(); err != nil {
			r.logger.Warn("kafka exporter close error", slogError(err))
		}
	}
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			r.logger.Warn("event store close error", slogError(err))
		}
	}
	if r.bus != nil {
		r.bus.Close()
	}
	r.embedded.Shutdown()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
