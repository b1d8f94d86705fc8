package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shhac/protobind/internal/binding"
	"github.com/shhac/protobind/internal/descriptor"
	"github.com/shhac/protobind/internal/domain"
	"github.com/shhac/protobind/internal/grpc"
	"github.com/shhac/protobind/internal/logging"
	"github.com/shhac/protobind/internal/registry"
	"github.com/shhac/protobind/internal/storage"
	"github.com/shhac/protobind/internal/stub"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// App is the main application coordinator, responsible for wiring
// together all components and managing their lifecycle.
type App struct {
	config      *Config
	logger      *slog.Logger
	logCloser   io.Closer
	storage     storage.Repository
	connManager *grpc.ConnectionManager
}

// New creates a new App instance with the given configuration. Logs go to
// the platform log file when cfg.LogFile is set, otherwise to stderr.
func New(cfg *Config, stderr io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		logger *slog.Logger
		closer io.Closer
	)
	if cfg.LogFile {
		var err error
		logger, closer, err = logging.InitLogger("protobind", cfg.Debug)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	} else {
		logger = logging.NewConsoleLogger(stderr, cfg.Debug)
	}

	storagePath := cfg.StoragePath
	if storagePath == "" {
		var err error
		storagePath, err = storage.DefaultStoragePath()
		if err != nil {
			return nil, fmt.Errorf("failed to determine storage path: %w", err)
		}
	}

	logger.Debug("initializing protobind",
		slog.Bool("debug", cfg.Debug),
		slog.String("storage_path", storagePath),
		slog.String("dependency_mode", cfg.DependencyMode),
	)

	a := NewWithRepository(cfg, logger, storage.NewJSONRepository(storagePath, logger))
	a.logCloser = closer
	return a, nil
}

// NewWithRepository wires an App around an existing logger and repository.
func NewWithRepository(cfg *Config, logger *slog.Logger, repo storage.Repository) *App {
	return &App{
		config:      cfg,
		logger:      logger,
		storage:     repo,
		connManager: grpc.NewConnectionManager(logger),
	}
}

// Close disconnects and flushes the log file.
func (a *App) Close() error {
	err := a.connManager.Disconnect()
	if a.logCloser != nil {
		err = errors.Join(err, a.logCloser.Close())
	}
	return err
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Storage returns the storage repository.
func (a *App) Storage() storage.Repository {
	return a.storage
}

// Config returns the configuration the App was built with.
func (a *App) Config() *Config {
	return a.config
}

// ConnManager returns the connection manager.
func (a *App) ConnManager() *grpc.ConnectionManager {
	return a.connManager
}

func wellKnownFiles() *protoregistry.Files {
	return protoregistry.GlobalFiles
}

// LoadBundle reads ref as a bundle file when it has a bundle file extension
// and exists, otherwise as the name of a stored bundle.
func (a *App) LoadBundle(ref string) (*domain.Bundle, error) {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml", ".json":
		if _, err := os.Stat(ref); err == nil {
			return storage.LoadBundleFile(ref)
		}
	}
	return a.storage.LoadBundle(ref)
}

// Session is a bundle resolved and bound, ready to be called.
type Session struct {
	Bundle   domain.Bundle
	Schema   *descriptor.Schema
	Stub     stub.Type
	Table    *binding.Table
	Registry *registry.Registry
}

// Services summarizes the services of the root file.
func (s *Session) Services() []domain.Service {
	return ServicesOf(s.Schema)
}

// ServicesOf summarizes the services of schema's root file.
func ServicesOf(schema *descriptor.Schema) []domain.Service {
	services := schema.Services()
	out := make([]domain.Service, 0, services.Len())
	for i := 0; i < services.Len(); i++ {
		out = append(out, domain.ServiceFromDescriptor(services.Get(i)))
	}
	return out
}

// Resolve decodes and links a bundle's descriptors.
func (a *App) Resolve(b domain.Bundle) (*descriptor.Schema, error) {
	opts, err := a.config.ResolverOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, descriptor.WithLogger(a.logger))
	return descriptor.NewResolver(b.Root, descriptor.Dependencies(b.Dependencies), opts...).Resolve()
}

// Bind resolves b and binds its stub. A bundle without a stub is bound with
// the stub derived from its service.
func (a *App) Bind(b domain.Bundle) (*Session, error) {
	schema, err := a.Resolve(b)
	if err != nil {
		return nil, err
	}

	st, err := stubFor(schema, b)
	if err != nil {
		return nil, err
	}

	conv, err := a.config.Convention()
	if err != nil {
		return nil, err
	}

	lookup := stub.CatalogOf(st)
	for _, s := range b.Types {
		lookup.Add(s)
	}

	reg := registry.New(a.logger)
	table, err := binding.NewBinder(reg,
		binding.WithConvention(conv),
		binding.WithTypeLookup(lookup),
		binding.WithLogger(a.logger),
	).Bind(schema, st)
	if err != nil {
		return nil, err
	}

	a.logger.Info("bound stub",
		slog.String("bundle", b.Name),
		slog.String("stub", st.Name),
		slog.Int("methods", table.Len()),
		slog.Int("messages", reg.Len()),
	)

	return &Session{
		Bundle:   b,
		Schema:   schema,
		Stub:     st,
		Table:    table,
		Registry: reg,
	}, nil
}

// stubFor returns the bundle's stub, or derives one from the service named
// by the bundle, or from the root file's only service.
func stubFor(schema *descriptor.Schema, b domain.Bundle) (stub.Type, error) {
	if b.Stub != nil {
		return *b.Stub, nil
	}

	short := b.Name
	if i := strings.LastIndex(short, "."); i >= 0 {
		short = short[i+1:]
	}
	if sd := schema.FindService(short); sd != nil {
		return stub.FromService(sd), nil
	}

	sd, err := binding.LocateService(schema, "")
	if err != nil {
		return stub.Type{}, err
	}
	return stub.FromService(sd), nil
}

// Connect dials target and remembers it as a recent target.
func (a *App) Connect(ctx context.Context, target domain.Target) error {
	if target.Timeout == 0 {
		target.Timeout = a.config.CallTimeout
	}
	if err := a.connManager.Connect(ctx, target); err != nil {
		return err
	}
	if err := a.storage.SaveRecentTarget(target); err != nil {
		a.logger.Warn("failed to save recent target", slog.Any("error", err))
	}
	return nil
}

func (a *App) conn() (*grpc.ConnectionManager, error) {
	if a.connManager.Conn() == nil {
		return nil, fmt.Errorf("no active connection")
	}
	return a.connManager, nil
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.CallTimeout > 0 {
		return context.WithTimeout(ctx, a.config.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// Call invokes req through the session's binding table on the current
// connection.
func (a *App) Call(ctx context.Context, sess *Session, req domain.Request) (*domain.Response, error) {
	cm, err := a.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return grpc.NewInvoker(cm.Conn(), a.logger).Call(ctx, sess.Table, req)
}

// ListServices lists the services of the connected server.
func (a *App) ListServices(ctx context.Context) ([]string, error) {
	cm, err := a.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return grpc.NewReflectionClient(cm.Conn(), a.logger).ListServices(ctx)
}

// Fetch builds a bundle for service from the connected server's reflection
// service. When the fetched descriptors resolve, the bundle carries the
// service's derived stub.
func (a *App) Fetch(ctx context.Context, service string) (*domain.Bundle, error) {
	cm, err := a.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	bundle, err := grpc.NewReflectionClient(cm.Conn(), a.logger).FetchBundle(ctx, service)
	if err != nil {
		return nil, err
	}
	bundle.Source = cm.Target().Address

	schema, err := a.Resolve(*bundle)
	if err != nil {
		a.logger.Warn("fetched descriptors do not resolve, saving without a stub",
			slog.String("service", service),
			slog.Any("error", err),
		)
		return bundle, nil
	}
	if st, err := stubFor(schema, *bundle); err == nil {
		bundle.Stub = &st
	}
	return bundle, nil
}
