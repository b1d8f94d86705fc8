package grpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shhac/protobind/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// ConnectionState represents the current state of the gRPC connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns a human-readable representation of the connection state
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ConnectionManager owns a single client connection to a target
type ConnectionManager struct {
	conn   *grpc.ClientConn
	state  ConnectionState
	target domain.Target
	logger *slog.Logger
	mu     sync.RWMutex

	onStateChange func(state ConnectionState, message string)
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger *slog.Logger) *ConnectionManager {
	return &ConnectionManager{
		state:  StateDisconnected,
		logger: logger,
	}
}

// Connect dials target. When target.Timeout is set, Connect waits for the
// connection to become ready within that time.
func (m *ConnectionManager) Connect(ctx context.Context, target domain.Target) error {
	m.updateState(StateConnecting, "Connecting to "+target.Address)

	creds, err := transportCredentials(target.TLS)
	if err != nil {
		m.updateState(StateError, "Invalid TLS settings: "+err.Error())
		return err
	}
	if !target.TLS.Enabled {
		m.logger.Debug("using plaintext connection", slog.String("address", target.Address))
	} else if target.TLS.SkipVerify {
		m.logger.Warn("using TLS without certificate verification", slog.String("address", target.Address))
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: false,
		}),
	}

	conn, err := grpc.NewClient(target.Address, opts...)
	if err != nil {
		m.logger.Error("failed to create gRPC client",
			slog.String("address", target.Address),
			slog.Any("error", err),
		)
		m.updateState(StateError, "Failed to connect: "+err.Error())
		return err
	}

	if target.Timeout > 0 {
		if err := waitReady(ctx, conn, target.Timeout); err != nil {
			_ = conn.Close()
			m.logger.Error("connection did not become ready",
				slog.String("address", target.Address),
				slog.Duration("timeout", target.Timeout),
				slog.Any("error", err),
			)
			m.updateState(StateError, "Failed to connect: "+err.Error())
			return err
		}
	}

	m.mu.Lock()
	old := m.conn
	m.conn = conn
	m.target = target
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			m.logger.Warn("failed to close old connection", slog.Any("error", err))
		}
	}

	m.logger.Info("gRPC connection established",
		slog.String("address", target.Address),
		slog.Bool("tls", target.TLS.Enabled),
	)
	m.updateState(StateConnected, "Connected to "+target.Address)
	return nil
}

// waitReady drives conn out of idle and blocks until it is ready or timeout
// elapses.
func waitReady(ctx context.Context, conn *grpc.ClientConn, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	for {
		s := conn.GetState()
		if s == connectivity.Ready {
			return nil
		}
		if !conn.WaitForStateChange(ctx, s) {
			return fmt.Errorf("connection not ready after %s (last state %s): %w", timeout, s, ctx.Err())
		}
	}
}

// Disconnect closes the gRPC connection
func (m *ConnectionManager) Disconnect() error {
	m.mu.Lock()
	conn := m.conn
	addr := m.target.Address
	m.conn = nil
	m.target = domain.Target{}
	m.mu.Unlock()

	if conn == nil {
		m.updateState(StateDisconnected, "Already disconnected")
		return nil
	}

	if err := conn.Close(); err != nil {
		m.logger.Error("failed to close connection",
			slog.String("address", addr),
			slog.Any("error", err),
		)
		m.updateState(StateError, "Failed to disconnect: "+err.Error())
		return err
	}

	m.logger.Info("gRPC connection closed", slog.String("address", addr))
	m.updateState(StateDisconnected, "Disconnected")
	return nil
}

// Conn returns the current gRPC client connection, or nil if not connected
func (m *ConnectionManager) Conn() *grpc.ClientConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

// State returns the current connection state
func (m *ConnectionManager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Target returns the settings of the current connection
func (m *ConnectionManager) Target() domain.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target
}

// SetStateCallback registers a callback function to be called on state changes
func (m *ConnectionManager) SetStateCallback(fn func(state ConnectionState, message string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

func (m *ConnectionManager) updateState(state ConnectionState, message string) {
	m.mu.Lock()
	m.state = state
	callback := m.onStateChange
	m.mu.Unlock()

	m.logger.Debug("connection state changed",
		slog.String("state", state.String()),
		slog.String("message", message),
	)

	if callback != nil {
		callback(state, message)
	}
}

// transportCredentials builds the credentials for s: plaintext when TLS is
// disabled, otherwise TLS with an optional CA bundle and client certificate.
func transportCredentials(s domain.TLSSettings) (credentials.TransportCredentials, error) {
	if !s.Enabled {
		return insecure.NewCredentials(), nil
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: s.SkipVerify, //nolint:gosec // opt-in via --insecure
	}

	if s.CertFile != "" {
		pem, err := os.ReadFile(s.CertFile)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", s.CertFile)
		}
		cfg.RootCAs = pool
	}

	if s.ClientCertFile != "" || s.ClientKeyFile != "" {
		if s.ClientCertFile == "" || s.ClientKeyFile == "" {
			return nil, fmt.Errorf("client certificate and key must be set together")
		}
		cert, err := tls.LoadX509KeyPair(s.ClientCertFile, s.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return credentials.NewTLS(cfg), nil
}
