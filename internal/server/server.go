package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/grpc"

	"github.com/edgetether/tether/internal/gate"
)

// Server manages the gate's listeners: the HTTP proxy in front of the
// origin, the gRPC ext_authz service, and the admin endpoints.
type Server struct {
	cfg    Config
	logger *slog.Logger

	grpcServer  *grpc.Server
	httpServer  *http.Server
	adminServer *http.Server

	httpAddr  net.Addr
	grpcAddr  net.Addr
	adminAddr net.Addr

	ready atomic.Bool
}

// Config contains server configuration. A port of 0 binds an ephemeral
// port; a negative port disables that listener.
type Config struct {
	// HTTPPort serves guarded origin traffic
	HTTPPort int

	// GRPCPort serves the Envoy ext_authz Authorization service
	GRPCPort int

	// AdminPort serves health and readiness endpoints
	AdminPort int

	// Handler answers guarded origin traffic on HTTPPort
	Handler http.Handler

	// Gate is evaluated by the ext_authz service
	Gate *gate.Gate

	// ClientIPHeader names the edge header carrying the client address
	ClientIPHeader string

	// Logger defaults to slog.Default
	Logger *slog.Logger
}

// New creates a new server with the given configuration
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings up the configured listeners. It returns once all of
// them are accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.HTTPPort >= 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.HTTPPort))
		if err != nil {
			return fmt.Errorf("failed to listen on HTTP port %d: %w", s.cfg.HTTPPort, err)
		}
		s.httpAddr = listener.Addr()
		s.httpServer = &http.Server{
			Handler:           s.cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			s.logger.Info("HTTP server listening", "addr", s.httpAddr.String())
			if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server error", "error", err)
			}
		}()
	}

	if s.cfg.GRPCPort >= 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port %d: %w", s.cfg.GRPCPort, err)
		}
		s.grpcAddr = listener.Addr()
		s.grpcServer = grpc.NewServer()
		authv3.RegisterAuthorizationServer(s.grpcServer, NewAuthzServer(s.cfg.Gate, s.cfg.ClientIPHeader, s.logger))

		go func() {
			s.logger.Info("gRPC ext_authz server listening", "addr", s.grpcAddr.String())
			if err := s.grpcServer.Serve(listener); err != nil {
				s.logger.Error("gRPC server error", "error", err)
			}
		}()
	}

	if s.cfg.AdminPort >= 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.AdminPort))
		if err != nil {
			return fmt.Errorf("failed to listen on admin port %d: %w", s.cfg.AdminPort, err)
		}
		s.adminAddr = listener.Addr()
		s.adminServer = &http.Server{
			Handler:           newAdminRouter(&s.ready),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			s.logger.Info("admin server listening", "addr", s.adminAddr.String())
			if err := s.adminServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("admin server error", "error", err)
			}
		}()
	}

	s.ready.Store(true)
	return nil
}

// Stop gracefully stops all listeners
func (s *Server) Stop(ctx context.Context) error {
	s.ready.Store(false)

	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}

	var errs []error
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	if s.adminServer != nil {
		errs = append(errs, s.adminServer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// HTTPAddr returns the bound address of the HTTP listener, or "" if it
// is not running. Useful with an ephemeral port.
func (s *Server) HTTPAddr() string {
	if s.httpAddr == nil {
		return ""
	}
	return s.httpAddr.String()
}

// GRPCAddr returns the bound address of the gRPC listener, or ""
func (s *Server) GRPCAddr() string {
	if s.grpcAddr == nil {
		return ""
	}
	return s.grpcAddr.String()
}

// AdminAddr returns the bound address of the admin listener, or ""
func (s *Server) AdminAddr() string {
	if s.adminAddr == nil {
		return ""
	}
	return s.adminAddr.String()
}
