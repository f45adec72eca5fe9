package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/me7398/monarch/application/http/webconn"
	"github.com/me7398/monarch/transport"
	"github.com/pkg/errors"
)

// Server answers one request per accepted connection.
// The listener belongs to the caller.
type Server struct {
	l transport.ConnListener

	closeListener func()
	wg            sync.WaitGroup

	logger *slog.Logger
	opts   Options

	handle HandleFunc
	clock  clock.Clock
}

func New(
	l transport.ConnListener,
	logger *slog.Logger,
	clock clock.Clock,
	handle HandleFunc,
	opts Options,
) *Server {
	if opts.Conn.Logger == nil {
		opts.Conn.Logger = logger
	}
	if opts.Conn.Clock == nil {
		opts.Conn.Clock = clock
	}

	return &Server{
		l:      l,
		logger: logger,
		opts:   opts,
		handle: handle,
		clock:  clock,
	}
}

func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.closeListener = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		connCtx, connCancel := context.WithCancel(context.Background())
		defer connCancel()

		for {
			conn, err := s.acceptConn(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, transport.ErrConnListenerClosed) {
					s.logger.Error(
						"unexpected error when accepting connection",
						"error", err.Error(),
					)
				}
				return
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				conn.start(connCtx)
			}()
		}
	}()
}

// Serve runs the server until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	return s.Close()
}

func (s *Server) acceptConn(ctx context.Context) (*conn, error) {
	con, err := s.l.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listening for connection")
	}

	conn := &conn{
		con:    con,
		wc:     webconn.New(con, s.opts.Conn),
		handle: s.handle,
		opts:   s.opts,
		logger: s.logger.With("conn", con.RemoteAddr().String()),
		clock:  s.clock,
	}

	return conn, nil
}

// Close stops accepting, closes open connections and waits for them.
func (s *Server) Close() error {
	if s.closeListener != nil {
		s.closeListener()
	}
	s.wg.Wait()
	return nil
}
