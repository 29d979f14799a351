// Package rovercam implements the camera robot car's onboard server:
// a real-time multi-client MJPEG broadcast pipeline plus a small JSON
// command gateway to the motor controller.
//
// One capture loop pulls encoded frames from the image sensor at a
// bounded rate and fans each one out to every attached stream client.
// Capture and network I/O stay decoupled throughout: a slow or stalled
// client misses frames, it never stalls frame production.
//
// Example:
//
//	src, err := capture.NewDirSource("./frames")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv, err := rovercam.New(rovercam.DefaultOptions(), src, motor.NopLink{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
package rovercam

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/roverhub/rovercam/broadcast"
	"github.com/roverhub/rovercam/capture"
	"github.com/roverhub/rovercam/client"
	"github.com/roverhub/rovercam/frame"
	"github.com/roverhub/rovercam/gateway"
	"github.com/roverhub/rovercam/motor"
)

// Options contains configuration for creating a Server.
type Options struct {
	// Addr is the HTTP listen address.
	Addr string

	// Boundary is the multipart boundary token for the MJPEG stream.
	Boundary string

	// CaptureInterval is the target time between captures;
	// CaptureBackoff the retry delay after a transient sensor failure.
	CaptureInterval time.Duration
	CaptureBackoff  time.Duration

	// ClientBudget is the per-client outbound byte budget.
	ClientBudget int64

	// LockWait bounds frame-cache lock acquisition.
	LockWait time.Duration
}

// DefaultOptions returns the settings the car ships with.
func DefaultOptions() Options {
	return Options{
		Addr:            ":8080",
		Boundary:        broadcast.DefaultBoundary,
		CaptureInterval: capture.DefaultInterval,
		CaptureBackoff:  capture.DefaultBackoff,
		ClientBudget:    client.DefaultBudget,
		LockWait:        frame.DefaultLockWait,
	}
}

// Server owns the whole pipeline: frame cache, client registry,
// broadcaster, capture loop, command gateway and the HTTP surface.
type Server struct {
	opts Options
	src  capture.Source

	cache       *frame.Cache
	registry    *client.Registry
	broadcaster *broadcast.Broadcaster
	loop        *capture.Loop
	gateway     *gateway.Gateway

	engine   *gin.Engine
	httpSrv  *http.Server
	upgrader websocket.Upgrader

	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New wires a Server over the given sensor source and motor link.
func New(opts Options, src capture.Source, link motor.Link) (*Server, error) {
	if src == nil {
		return nil, errors.New("capture source cannot be nil")
	}
	if link == nil {
		return nil, errors.New("motor link cannot be nil")
	}

	cache := frame.NewCache(opts.LockWait)
	registry := client.NewRegistry()
	caster := broadcast.New(registry, cache, opts.Boundary)
	loop := capture.NewLoop(src, cache, caster, opts.CaptureInterval, opts.CaptureBackoff)
	gw := gateway.New(link, nil)

	s := &Server{
		opts:        opts,
		src:         src,
		cache:       cache,
		registry:    registry,
		broadcaster: caster,
		loop:        loop,
		gateway:     gw,
		done: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.engine = s.buildRouter()
	s.httpSrv = &http.Server{Addr: opts.Addr, Handler: s.engine}

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"addr":     opts.Addr,
		"interval": opts.CaptureInterval,
	}).Info("Rovercam server created")
	return s, nil
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Gateway exposes the command gateway.
func (s *Server) Gateway() *gateway.Gateway {
	return s.gateway
}

// Start launches the capture loop and the HTTP listener, and commands
// the car to a safe Stop, mirroring power-on behavior.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("server already started")
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if err := s.gateway.SendStop(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Start",
			"error":    err,
		}).Warn("Initial stop command failed")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop.Run(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "Start",
				"error":    err,
			}).Error("HTTP server exited")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"addr":     s.opts.Addr,
	}).Info("Rovercam server started")
	return nil
}

// Stop shuts the pipeline down: capture loop first, then the HTTP
// listener, then every remaining stream client.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	s.cancel()
	close(s.done)

	err := s.httpSrv.Shutdown(ctx)

	// Hijacked stream connections are outside the HTTP server's
	// bookkeeping; drop them explicitly.
	s.registry.ForEachLive(func(*client.Client) bool { return false })

	s.wg.Wait()
	logrus.WithFields(logrus.Fields{
		"function": "Stop",
	}).Info("Rovercam server stopped")
	return err
}
