package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultStartupTimeout bounds how long Start waits for the server.
	DefaultStartupTimeout = 30 * time.Second

	readyPollInterval    = 100 * time.Millisecond
	maxReadyPollInterval = 2 * time.Second
	stopGrace            = 5 * time.Second
)

// Server manages an `ollama serve` child process. If a server is already
// answering at the base URL, Start leaves it alone and Stop is a no-op.
type Server struct {
	baseURL string
	binary  string
	timeout time.Duration
	logger  *slog.Logger
	client  *http.Client

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}

	// execCommand is swapped in tests.
	execCommand func(name string, args ...string) *exec.Cmd
}

// NewServer returns a Server for baseURL.
func NewServer(baseURL string, timeout time.Duration, logger *slog.Logger) *Server {
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		baseURL:     strings.TrimRight(baseURL, "/"),
		binary:      "ollama",
		timeout:     timeout,
		logger:      logger,
		client:      &http.Client{Timeout: 2 * time.Second},
		execCommand: exec.Command,
	}
}

// Running reports whether the API answers.
func (s *Server) Running(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Start launches `ollama serve` unless a server is already up, then waits
// until it answers or the startup timeout passes.
func (s *Server) Start(ctx context.Context) error {
	if s.Running(ctx) {
		s.logger.Debug("ollama already running", "url", s.baseURL)
		return nil
	}

	s.mu.Lock()
	if s.cmd == nil {
		cmd := s.execCommand(s.binary, "serve")
		if err := cmd.Start(); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("start ollama serve: %w", err)
		}
		s.cmd = cmd
		s.done = make(chan struct{})
		go func(done chan struct{}) {
			_ = cmd.Wait()
			close(done)
		}(s.done)
		s.logger.Info("started ollama serve", "pid", cmd.Process.Pid)
	}
	done := s.done
	s.mu.Unlock()

	return s.waitReady(ctx, done)
}

func (s *Server) waitReady(ctx context.Context, exited <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	interval := readyPollInterval
	for {
		if s.Running(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for ollama to start: %w", ctx.Err())
		case <-exited:
			return errors.New("ollama serve exited before becoming ready")
		case <-time.After(interval):
		}
		interval = min(interval*2, maxReadyPollInterval)
	}
}

// Stop interrupts a server started by Start and kills it if it has not
// exited within a few seconds.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return nil
	}
	cmd, done := s.cmd, s.done
	s.cmd, s.done = nil, nil

	select {
	case <-done:
		return nil
	default:
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		s.logger.Debug("interrupt ollama failed, killing", "err", err)
		_ = cmd.Process.Kill()
	}
	select {
	case <-done:
	case <-time.After(stopGrace):
		_ = cmd.Process.Kill()
		<-done
	}
	s.logger.Info("stopped ollama serve")
	return nil
}
