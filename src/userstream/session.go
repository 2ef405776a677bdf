package userstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

// KeyRenewer extends the validity of the listen key backing the session.
type KeyRenewer interface {
	KeepAliveListenKey(ctx context.Context) error
}

// Handler receives each raw message delivered by the stream. It runs on the
// session's read goroutine, concurrently with whoever opened the session.
type Handler func(message []byte)

// Session is one user-data push connection scoped to a single listen key.
// A Session is opened at most once and closed at most once; Close is safe to
// call at any point, including before Open or repeatedly.
type Session struct {
	log               *logger.Entry
	dialer            *websocket.Dialer
	renewer           KeyRenewer
	keepAliveInterval time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed bool

	wg sync.WaitGroup
}

func NewSession(renewer KeyRenewer, log *logger.Entry) *Session {
	cfg := GetConfig()
	return &Session{
		log:               log,
		dialer:            &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		renewer:           renewer,
		keepAliveInterval: cfg.KeepAliveInterval,
	}
}

// Open dials the push endpoint for listenKey and starts the read and keepalive
// goroutines. The handler keeps receiving messages until Close is called or
// the connection drops.
func (s *Session) Open(ctx context.Context, wsBaseURL, listenKey string, onMessage Handler) error {
	if onMessage == nil {
		return errors.New("onMessage handler is required")
	}

	streamURL := strings.TrimSuffix(wsBaseURL, "/") + "/ws/" + listenKey

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session already closed")
	}
	if s.conn != nil {
		return errors.New("session already open")
	}

	conn, _, err := s.dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", streamURL, err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.cancel = cancel

	s.log.WithField("url", streamURL).Info("User-data stream session opened")

	s.wg.Add(2)
	go s.readLoop(conn, onMessage)
	go s.keepAliveLoop(sessionCtx)

	return nil
}

func (s *Session) readLoop(conn *websocket.Conn, onMessage Handler) {
	defer s.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.log.WithError(err).Warn("User-data stream read ended")
			}
			return
		}
		onMessage(data)
	}
}

func (s *Session) keepAliveLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.renewer.KeepAliveListenKey(ctx); err != nil {
				s.log.WithError(err).Error("Listen key keepalive failed")
				continue
			}
			s.log.Debug("Listen key renewed")
		}
	}
}

// Close tears the session down. Idempotent and safe if Open was never called.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	s.wg.Wait()

	if conn != nil {
		s.log.Info("User-data stream session closed")
	}
}
