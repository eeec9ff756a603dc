package queuesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SessionState tracks the lifecycle of one authenticated connection.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAwaitingAuthAck
	StateAuthenticated
	StateCommandInFlight
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingAuthAck:
		return "awaiting_auth_ack"
	case StateAuthenticated:
		return "authenticated"
	case StateCommandInFlight:
		return "command_in_flight"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultSessionTimeout bounds the whole connect-auth-execute-close
// sequence.
const DefaultSessionTimeout = 5 * time.Second

// Session is a single-command authenticated connection to the queue
// service's websocket endpoint. Sessions are created per mutation and torn
// down right after; they are never pooled, which trades connection overhead
// for freedom from stale-auth state.
//
// Only one command may be in flight; replies are correlated by message id
// and anything else on the wire (events, stale replies) is dropped.
type Session struct {
	log   *zap.Logger
	codec Codec

	mu    sync.Mutex
	state SessionState
	conn  *websocket.Conn
}

// DialSession opens a websocket to wsURL, authenticates with token and
// returns a session in the authenticated state. The timeout covers dial,
// auth and every later Execute on the returned session; on expiry the
// connection is forcibly closed and a TimeoutError is returned. Callers
// must not retry automatically.
func DialSession(ctx context.Context, log *zap.Logger, wsURL string, token string, codec Codec, timeout time.Duration) (*Session, error) {
	if strings.TrimSpace(wsURL) == "" {
		return nil, errors.New("queue service ws_url required")
	}
	if token == "" {
		return nil, errors.New("queue service token required")
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	s := &Session{log: log, codec: codec, state: StateConnecting}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		s.setState(StateClosed)
		if ctx.Err() != nil {
			return nil, &TimeoutError{Stage: "connect"}
		}
		return nil, &NetworkError{Err: err}
	}
	s.conn = conn
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)

	s.setState(StateAwaitingAuthAck)
	ack, err := s.roundTrip("auth", map[string]any{"token": token}, "auth")
	if err != nil {
		s.forceClose()
		return nil, err
	}
	if ackErr := ack.Err(); ackErr != nil {
		s.forceClose()
		// The service answers a bad token in-band rather than dropping
		// the connection; treat it like any other unauthorized backend.
		return nil, &DegradedError{Marker: ackErr.Error()}
	}

	s.setState(StateAuthenticated)
	return s, nil
}

// Execute sends one mutating command and waits for its correlated result.
// Legal only in the authenticated state, and only once at a time.
func (s *Session) Execute(ctx context.Context, command string, args map[string]any) (CommandResult, error) {
	if err := s.transition(StateAuthenticated, StateCommandInFlight); err != nil {
		return CommandResult{}, err
	}

	result, err := s.roundTrip(command, args, "execute")
	if err != nil {
		s.forceClose()
		return CommandResult{}, err
	}

	s.setState(StateAuthenticated)
	if cmdErr := result.Err(); cmdErr != nil {
		return result, cmdErr
	}
	return result, nil
}

// Close tears the session down. Safe from any state and idempotent;
// closing an in-flight session abandons the wait without error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// roundTrip writes one envelope and reads frames until the reply with the
// matching message id arrives. Frames for other ids and undecodable frames
// (the service multiplexes event broadcasts onto the same socket) are
// dropped, not buffered.
func (s *Session) roundTrip(command string, args map[string]any, stage string) (CommandResult, error) {
	env := s.codec.Encode(command, args)
	payload, err := json.Marshal(env)
	if err != nil {
		return CommandResult{}, err
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return CommandResult{}, fmt.Errorf("session closed during %s", stage)
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return CommandResult{}, s.wireError(err, stage)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return CommandResult{}, s.wireError(err, stage)
		}
		result, err := s.codec.Decode(raw)
		if err != nil {
			s.log.Debug("dropping undecodable frame", zap.Error(err))
			continue
		}
		if result.MessageID != env.MessageID {
			s.log.Debug("dropping uncorrelated frame",
				zap.String("message_id", result.MessageID),
				zap.String("awaiting", env.MessageID))
			continue
		}
		return result, nil
	}
}

func (s *Session) wireError(err error, stage string) error {
	if isTimeout(err) {
		return &TimeoutError{Stage: stage}
	}
	return &NetworkError{Err: err}
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) transition(from SessionState, to SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("session is %s, need %s", s.state, from)
	}
	s.state = to
	return nil
}

func (s *Session) forceClose() {
	_ = s.Close()
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// WebsocketURL derives the session endpoint from the service base URL, the
// same way the dashboard's other transports derive theirs.
func WebsocketURL(baseURL string) (string, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return "", errors.New("queue service base_url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/ws"
	return parsed.String(), nil
}
