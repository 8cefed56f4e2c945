package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"golang.org/x/time/rate"

	"github.com/syaihu/Thunderirc-Radio/telemetry"
)

const (
	readBufferSize = 4096
	// maxLineLen is the RFC 1459 limit including CRLF; longer outbound lines are truncated.
	maxLineLen = 512

	defaultDialTimeout  = 15 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// ErrNotConnected is returned by send and read operations while the session has no live connection.
var ErrNotConnected = errors.New("irc: not connected")

// ErrThrottled is returned when the outbound rate limit would hold a line past the write timeout.
var ErrThrottled = errors.New("irc: send throttled")

// Config describes the server and identity a Session registers with.
type Config struct {
	Server   string
	Port     int
	Nick     string
	RealName string
	Channels []string
	UseTLS   bool
	// TLSConfig overrides the default client TLS settings when UseTLS is set.
	TLSConfig    *tls.Config
	MaxLineBytes int
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// SendRate limits outbound lines per second after registration. Zero disables it.
	SendRate  float64
	SendBurst int
}

// DialFunc opens the raw transport. It matches (*net.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Session owns one IRC transport connection at a time.
//
// The connected flag is written by whichever goroutine observes a failure or
// completes a handshake and read by everyone; each connection carries its own
// Framer so a late failure on a replaced connection cannot affect the new one.
type Session struct {
	cfg  Config
	dial DialFunc
	log  *slog.Logger

	limiter *rate.Limiter

	mu        sync.Mutex // guards link and serialises writes
	link      *link
	connected atomic.Bool
}

type link struct {
	conn   net.Conn
	framer Framer
	buf    []byte
}

// Option customises a Session.
type Option func(*Session)

// WithDialer replaces the transport dialer.
func WithDialer(d DialFunc) Option {
	return func(s *Session) { s.dial = d }
}

// NewSession returns a disconnected Session.
func NewSession(cfg Config, logger *slog.Logger, opts ...Option) *Session {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{
		cfg: cfg,
		log: logger.With(slog.String("component", "irc")),
	}
	if cfg.SendRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), max(cfg.SendBurst, 1))
	}
	d := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}
	s.dial = d.DialContext
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nick returns the nick the session registers with.
func (s *Session) Nick() string { return s.cfg.Nick }

// Connected reports whether the last handshake succeeded and no I/O error has been seen since.
func (s *Session) Connected() bool { return s.connected.Load() }

// Connect dials the server, optionally wraps the connection in TLS and sends
// the NICK/USER registration. The session is marked connected only once both
// registration lines were written. Any previous connection is closed.
func (s *Session) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server, strconv.Itoa(s.cfg.Port))
	s.log.Info("connecting to irc", slog.String("addr", addr), slog.Bool("tls", s.cfg.UseTLS))

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()
	conn, err := s.dial(dctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if s.cfg.UseTLS {
		tc := tls.Client(conn, s.tlsConfig())
		if err := tc.HandshakeContext(dctx); err != nil {
			_ = conn.Close()
			return fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		conn = tc
	}

	l := &link{conn: conn, buf: make([]byte, readBufferSize)}
	l.framer.Max = s.cfg.MaxLineBytes
	for _, msg := range []ircmsg.Message{
		ircmsg.MakeMessage(nil, "", CmdNick, s.cfg.Nick),
		trailing(ircmsg.MakeMessage(nil, "", CmdUser, s.cfg.Nick, "0", "*", s.cfg.RealName)),
	} {
		b, err := encode(msg)
		if err == nil {
			err = writeTo(conn, b, s.cfg.WriteTimeout)
		}
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("register with %s: %w", addr, err)
		}
		telemetry.IncLinesSent()
	}

	s.mu.Lock()
	old := s.link
	s.link = l
	s.mu.Unlock()
	if old != nil {
		_ = old.conn.Close()
	}
	s.connected.Store(true)
	telemetry.SetIRCConnected(true)
	s.log.Info("connected to irc server", slog.String("addr", addr), slog.String("nick", s.cfg.Nick))
	return nil
}

func (s *Session) tlsConfig() *tls.Config {
	if s.cfg.TLSConfig != nil {
		c := s.cfg.TLSConfig.Clone()
		if c.ServerName == "" {
			c.ServerName = s.cfg.Server
		}
		return c
	}
	return &tls.Config{
		ServerName: s.cfg.Server,
		MinVersion: tls.VersionTLS12,
	}
}

// ReadLines waits up to timeout for data and returns the complete lines now
// framed. A timeout is not an error: it yields no lines and a nil error. EOF
// and transport errors drop the connection and are returned for logging.
func (s *Session) ReadLines(timeout time.Duration) ([]string, error) {
	s.mu.Lock()
	l := s.link
	s.mu.Unlock()
	if l == nil || !s.connected.Load() {
		return nil, ErrNotConnected
	}

	if err := l.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		s.drop(l, err)
		return nil, err
	}
	n, err := l.conn.Read(l.buf)

	var lines []string
	if n > 0 {
		var ferr error
		lines, ferr = l.framer.Feed(l.buf[:n])
		if ferr != nil {
			s.drop(l, ferr)
			return lines, ferr
		}
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return lines, nil
		}
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("connection closed by server: %w", err)
		}
		s.drop(l, err)
		return lines, err
	}
	return lines, nil
}

// SendLine writes one raw protocol line; the CRLF terminator is appended.
// It is a logged no-op while disconnected, and a write failure drops the connection.
func (s *Session) SendLine(line string) error {
	if strings.ContainsAny(line, "\r\n\x00") {
		return fmt.Errorf("irc: line contains forbidden characters")
	}
	return s.write([]byte(line+"\r\n"), line)
}

// Send encodes msg and writes it.
func (s *Session) Send(msg ircmsg.Message) error {
	b, err := encode(msg)
	if err != nil {
		s.log.Error("failed to encode line", slog.String("command", msg.Command), slog.Any("err", err))
		return err
	}
	return s.write(b, msg.Command)
}

// SendMessage sends PRIVMSG target :text.
func (s *Session) SendMessage(target, text string) error {
	return s.Send(trailing(ircmsg.MakeMessage(nil, "", CmdPrivmsg, target, text)))
}

// Join sends JOIN for channel, adding the '#' prefix when missing.
func (s *Session) Join(channel string) error {
	channel = NormalizeChannel(channel)
	s.log.Info("joining channel", slog.String("channel", channel))
	return s.Send(ircmsg.MakeMessage(nil, "", CmdJoin, channel))
}

// JoinAll joins every configured channel in configured order.
func (s *Session) JoinAll() {
	for _, ch := range s.cfg.Channels {
		_ = s.Join(ch)
	}
}

// Pong answers a liveness probe with the same token.
func (s *Session) Pong(token string) error {
	return s.Send(trailing(ircmsg.MakeMessage(nil, "", CmdPong, token)))
}

// Abort drops the current connection without a farewell.
func (s *Session) Abort(reason error) {
	s.mu.Lock()
	l := s.link
	s.mu.Unlock()
	if l != nil {
		s.drop(l, reason)
	}
}

// Close sends a best-effort QUIT and closes the connection. Close errors are swallowed.
func (s *Session) Close(reason string) {
	if s.connected.Load() {
		_ = s.Send(trailing(ircmsg.MakeMessage(nil, "", CmdQuit, reason)))
	}
	s.mu.Lock()
	l := s.link
	s.link = nil
	s.mu.Unlock()
	s.connected.Store(false)
	telemetry.SetIRCConnected(false)
	if l != nil {
		if err := l.conn.Close(); err != nil {
			s.log.Debug("irc close", slog.Any("err", err))
		}
	}
}

func (s *Session) write(b []byte, what string) error {
	if !s.connected.Load() {
		s.log.Warn("not connected; dropping outbound line", slog.String("line", what))
		return ErrNotConnected
	}
	if err := s.throttle(); err != nil {
		s.log.Warn("outbound rate exceeded; dropping line", slog.String("line", what))
		return err
	}
	s.mu.Lock()
	l := s.link
	if l == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	err := writeTo(l.conn, b, s.cfg.WriteTimeout)
	s.mu.Unlock()
	if err != nil {
		s.log.Error("failed to send line", slog.String("line", what), slog.Any("err", err))
		s.drop(l, err)
		return err
	}
	telemetry.IncLinesSent()
	s.log.Debug("sent", slog.String("line", strings.TrimRight(string(b), "\r\n")))
	return nil
}

// throttle waits for the send limiter, giving up once the wait would exceed the write timeout.
func (s *Session) throttle() error {
	if s.limiter == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	}
	return nil
}

// drop closes l and, if it is still the current connection, marks the session disconnected.
func (s *Session) drop(l *link, reason error) {
	s.mu.Lock()
	current := s.link == l
	if current {
		s.link = nil
	}
	s.mu.Unlock()
	_ = l.conn.Close()
	if current && s.connected.Swap(false) {
		telemetry.SetIRCConnected(false)
		s.log.Warn("irc connection lost", slog.Any("err", reason))
	}
}

func writeTo(conn net.Conn, b []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	_, err := conn.Write(b)
	return err
}

func encode(msg ircmsg.Message) ([]byte, error) {
	b, err := msg.LineBytesStrict(true, maxLineLen)
	if errors.Is(err, ircmsg.ErrorBodyTooLong) {
		// truncated but still sendable
		err = nil
	}
	return b, err
}

func trailing(msg ircmsg.Message) ircmsg.Message {
	msg.ForceTrailing()
	return msg
}

// NormalizeChannel adds the '#' prefix when missing.
func NormalizeChannel(channel string) string {
	if !strings.HasPrefix(channel, "#") {
		return "#" + channel
	}
	return channel
}
