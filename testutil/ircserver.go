package testutil

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// IRCServer is a scripted in-process IRC server listening on loopback.
// Every line any client writes is queued on Lines; Send writes to the most
// recently accepted client.
type IRCServer struct {
	t     *testing.T
	ln    net.Listener
	lines chan string

	mu       sync.Mutex
	conns    []net.Conn
	accepted int
}

// NewIRCServer starts the server and registers cleanup with t.
func NewIRCServer(t *testing.T) *IRCServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &IRCServer{t: t, ln: ln, lines: make(chan string, 256)}
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

func (s *IRCServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.accepted++
		s.mu.Unlock()
		go s.readLoop(conn)
	}
}

func (s *IRCServer) readLoop(conn net.Conn) {
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		s.lines <- strings.TrimRight(sc.Text(), "\r")
	}
}

// Host returns the loopback address the server listens on.
func (s *IRCServer) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

// Port returns the listening port.
func (s *IRCServer) Port() int {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Accepted returns how many client connections have been accepted.
func (s *IRCServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Send writes raw data (caller supplies terminators) to the newest client.
func (s *IRCServer) Send(data string) {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		s.t.Fatalf("no client connected")
	}
	if _, err := s.conns[len(s.conns)-1].Write([]byte(data)); err != nil {
		s.t.Fatalf("write to client: %v", err)
	}
}

// DropClient closes the newest client connection.
func (s *IRCServer) DropClient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) > 0 {
		_ = s.conns[len(s.conns)-1].Close()
	}
}

// Expect returns the next line a client wrote, failing the test after timeout.
func (s *IRCServer) Expect(timeout time.Duration) string {
	s.t.Helper()
	select {
	case l := <-s.lines:
		return l
	case <-time.After(timeout):
		s.t.Fatalf("timed out waiting for client line")
		return ""
	}
}

// ExpectNone fails the test if a client writes anything within d.
func (s *IRCServer) ExpectNone(d time.Duration) {
	s.t.Helper()
	select {
	case l := <-s.lines:
		s.t.Fatalf("unexpected client line %q", l)
	case <-time.After(d):
	}
}

// WaitFor skips lines until one with the given prefix arrives.
func (s *IRCServer) WaitFor(prefix string, timeout time.Duration) string {
	s.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case l := <-s.lines:
			if strings.HasPrefix(l, prefix) {
				return l
			}
		case <-deadline:
			s.t.Fatalf("timed out waiting for line with prefix %q", prefix)
			return ""
		}
	}
}

// Close stops accepting and closes all clients.
func (s *IRCServer) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
}
