package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kataras/golog"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING"
	pongResponse = "PONG"
	statusOK     = "SUCCESS"
	statusError  = "ERROR"

	requestReadTimeout = 3 * time.Second
)

type tcpServer struct {
	mu       sync.Mutex
	lis      net.Listener
	incoming chan *tcpConn
	port     int
}

func newTCPServer() *tcpServer { return &tcpServer{incoming: make(chan *tcpConn, 8)} }

// Start binds only the first port of the range so two residents can never coexist.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	start, _ := PortRange()
	addr := net.JoinHostPort(residentHost, strconv.Itoa(start))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.lis = lis
	s.port = start
	golog.Infof("SINGLEINSTANCE: listening on %s", addr)
	go s.acceptLoop(ctx, lis)
	return nil
}

func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		go s.handle(ctx, c)
	}
}

// handle reads one request line. Pings are answered here; capture requests are queued for Next.
func (s *tcpServer) handle(ctx context.Context, c net.Conn) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(requestReadTimeout))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	line, _ := br.ReadString('\n')
	line = strings.TrimSpace(line)

	if line == pingRequest {
		golog.Debugf("SINGLEINSTANCE: PING from %s", remote)
		_, _ = bw.WriteString(pongResponse + "\n")
		_ = bw.Flush()
		_ = c.Close()
		return
	}

	mode, err := parseMode(line)
	if err != nil {
		golog.Warnf("SINGLEINSTANCE: bad request %q from %s", line, remote)
		_, _ = bw.WriteString(statusError + "\n" + err.Error())
		_ = bw.Flush()
		_ = c.Close()
		return
	}
	// The selection can take as long as the user wants.
	_ = c.SetDeadline(time.Time{})
	golog.Infof("SINGLEINSTANCE: request from %s mode=%s", remote, mode)
	select {
	case s.incoming <- &tcpConn{c: c, r: Request{Mode: mode}, w: bw}:
	case <-ctx.Done():
		_ = c.Close()
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc, ok := <-s.incoming:
		if !ok {
			return nil, net.ErrClosed
		}
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	err := s.lis.Close()
	s.lis = nil
	s.port = 0
	return err
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(detail string) error {
	if _, err := tc.w.WriteString(statusOK + "\n" + detail); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(statusError + "\n" + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }

type tcpClient struct{}

func (tcpClient) TryDelegate(ctx context.Context, mode Mode) (bool, string, error) {
	timeout := 300 * time.Millisecond
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < timeout {
			timeout = d
		}
	}
	start, end := PortRange()
	for port := start; port <= end; port++ {
		if err := ctx.Err(); err != nil {
			return false, "", err
		}
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, timeout) {
			continue
		}
		detail, err := request(ctx, addr, mode, timeout)
		return true, detail, err
	}
	return false, "", nil
}

func request(ctx context.Context, addr string, mode Mode, dialTimeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(string(mode) + "\n"); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	rest, _ := br.ReadString(0)
	switch strings.TrimSpace(status) {
	case statusOK:
		return rest, nil
	case statusError:
		return "", errors.New(rest)
	default:
		return "", fmt.Errorf("unexpected resident status %q", strings.TrimSpace(status))
	}
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte(pingRequest + "\n")); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && strings.TrimSpace(resp) == pongResponse
}
