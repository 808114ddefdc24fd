// Package singleinstance lets a one-shot invocation hand its selection request to a running
// resident over loopback TCP.
package singleinstance

import (
	"context"
	"errors"
	"os"
	"strconv"
)

// Mode is what the resident should do with the capture once the selection is made.
type Mode string

const (
	ModeSave      Mode = "SAVE"
	ModeClipboard Mode = "CLIPBOARD"
)

// ErrUnknownMode is returned for a request line the server does not understand.
var ErrUnknownMode = errors.New("unknown request mode")

// Server owns the TCP endpoint and answers delegated requests.
type Server interface {
	// Start binds the first port of the configured range and begins accepting clients.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted request, or ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one delegated request awaiting its response.
type Conn interface {
	Request() Request
	// RespondSuccess sends success with an optional detail line, such as the saved path.
	RespondSuccess(detail string) error
	RespondError(msg string) error
	Close() error
}

// Request is a single delegated selection.
type Request struct {
	Mode Mode
}

// Client delegates to a resident server.
type Client interface {
	// TryDelegate scans the port range and hands the request to the first resident that answers.
	// When no resident is found it returns delegated=false and a nil error.
	TryDelegate(ctx context.Context, mode Mode) (delegated bool, detail string, err error)
}

func NewServer() Server { return newTCPServer() }

func NewClient() Client { return &tcpClient{} }

func parseMode(line string) (Mode, error) {
	switch m := Mode(line); m {
	case ModeSave, ModeClipboard:
		return m, nil
	default:
		return "", ErrUnknownMode
	}
}

const (
	defaultPortStart = 49560
	defaultPortEnd   = 49570
)

// PortRange is the inclusive loopback port range residents listen on, from
// SCREEN_SELECT_PORT_START and SCREEN_SELECT_PORT_END. Values are clamped to [1024, 65535].
func PortRange() (start, end int) {
	start = min(max(envPort("SCREEN_SELECT_PORT_START", defaultPortStart), 1024), 65535)
	end = min(max(envPort("SCREEN_SELECT_PORT_END", defaultPortEnd), 1024), 65535)
	if end < start {
		start, end = end, start
	}
	return start, end
}

func envPort(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}
