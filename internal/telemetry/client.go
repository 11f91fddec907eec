package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const defaultConnectTimeout = 15 * time.Second

// ClientConfig describes the socket.io endpoint.
type ClientConfig struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// socketEmitter adapts a socket.io client to Emitter.
type socketEmitter struct {
	io *socket.Socket
}

func (e *socketEmitter) Emit(event string, payload any) {
	e.io.Emit(event, payload)
}

func (e *socketEmitter) Close() error {
	e.io.Disconnect()
	return nil
}

// Dial connects to the socket.io server and waits for the connection to be
// acknowledged.
func Dial(ctx context.Context, cfg ClientConfig) (Emitter, error) {
	logger := ctxlog.FromContext(ctx).With("component", "telemetry", "url", cfg.URL)
	logger.Debug("Connecting telemetry client.")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("telemetry URL %q must include a scheme and host", cfg.URL)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Telemetry connected.", "sid", io.Id())
		signalConnect(connectChan, nil)
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		signalConnect(connectChan, err)
	})
	io.Connect()

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &socketEmitter{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", timeout)
	}
}

// signalConnect delivers the first connection outcome. Later outcomes are
// dropped so a callback firing after Dial returned never blocks.
func signalConnect(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
