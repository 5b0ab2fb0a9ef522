// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/term"
	"k8s.io/klog/v2"

	"github.com/Thermoquad/ipmctl/pkg/config"
	"github.com/Thermoquad/ipmctl/pkg/controller"
	"github.com/Thermoquad/ipmctl/pkg/emulator"
)

// emulatorPort selects the in-process iPM emulator instead of a device.
const emulatorPort = "emulator"

// Connection is a channel to the iPM that can be closed
type Connection interface {
	controller.Channel
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) SetReadTimeout(t time.Duration) error {
	return s.port.SetReadTimeout(t)
}

func (s *SerialConnection) Drain() error {
	return s.port.Drain()
}

func (s *SerialConnection) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection bridges the serial link through a WebSocket. A reader
// goroutine queues binary frames so reads can time out like a serial port.
type WebSocketConnection struct {
	conn    *websocket.Conn
	frames  chan []byte
	done    chan struct{}
	stop    chan struct{}
	timeout time.Duration

	mu     sync.Mutex
	buf    []byte
	closed bool
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:    conn,
		frames:  make(chan []byte, 64),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
		timeout: controller.ReadWait,
	}
	go w.readLoop()
	return w
}

func (w *WebSocketConnection) readLoop() {
	defer close(w.done)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.closed = true
			w.mu.Unlock()
			return
		}
		// The bridge only forwards serial bytes as binary frames
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case w.frames <- data:
		case <-w.stop:
			return
		}
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	w.mu.Lock()
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		w.mu.Unlock()
		return n, nil
	}
	timeout := w.timeout
	w.mu.Unlock()

	select {
	case data := <-w.frames:
		w.mu.Lock()
		defer w.mu.Unlock()
		n := copy(p, data)
		w.buf = append(w.buf, data[n:]...)
		return n, nil
	case <-w.done:
		return 0, ErrConnectionClosed
	case <-time.After(timeout):
		return 0, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) SetReadTimeout(t time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeout = t
	return nil
}

// Drain is a no-op: WriteMessage returns once the frame is sent.
func (w *WebSocketConnection) Drain() error {
	return nil
}

func (w *WebSocketConnection) ResetInputBuffer() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = nil
	for {
		select {
		case <-w.frames:
		default:
			return nil
		}
	}
}

func (w *WebSocketConnection) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.stop)
	}
	w.mu.Unlock()
	return w.conn.Close()
}

// PasswordEnv names the environment variable holding the bridge password.
const PasswordEnv = "IPM_PASSWORD"

// serialMode is the iPM line setting: 8N1 at the configured baud rate.
func serialMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// openSerialPort opens the device named in dev.
func openSerialPort(dev config.DeviceConfig) (serial.Port, error) {
	port, err := serial.Open(dev.Port, serialMode(dev.Baud))
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", dev.Port)
	}
	return port, nil
}

// OpenSerialConnection opens the iPM serial line
func OpenSerialConnection(dev config.DeviceConfig) (Connection, error) {
	port, err := openSerialPort(dev)
	if err != nil {
		return nil, err
	}
	return &SerialConnection{port: port}, nil
}

// BridgeOptions describe a WebSocket serial bridge.
type BridgeOptions struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

func (o BridgeOptions) header() http.Header {
	h := http.Header{}
	if o.Username != "" && o.Password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(o.Username + ":" + o.Password))
		h.Set("Authorization", "Basic "+token)
	}
	return h
}

// OpenWebSocketConnection dials a serial bridge that forwards the iPM line
// as binary frames.
func OpenWebSocketConnection(opts BridgeOptions) (Connection, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid bridge URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.Errorf("unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.SkipSSLVerify}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, u.String(), opts.header())
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "bridge handshake failed (HTTP %d)", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "bridge dial failed")
	}
	klog.V(2).InfoS("Bridge connected", "url", u.Redacted())
	return newWebSocketConnection(conn), nil
}

// GetPassword returns $IPM_PASSWORD, or prompts for it on the terminal.
func GetPassword() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Bridge password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", errors.Wrap(err, "read password")
		}
		return string(pw), nil
	}

	// piped stdin
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection opens the bridge when --url is set, otherwise the emulator
// or the serial device named in cfg.
func OpenConnection(cfg *config.Config) (Connection, string, error) {
	if wsURL != "" {
		opts := BridgeOptions{URL: wsURL, Username: wsUsername, SkipSSLVerify: wsNoSSLVerify}
		if opts.Username != "" {
			pw, err := GetPassword()
			if err != nil {
				return nil, "", err
			}
			opts.Password = pw
		}
		conn, err := OpenWebSocketConnection(opts)
		if err != nil {
			return nil, "", err
		}
		return conn, "WebSocket: " + wsURL, nil
	}

	dev := cfg.Device
	switch dev.Port {
	case "":
		return nil, "", errors.New("either --port or --url must be specified")
	case emulatorPort:
		d := emulator.New(emulator.WithFirmwareVersion(dev.FirmwareVersion))
		return emulator.NewLink(d), "Emulator (in process)", nil
	}

	conn, err := OpenSerialConnection(dev)
	if err != nil {
		return nil, "", err
	}
	return conn, fmt.Sprintf("Serial: %s @ %d baud", dev.Port, dev.Baud), nil
}
