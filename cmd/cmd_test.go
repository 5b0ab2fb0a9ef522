// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/Thermoquad/ipmctl/pkg/config"
	"github.com/Thermoquad/ipmctl/pkg/controller"
	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

func newEmulatorEngine(t *testing.T) *controller.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Device.Port = emulatorPort
	engine, _, _, err := newEngine(cfg)
	if err != nil {
		t.Fatalf("newEngine() error = %v", err)
	}
	return engine
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantArg  string
	}{
		{"MEASURE?", "MEASURE?", ""},
		{"  adr 3 ", "ADR", "3"},
		{"VER?", "VER?", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		name, arg := parseEntry(tt.line)
		if name != tt.wantName || arg != tt.wantArg {
			t.Errorf("parseEntry(%q) = %q, %q, want %q, %q", tt.line, name, arg, tt.wantName, tt.wantArg)
		}
	}
}

func TestSendAndDescribe(t *testing.T) {
	engine := newEmulatorEngine(t)

	out, err := sendAndDescribe(engine, 0, ipm.CmdStatus, "", true)
	if err != nil {
		t.Fatalf("sendAndDescribe(STATUS?) error = %v", err)
	}
	if out != "STATUS,2,1,0,0,0,0\r\n" {
		t.Errorf("sendAndDescribe(STATUS?) = %q", out)
	}

	out, err = sendAndDescribe(engine, 0, ipm.CmdOff, "", true)
	if err != nil || out != "OFF: OK\n" {
		t.Errorf("sendAndDescribe(OFF) = %q, %v", out, err)
	}

	if _, err := sendAndDescribe(engine, 0, "BOGUS", "", true); err == nil {
		t.Error("sendAndDescribe(BOGUS) should fail")
	}
}

func typeLine(m menuModel, line string) menuModel {
	for _, r := range line {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(menuModel)
	}
	return m
}

func TestMenuInvalidCommandReprompts(t *testing.T) {
	m := initialMenuModel(newEmulatorEngine(t), "test", true)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(menuModel)
	m = typeLine(m, "HELP?")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(menuModel)
	if cmd != nil {
		t.Error("invalid command should not start a transaction")
	}
	if m.quitting {
		t.Error("invalid command should not quit")
	}
	if len(m.log) != 1 || !m.log[0].isError {
		t.Fatalf("log = %+v, want one error entry", m.log)
	}
}

func TestMenuSendsCommand(t *testing.T) {
	m := initialMenuModel(newEmulatorEngine(t), "test", true)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(menuModel)
	m = typeLine(m, "adr 2")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(menuModel)
	if cmd == nil || !m.busy {
		t.Fatal("ADR 2 should start a transaction")
	}
	next, _ = m.Update(cmd())
	m = next.(menuModel)
	if m.address != 2 {
		t.Errorf("address = %d, want 2", m.address)
	}

	m = typeLine(m, "MEASURE?")
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(menuModel)
	next, _ = m.Update(cmd())
	m = next.(menuModel)

	last := m.log[len(m.log)-1]
	if last.isError || !strings.HasPrefix(last.message, "MEASURE,60.00,") {
		t.Errorf("last log entry = %+v", last)
	}
}

func TestMenuAddressPrompt(t *testing.T) {
	m := initialMenuModel(newEmulatorEngine(t), "test", true)

	for i, name := range m.engine.Registry().Names() {
		if name == ipm.CmdAddress {
			m.commands.Select(i)
		}
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(menuModel)
	if cmd != nil {
		t.Error("ADR without an address should prompt, not send")
	}
	if m.focus != focusEntry || m.entry.Value() != "ADR " {
		t.Errorf("focus = %d, entry = %q", m.focus, m.entry.Value())
	}
}

// newEchoBridge starts a bridge that sends every binary frame back.
func newEchoBridge(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketConnection(t *testing.T) {
	conn, err := OpenWebSocketConnection(BridgeOptions{URL: newEchoBridge(t)})
	if err != nil {
		t.Fatalf("OpenWebSocketConnection() error = %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 16)
	if err := conn.SetReadTimeout(20 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if n, err := conn.Read(buf); n != 0 || err != nil {
		t.Fatalf("idle Read() = %d, %v, want 0, nil", n, err)
	}

	if err := conn.SetReadTimeout(time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write([]byte("VER?\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// read byte at a time, as the engine does
	var got []byte
	for len(got) < 5 {
		n, err := conn.Read(buf[:1])
		if err != nil || n == 0 {
			t.Fatalf("Read() = %d, %v after %q", n, err, got)
		}
		got = append(got, buf[0])
	}
	if string(got) != "VER?\n" {
		t.Errorf("echo = %q, want %q", got, "VER?\n")
	}
}

func TestWebSocketConnectionRejectsScheme(t *testing.T) {
	if _, err := OpenWebSocketConnection(BridgeOptions{URL: "http://localhost/"}); err == nil {
		t.Error("http:// URL should be rejected")
	}
}
