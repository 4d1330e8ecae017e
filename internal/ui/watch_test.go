package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func pushEvent(t *testing.T, m WatchModel, ev WatchEvent) WatchModel {
	t.Helper()
	next, _ := m.Update(watchEventMsg(ev))
	model, ok := next.(WatchModel)
	if !ok {
		t.Fatalf("Update returned %T, want WatchModel", next)
	}
	return model
}

func pressKey(t *testing.T, m WatchModel, key rune) WatchModel {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{key}})
	model, ok := next.(WatchModel)
	if !ok {
		t.Fatalf("Update returned %T, want WatchModel", next)
	}
	return model
}

func TestWatchModelAppendsEvents(t *testing.T) {
	m := NewWatchModel(make(chan WatchEvent), []string{"block"})

	m = pushEvent(t, m, WatchEvent{
		Time:      time.Now(),
		Action:    "add",
		Subsystem: "block",
		Syspath:   "/sys/devices/virtual/block/loop0",
		Devnode:   "/dev/loop0",
	})

	if m.total != 1 || len(m.events) != 1 {
		t.Fatalf("total = %d, buffered = %d, want 1 and 1", m.total, len(m.events))
	}
	view := m.View()
	if !strings.Contains(view, "loop0") || !strings.Contains(view, "add") {
		t.Errorf("view does not show the event:\n%s", view)
	}
	if !strings.Contains(view, "block") {
		t.Errorf("view does not show the subsystem filter:\n%s", view)
	}
}

func TestWatchModelScrollbackBounded(t *testing.T) {
	m := NewWatchModel(make(chan WatchEvent), nil)

	for i := 0; i < WatchScrollback+50; i++ {
		m = pushEvent(t, m, WatchEvent{Action: "change", Subsystem: "net", Syspath: "/d"})
	}

	if len(m.events) != WatchScrollback {
		t.Errorf("buffered = %d, want %d", len(m.events), WatchScrollback)
	}
	if m.total != WatchScrollback+50 {
		t.Errorf("total = %d, want %d", m.total, WatchScrollback+50)
	}
}

func TestWatchModelPauseAndClear(t *testing.T) {
	m := NewWatchModel(make(chan WatchEvent), nil)
	m = pushEvent(t, m, WatchEvent{Action: "add", Syspath: "/d/1"})

	m = pressKey(t, m, 'p')
	if !m.paused {
		t.Fatal("model not paused after 'p'")
	}
	m = pushEvent(t, m, WatchEvent{Action: "add", Syspath: "/d/2"})
	if len(m.events) != 1 {
		t.Errorf("paused model buffered %d events, want 1", len(m.events))
	}
	if m.total != 2 {
		t.Errorf("total = %d, want 2 (counter keeps running while paused)", m.total)
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("view does not show PAUSED while paused")
	}

	m = pressKey(t, m, 'c')
	if len(m.events) != 0 {
		t.Errorf("cleared model still buffers %d events", len(m.events))
	}
}

func TestWatchModelQuitsWhenSourceCloses(t *testing.T) {
	m := NewWatchModel(make(chan WatchEvent), nil)
	next, cmd := m.Update(watchClosedMsg{})
	if cmd == nil {
		t.Fatal("no command returned on closed source, want tea.Quit")
	}
	if msg := cmd(); msg != (tea.QuitMsg{}) {
		t.Errorf("command produced %T, want tea.QuitMsg", msg)
	}
	if model := next.(WatchModel); !model.closed {
		t.Error("model not marked closed")
	}
}
