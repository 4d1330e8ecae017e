package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muurk/devtree/internal/subsys/subsystest"
)

func seedFake() *subsystest.Fake {
	fake := subsystest.New()
	fake.AddDevice(subsystest.Record{
		Syspath:    "/sys/devices/pci0000:00/0000:00:1f.2/host0/target0:0:0/0:0:0:0/block/sda",
		Subsystem:  "block",
		Devtype:    "disk",
		Devnode:    "/dev/sda",
		Properties: map[string]string{"DEVTYPE": "disk", "ID_MODEL": "EXAMPLE_SSD"},
	})
	fake.AddDevice(subsystest.Record{
		Syspath:   "/sys/devices/virtual/net/lo",
		Subsystem: "net",
	})
	return fake
}

func newTestServer(fake *subsystest.Fake, backlog int) *Server {
	return &Server{
		config: &Config{Backlog: backlog},
		sys:    fake,
		hub:    NewHub(backlog),
	}
}

func TestHubBacklogReplay(t *testing.T) {
	hub := NewHub(3)

	paths := []string{"/d/1", "/d/2", "/d/3", "/d/4", "/d/5"}
	for _, p := range paths {
		hub.Publish(Event{Action: "add", Syspath: p})
	}

	client := &Client{hub: hub, send: make(chan []byte, sendBufferSize)}
	replay := hub.Register(client)
	defer hub.Unregister(client)

	if len(replay) != 3 {
		t.Fatalf("replay has %d events, want 3", len(replay))
	}
	for i, ev := range replay {
		wantSeq := uint64(i + 3)
		wantPath := paths[i+2]
		if ev.Seq != wantSeq || ev.Syspath != wantPath {
			t.Errorf("replay[%d] = seq %d path %q, want seq %d path %q",
				i, ev.Seq, ev.Syspath, wantSeq, wantPath)
		}
	}
}

func TestHubPublishDelivers(t *testing.T) {
	hub := NewHub(8)
	client := &Client{hub: hub, send: make(chan []byte, 8)}
	hub.Register(client)
	defer hub.Unregister(client)

	hub.Publish(Event{
		Action:    "remove",
		Syspath:   "/sys/devices/virtual/net/lo",
		Subsystem: "net",
	})

	select {
	case data := <-client.send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("delivered event is not valid JSON: %v", err)
		}
		if ev.Seq != 1 || ev.Action != "remove" || ev.Subsystem != "net" {
			t.Errorf("delivered event = %+v", ev)
		}
	default:
		t.Fatal("no event delivered to client")
	}
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(8)
	client := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(client)
	defer hub.Unregister(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(Event{Action: "add", Syspath: "/d/x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full client buffer")
	}
	if got := hub.EventCount(); got != 10 {
		t.Errorf("EventCount() = %d, want 10", got)
	}
}

func TestHubUnregisterIdempotent(t *testing.T) {
	hub := NewHub(4)
	client := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(client)

	hub.Unregister(client)
	hub.Unregister(client) // second call must not double-close

	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after Unregister")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestHandleDevices(t *testing.T) {
	fake := seedFake()
	srv := newTestServer(fake, 4)

	req := httptest.NewRequest("GET", "/devices?subsystem=block", nil)
	rr := httptest.NewRecorder()
	srv.handleDevices(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var out []DeviceJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d devices, want 1", len(out))
	}
	if out[0].Sysname != "sda" || out[0].Devnode != "/dev/sda" {
		t.Errorf("device = %+v", out[0])
	}
	if out[0].Properties["ID_MODEL"] != "EXAMPLE_SSD" {
		t.Errorf("Properties = %v", out[0].Properties)
	}

	// The handler must not leak a single handle.
	if n := fake.LiveObjects(); n != 0 {
		t.Errorf("%d live objects after request, want 0", n)
	}
}

func TestHandleDevicesUnavailable(t *testing.T) {
	fake := seedFake()
	fake.FailNextOpen(1)
	srv := newTestServer(fake, 4)

	rr := httptest.NewRecorder()
	srv.handleDevices(rr, httptest.NewRequest("GET", "/devices", nil))

	if rr.Code != 503 {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	srv := newTestServer(seedFake(), 4)
	srv.hub.Publish(Event{Action: "add", Syspath: "/d/1"})

	rr := httptest.NewRecorder()
	srv.handleHealthz(rr, httptest.NewRequest("GET", "/healthz", nil))

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["events"] != float64(1) {
		t.Errorf("events field = %v, want 1", body["events"])
	}
}

func TestPumpPublishesEvents(t *testing.T) {
	fake := seedFake()
	srv := newTestServer(fake, 8)
	srv.config.Subsystems = []string{"block"}
	srv.pumpDone = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go srv.runPump(ctx)

	// The pump starts its monitor asynchronously; events pushed before
	// that are dropped, so keep pushing until one lands.
	const syspath = "/sys/devices/pci0000:00/0000:00:1f.2/host0/target0:0:0/0:0:0:0/block/sda"
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.EventCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no event published before deadline")
		}
		fake.PushEvent("add", syspath)
		time.Sleep(5 * time.Millisecond)
	}

	client := &Client{hub: srv.hub, send: make(chan []byte, sendBufferSize)}
	replay := srv.hub.Register(client)
	srv.hub.Unregister(client)
	if len(replay) == 0 {
		t.Fatal("backlog is empty after pump published")
	}
	ev := replay[0]
	if ev.Action != "add" || ev.Syspath != syspath || ev.Subsystem != "block" {
		t.Errorf("published event = %+v", ev)
	}

	cancel()
	select {
	case <-srv.pumpDone:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after cancellation")
	}

	// The pump must tear down its whole session graph on exit.
	if n := fake.LiveObjects(); n != 0 {
		t.Errorf("%d live objects after pump exit, want 0", n)
	}
}
