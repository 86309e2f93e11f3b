package server

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/channel-gateway/pkg/commsutil"
	"github.com/morezero/channel-gateway/pkg/dispatcher"
	"github.com/morezero/channel-gateway/pkg/envelope"
	"github.com/morezero/channel-gateway/pkg/events"
	memprovider "github.com/morezero/channel-gateway/pkg/provider/memory"
)

const e2eTestPrefix = "server:e2e_test"

// startCommsServer starts an in-process NATS server and returns a client
// connection for the gateway and another for the test.
func startCommsServer(t *testing.T, port int) (gw, client *comms.Conn) {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", e2eTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", e2eTestPrefix)
	}

	gw, err = comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - gateway connect: %v", e2eTestPrefix, err)
	}
	client, err = comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		gw.Close()
		ns.Shutdown()
		t.Fatalf("%s - client connect: %v", e2eTestPrefix, err)
	}

	t.Cleanup(func() {
		client.Close()
		gw.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return gw, client
}

func startGateway(t *testing.T, gw *comms.Conn, mem *memprovider.Provider) *Server {
	t.Helper()
	s := New(Params{Config: testConfig(), Registry: testRegistry(t), Provider: mem, Conn: gw})
	if err := s.Subscribe(); err != nil {
		t.Fatalf("%s - Subscribe: %v", e2eTestPrefix, err)
	}
	if err := gw.Flush(); err != nil {
		t.Fatalf("%s - Flush: %v", e2eTestPrefix, err)
	}
	return s
}

func requestOverComms(t *testing.T, nc *comms.Conn, payload string) wireResponse {
	t.Helper()
	msg, err := nc.Request(testConfig().Subject(), []byte(payload), 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request: %v", e2eTestPrefix, err)
	}
	var out wireResponse
	if err := commsutil.DecodePayload(msg.Data, &out); err != nil {
		t.Fatalf("%s - decode %q: %v", e2eTestPrefix, msg.Data, err)
	}
	return out
}

func TestE2E_GetOverComms(t *testing.T) {
	gw, client := startCommsServer(t, 14250)
	mem := memprovider.New()
	mem.StoreScalar("psu:current", 7)
	startGateway(t, gw, mem)

	resp := requestOverComms(t, client,
		`{"id":"r1","type":"epics:nt/NTURI:1.0","path":"psu:current","query":{"TYPE":"LONG"}}`)
	if !resp.Ok || resp.ID != "r1" {
		t.Fatalf("%s - response = %+v", e2eTestPrefix, resp)
	}
	if v, _ := resp.Result.Value.(float64); v != 7 {
		t.Errorf("%s - value = %v, want 7", e2eTestPrefix, resp.Result.Value)
	}

	mem.StoreScalar("psu:current", math.Inf(-1))
	resp = requestOverComms(t, client,
		`{"id":"r2","type":"epics:nt/NTURI:1.0","path":"psu:current","query":{"TYPE":"DOUBLE"}}`)
	if !resp.Ok || resp.Result == nil {
		t.Fatalf("%s - non-finite response = %+v", e2eTestPrefix, resp)
	}
	if f, ok := envelope.Float(resp.Result.Value); !ok || !math.IsInf(f, -1) {
		t.Errorf("%s - value = %#v, want -Infinity", e2eTestPrefix, resp.Result.Value)
	}

	resp = requestOverComms(t, client, `not json at all`)
	if resp.Ok || resp.Error == nil || resp.Error.Code != string(dispatcher.KindMalformedRequest) {
		t.Errorf("%s - malformed response = %+v", e2eTestPrefix, resp)
	}
}

func TestE2E_SetPublishesEvents(t *testing.T) {
	gw, client := startCommsServer(t, 14251)
	mem := memprovider.New()
	startGateway(t, gw, mem)

	perChannel := make(chan *events.ChannelSetEvent, 2)
	global := make(chan *events.ChannelSetEvent, 2)
	for subject, ch := range map[string]chan *events.ChannelSetEvent{
		"channel.set.psu:current": perChannel,
		"channel.set":             global,
	} {
		ch := ch
		if _, err := client.Subscribe(subject, func(msg *comms.Msg) {
			var ev events.ChannelSetEvent
			if err := commsutil.DecodePayload(msg.Data, &ev); err == nil {
				ch <- &ev
			}
		}); err != nil {
			t.Fatalf("%s - subscribe %s: %v", e2eTestPrefix, subject, err)
		}
	}
	if err := client.Flush(); err != nil {
		t.Fatalf("%s - Flush: %v", e2eTestPrefix, err)
	}

	resp := requestOverComms(t, client,
		`{"id":"s1","type":"epics:nt/NTURI:1.0","path":"psu:current","query":{"VALUE":"4.5"}}`)
	if !resp.Ok {
		t.Fatalf("%s - set failed: %+v", e2eTestPrefix, resp.Error)
	}
	if v, _ := mem.Scalar("psu:current"); v != "4.5" {
		t.Errorf("%s - stored = %v", e2eTestPrefix, v)
	}

	for name, ch := range map[string]chan *events.ChannelSetEvent{"per-channel": perChannel, "global": global} {
		select {
		case ev := <-ch:
			if ev.Channel != "psu:current" || ev.RequestID != "s1" || ev.Arguments["VALUE"] != "4.5" {
				t.Errorf("%s - %s event = %+v", e2eTestPrefix, name, ev)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("%s - no %s event", e2eTestPrefix, name)
		}
	}
}

func TestE2E_ConcurrentRequestsAreSerialized(t *testing.T) {
	gw, client := startCommsServer(t, 14252)
	mem := memprovider.New().WithDelay(10 * time.Millisecond)
	mem.StoreScalar("psu:current", 1.25)
	startGateway(t, gw, mem)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf(`{"id":"c%d","type":"epics:nt/NTURI:1.0","path":"psu:current","query":{"TYPE":"DOUBLE"}}`, i)
			msg, err := client.Request(testConfig().Subject(), []byte(payload), 5*time.Second)
			if err != nil {
				errs <- err
				return
			}
			var out wireResponse
			if err := commsutil.DecodePayload(msg.Data, &out); err != nil {
				errs <- err
				return
			}
			if !out.Ok || out.ID != fmt.Sprintf("c%d", i) {
				errs <- fmt.Errorf("request %d: %+v", i, out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("%s - %v", e2eTestPrefix, err)
	}

	if got := len(mem.Calls()); got != n {
		t.Errorf("%s - calls = %d, want %d", e2eTestPrefix, got, n)
	}
	if got := mem.MaxConcurrent(); got != 1 {
		t.Errorf("%s - max concurrent native calls = %d, want 1", e2eTestPrefix, got)
	}
}
