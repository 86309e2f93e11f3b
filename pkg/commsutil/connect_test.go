package commsutil

import (
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
)

const connectTestPrefix = "commsutil:connect_test"

func TestConnect_InvalidURL(t *testing.T) {
	nc, err := Connect("invalid://not-a-nats-server", "test-client")
	if err == nil {
		if nc != nil {
			nc.Close()
		}
		t.Fatalf("%s - expected error for invalid URL", connectTestPrefix)
	}
	if nc != nil {
		t.Errorf("%s - expected nil connection on error", connectTestPrefix)
	}
}

func TestPing(t *testing.T) {
	if Ping(nil, time.Second) {
		t.Errorf("%s - Ping(nil) should be false", connectTestPrefix)
	}

	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: 14240, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", connectTestPrefix, err)
	}
	go ns.Start()
	defer func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	}()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", connectTestPrefix)
	}

	nc, err := Connect(ns.ClientURL(), "ping-test")
	if err != nil {
		t.Fatalf("%s - Connect: %v", connectTestPrefix, err)
	}
	if !Ping(nc, 2*time.Second) {
		t.Errorf("%s - expected Ping true on live connection", connectTestPrefix)
	}

	nc.Close()
	if Ping(nc, time.Second) {
		t.Errorf("%s - expected Ping false after close", connectTestPrefix)
	}
}
