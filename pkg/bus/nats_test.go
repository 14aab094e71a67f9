package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/samparadis/dvrk-ros/pkg/bus"
)

func startNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()

	srv, err := natsserver.NewServer(&natsserver.Options{
		Host: "127.0.0.1",
		Port: -1, // random port
	})
	if err != nil {
		t.Fatalf("failed to create NATS server: %v", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server did not become ready")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestNATSBus_PublishSubscribe(t *testing.T) {
	srv := startNATSServer(t)

	b, err := bus.NewNATSBus(bus.NATSConfig{URL: srv.ClientURL(), Prefix: "dvrk", Name: "test"})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer b.Close()

	var wg sync.WaitGroup
	wg.Add(1)

	var received string
	_, err = b.Subscribe("/remote/PSM1/state_joint_desired", func(msg bus.Message) {
		if err := msg.Decode(&received); err != nil {
			t.Errorf("decode failed: %v", err)
		}
		wg.Done()
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	msg, _ := bus.NewMessage("/remote/PSM1/state_joint_desired", "hello")
	if err := b.Publish("/remote/PSM1/state_joint_desired", msg); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	wg.Wait()
	if received != "hello" {
		t.Errorf("expected 'hello', got %q", received)
	}
}

func TestNATSBus_RequestReply(t *testing.T) {
	srv := startNATSServer(t)

	b, err := bus.NewNATSBus(bus.NATSConfig{URL: srv.ClientURL(), Name: "test"})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer b.Close()

	_, err = b.Subscribe("/ping", func(msg bus.Message) {
		reply, _ := bus.NewMessage(msg.ReplyTo, "pong")
		if err := b.Publish(msg.ReplyTo, reply); err != nil {
			t.Errorf("publish reply failed: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := bus.NewMessage("/ping", "ping")
	reply, err := b.Request(ctx, "/ping", req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var payload string
	if err := reply.Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload != "pong" {
		t.Errorf("expected 'pong', got %q", payload)
	}
}

func TestNATSBus_PrefixIsolation(t *testing.T) {
	srv := startNATSServer(t)

	a, err := bus.NewNATSBus(bus.NATSConfig{URL: srv.ClientURL(), Prefix: "room_a"})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer a.Close()

	other, err := bus.NewNATSBus(bus.NATSConfig{URL: srv.ClientURL(), Prefix: "room_b"})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer other.Close()

	got := make(chan struct{}, 1)
	if _, err := other.Subscribe("/topic", func(msg bus.Message) {
		got <- struct{}{}
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := a.Publish("/topic", bus.Message{Data: []byte("{}")}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-got:
		t.Error("message crossed prefix boundary")
	case <-time.After(100 * time.Millisecond):
	}
}
