package bus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/voxilabs/voxi-core/internal/config"
	"github.com/voxilabs/voxi-core/internal/natsserver"
	"github.com/voxilabs/voxi-core/internal/permission"
	"github.com/voxilabs/voxi-core/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func connectEmbedded(t *testing.T) *Client {
	t.Helper()
	log := newLogger()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, log)
	if err != nil {
		t.Fatalf("start embedded nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	client, err := Connect(context.Background(), config.BusConfig{
		Servers:        []string{srv.ClientURL()},
		ConnectTimeout: 2000,
	}, log)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	if !client.Healthy() {
		t.Fatal("expected healthy connection")
	}
	return client
}

func respond(t *testing.T, client *Client, subject string, reply protocol.PermissionReply) <-chan protocol.PermissionQuery {
	t.Helper()
	seen := make(chan protocol.PermissionQuery, 4)
	sub, err := client.Conn().Subscribe(subject, func(msg *nats.Msg) {
		var q protocol.PermissionQuery
		_ = json.Unmarshal(msg.Data, &q)
		seen <- q
		data, _ := json.Marshal(reply)
		_ = msg.Respond(data)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return seen
}

func TestPermissionQuerierParsesReply(t *testing.T) {
	client := connectEmbedded(t)
	seen := respond(t, client, "permission.query.speech", protocol.PermissionReply{Status: "denied"})

	q := NewPermissionQuerier(client, "permission.query.speech", permission.Speech)
	state, err := q.Query(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != permission.StateDenied {
		t.Fatalf("expected denied, got %s", state)
	}
	if got := <-seen; got.Kind != "speech" {
		t.Fatalf("unexpected query %+v", got)
	}
}

func TestPermissionQuerierResponderError(t *testing.T) {
	client := connectEmbedded(t)
	respond(t, client, "permission.query.microphone", protocol.PermissionReply{Error: "sin audio"})

	q := NewPermissionQuerier(client, "permission.query.microphone", permission.Microphone)
	state, err := q.Query(context.Background())
	if err == nil {
		t.Fatal("expected responder error")
	}
	if state != permission.StateUndetermined {
		t.Fatalf("expected undetermined on error, got %s", state)
	}
}

func TestPermissionQuerierWithoutResponder(t *testing.T) {
	client := connectEmbedded(t)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	q := NewPermissionQuerier(client, "permission.query.nobody", permission.Speech)
	if _, err := q.Query(ctx); err == nil {
		t.Fatal("expected error without a responder")
	}
}

func TestConnectRequiresServers(t *testing.T) {
	if _, err := Connect(context.Background(), config.BusConfig{}, newLogger()); err == nil {
		t.Fatal("expected error without servers")
	}
}
