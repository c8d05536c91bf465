package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/console-bridge/pkg/commsutil"
	"github.com/morezero/console-bridge/pkg/envelope"
	"github.com/morezero/console-bridge/pkg/fault"
)

const bridgeTestPrefix = "bridge:bridge_test"

// startTestServer starts an in-process broker for testing.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", bridgeTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", bridgeTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", bridgeTestPrefix, err)
	}

	cleanup := func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}

	return nc, cleanup
}

// echoHost answers every request on the session's request subject by calling
// respond to produce the reply envelope. Returning nil suppresses the reply.
func echoHost(t *testing.T, nc *comms.Conn, sessionID string, respond func(req *envelope.Request) *envelope.Response) {
	t.Helper()
	sub, err := nc.Subscribe(commsutil.BuildRequestSubject(sessionID), func(msg *comms.Msg) {
		var req envelope.Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Errorf("%s - host failed to decode request: %v", bridgeTestPrefix, err)
			return
		}
		resp := respond(&req)
		if resp == nil {
			return
		}
		data, _ := json.Marshal(resp)
		nc.Publish(commsutil.BuildResponseSubject(sessionID), data)
	})
	if err != nil {
		t.Fatalf("%s - host subscribe failed: %v", bridgeTestPrefix, err)
	}
	t.Cleanup(func() { sub.Unsubscribe() })
}

func TestSend_RoundTrip(t *testing.T) {
	nc, cleanup := startTestServer(t, 14251)
	defer cleanup()

	echoHost(t, nc, "s1", func(req *envelope.Request) *envelope.Response {
		resp, _ := envelope.Ok(req.Command, req.RequestID, map[string]string{"echo": req.Command})
		return resp
	})

	b, err := New(nc, "s1")
	if err != nil {
		t.Fatalf("%s - New failed: %v", bridgeTestPrefix, err)
	}
	defer b.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := b.Send(ctx, envelope.CmdListAliases, nil)
	if err != nil {
		t.Fatalf("%s - Send failed: %v", bridgeTestPrefix, err)
	}

	var result map[string]string
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("%s - decode payload: %v", bridgeTestPrefix, err)
	}
	if result["echo"] != envelope.CmdListAliases {
		t.Errorf("%s - echo = %q, want %q", bridgeTestPrefix, result["echo"], envelope.CmdListAliases)
	}
	if b.PendingCount() != 0 {
		t.Errorf("%s - pending map not drained after response", bridgeTestPrefix)
	}
}

func TestSend_OutOfOrderResponses(t *testing.T) {
	nc, cleanup := startTestServer(t, 14252)
	defer cleanup()

	// Hold the first request's reply until the second one has been answered.
	var mu sync.Mutex
	var held *envelope.Response
	count := 0
	echoHost(t, nc, "s2", func(req *envelope.Request) *envelope.Response {
		mu.Lock()
		defer mu.Unlock()
		count++
		resp, _ := envelope.Ok(req.Command, req.RequestID, map[string]int{"seq": count})
		if count == 1 {
			held = resp
			return nil
		}
		// Release the held reply after this one.
		go func(first *envelope.Response) {
			time.Sleep(50 * time.Millisecond)
			data, _ := json.Marshal(first)
			nc.Publish(commsutil.BuildResponseSubject("s2"), data)
		}(held)
		return resp
	})

	b, err := New(nc, "s2")
	if err != nil {
		t.Fatalf("%s - New failed: %v", bridgeTestPrefix, err)
	}
	defer b.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make([]int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Stagger so request order is deterministic.
			time.Sleep(time.Duration(i*20) * time.Millisecond)
			payload, err := b.Send(ctx, envelope.CmdRunQuery, &envelope.QueryParams{Page: i})
			if err != nil {
				t.Errorf("%s - Send %d failed: %v", bridgeTestPrefix, i, err)
				return
			}
			var out map[string]int
			json.Unmarshal(payload, &out)
			results[i] = out["seq"]
		}(i)
	}
	wg.Wait()

	// First request gets the held (seq=1) reply even though it arrived last.
	if results[0] != 1 || results[1] != 2 {
		t.Errorf("%s - correlation mismatch: results = %v", bridgeTestPrefix, results)
	}
}

func TestSend_ErrorResponseBecomesFault(t *testing.T) {
	nc, cleanup := startTestServer(t, 14253)
	defer cleanup()

	echoHost(t, nc, "s3", func(req *envelope.Request) *envelope.Response {
		return envelope.Err(req.Command, req.RequestID, fault.KindRemote, "backend unavailable")
	})

	b, err := New(nc, "s3")
	if err != nil {
		t.Fatalf("%s - New failed: %v", bridgeTestPrefix, err)
	}
	defer b.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = b.Send(ctx, envelope.CmdCreateBackup, &envelope.BackupParams{Backend: "s3"})
	if err == nil {
		t.Fatalf("%s - expected error", bridgeTestPrefix)
	}
	if fault.KindOf(err) != fault.KindRemote {
		t.Errorf("%s - kind = %q, want remote", bridgeTestPrefix, fault.KindOf(err))
	}
}

func TestHandleInbound_UnknownRequestIDIgnored(t *testing.T) {
	nc, cleanup := startTestServer(t, 14254)
	defer cleanup()

	b, err := New(nc, "s4")
	if err != nil {
		t.Fatalf("%s - New failed: %v", bridgeTestPrefix, err)
	}
	defer b.Dispose()

	stray, _ := envelope.Ok(envelope.CmdRunQuery, "no-such-request", nil)
	data, _ := json.Marshal(stray)
	if err := nc.Publish(commsutil.BuildResponseSubject("s4"), data); err != nil {
		t.Fatalf("%s - publish failed: %v", bridgeTestPrefix, err)
	}
	nc.Flush()
	time.Sleep(100 * time.Millisecond)

	if b.PendingCount() != 0 {
		t.Errorf("%s - stray response created pending state", bridgeTestPrefix)
	}
}

func TestDispose_RejectsPendingExactlyOnce(t *testing.T) {
	nc, cleanup := startTestServer(t, 14255)
	defer cleanup()

	// Host never answers.
	echoHost(t, nc, "s5", func(req *envelope.Request) *envelope.Response { return nil })

	b, err := New(nc, "s5")
	if err != nil {
		t.Fatalf("%s - New failed: %v", bridgeTestPrefix, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Send(ctx, envelope.CmdListRoles, nil)
		errCh <- err
	}()

	// Wait until the request is pending, then dispose.
	deadline := time.Now().Add(2 * time.Second)
	for b.PendingCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	b.Dispose()
	b.Dispose() // idempotent

	select {
	case err := <-errCh:
		if !errors.Is(err, fault.ErrDisposed) {
			t.Errorf("%s - err = %v, want ErrDisposed", bridgeTestPrefix, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - pending request hung after dispose", bridgeTestPrefix)
	}

	// A send after dispose rejects immediately.
	if _, err := b.Send(ctx, envelope.CmdListRoles, nil); !errors.Is(err, fault.ErrDisposed) {
		t.Errorf("%s - send after dispose: err = %v, want ErrDisposed", bridgeTestPrefix, err)
	}
}

func TestSend_ContextTimeout(t *testing.T) {
	nc, cleanup := startTestServer(t, 14256)
	defer cleanup()

	echoHost(t, nc, "s6", func(req *envelope.Request) *envelope.Response { return nil })

	b, err := New(nc, "s6")
	if err != nil {
		t.Fatalf("%s - New failed: %v", bridgeTestPrefix, err)
	}
	defer b.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = b.Send(ctx, envelope.CmdRunQuery, nil)
	if fault.KindOf(err) != fault.KindTimeout {
		t.Errorf("%s - kind = %q, want timeout", bridgeTestPrefix, fault.KindOf(err))
	}
	if b.PendingCount() != 0 {
		t.Errorf("%s - timed-out request left a pending entry", bridgeTestPrefix)
	}
}

func TestNew_ObservesPushSentImmediatelyAfter(t *testing.T) {
	nc, cleanup := startTestServer(t, 14259)
	defer cleanup()

	// The host publishes from its own connection, so the bridge only sees
	// the push if its subscriptions were registered server-side before New
	// returned.
	hostNC, err := comms.Connect(nc.ConnectedUrl(), comms.Timeout(5*time.Second))
	if err != nil {
		t.Fatalf("%s - host connect failed: %v", bridgeTestPrefix, err)
	}
	defer hostNC.Close()

	b, err := New(nc, "s8")
	if err != nil {
		t.Fatalf("%s - New failed: %v", bridgeTestPrefix, err)
	}
	defer b.Dispose()

	received := make(chan *envelope.Response, 1)
	b.OnBroadcast(func(resp *envelope.Response) {
		received <- resp
	})

	push, _ := envelope.Ok(envelope.CmdSetMode, "", &envelope.SetModeParams{Mode: "edit"})
	data, _ := json.Marshal(push)
	if err := hostNC.Publish(commsutil.BuildResponseSubject("s8"), data); err != nil {
		t.Fatalf("%s - host publish failed: %v", bridgeTestPrefix, err)
	}
	hostNC.Flush()

	select {
	case resp := <-received:
		if resp.Command != envelope.CmdSetMode {
			t.Errorf("%s - command = %q, want setMode", bridgeTestPrefix, resp.Command)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - push sent right after New was lost", bridgeTestPrefix)
	}
}

func TestOnBroadcast(t *testing.T) {
	nc, cleanup := startTestServer(t, 14257)
	defer cleanup()

	b, err := New(nc, "s7")
	if err != nil {
		t.Fatalf("%s - New failed: %v", bridgeTestPrefix, err)
	}
	defer b.Dispose()

	received := make(chan *envelope.Response, 1)
	unsub := b.OnBroadcast(func(resp *envelope.Response) {
		received <- resp
	})

	bcast, _ := envelope.Broadcast(envelope.CmdRolesUpdated, map[string]int{"count": 2})
	data, _ := json.Marshal(bcast)
	if err := nc.Publish(commsutil.BuildBroadcastSubject(envelope.CmdRolesUpdated), data); err != nil {
		t.Fatalf("%s - publish failed: %v", bridgeTestPrefix, err)
	}

	select {
	case resp := <-received:
		if resp.Command != envelope.CmdRolesUpdated {
			t.Errorf("%s - command = %q", bridgeTestPrefix, resp.Command)
		}
		if resp.RequestID != "" {
			t.Errorf("%s - broadcast carries requestId %q", bridgeTestPrefix, resp.RequestID)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - broadcast not delivered", bridgeTestPrefix)
	}

	// After unsubscribe, broadcasts stop arriving.
	unsub()
	nc.Publish(commsutil.BuildBroadcastSubject(envelope.CmdRolesUpdated), data)
	nc.Flush()
	select {
	case <-received:
		t.Errorf("%s - listener fired after unsubscribe", bridgeTestPrefix)
	case <-time.After(200 * time.Millisecond):
	}
}
