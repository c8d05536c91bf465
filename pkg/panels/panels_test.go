package panels

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/console-bridge/pkg/commsutil"
	"github.com/morezero/console-bridge/pkg/envelope"
	"github.com/morezero/console-bridge/pkg/events"
	"github.com/morezero/console-bridge/pkg/fault"
	"github.com/morezero/console-bridge/pkg/remote"
	"github.com/morezero/console-bridge/pkg/resilience"
	"github.com/morezero/console-bridge/pkg/session"
)

const panelsTestPrefix = "panels:panels_test"

// fastRetry keeps backoff out of test runtime.
var fastRetry = resilience.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func testDeps(client remote.Client) Deps {
	return Deps{
		Remote:        client,
		Events:        &events.NoOpPublisher{},
		Retry:         fastRetry,
		CallTimeout:   2 * time.Second,
		CacheTTL:      time.Minute,
		DebounceDelay: 100 * time.Millisecond,
	}.normalized()
}

// buildSession runs the factory against a detached session so handlers can
// be invoked directly.
func buildSession(t *testing.T, f session.Factory) *session.Session {
	t.Helper()
	s := session.New(nil, session.TypeExplorer, 2*time.Second)
	if err := f(s); err != nil {
		t.Fatalf("%s - factory failed: %v", panelsTestPrefix, err)
	}
	return s
}

func invoke(t *testing.T, s *session.Session, command string, params interface{}) (interface{}, error) {
	t.Helper()
	h, ok := s.Handler(command)
	if !ok {
		t.Fatalf("%s - no handler registered for %s", panelsTestPrefix, command)
	}
	payload, err := envelope.EncodePayload(params)
	if err != nil {
		t.Fatalf("%s - encode params: %v", panelsTestPrefix, err)
	}
	return h(context.Background(), &envelope.Request{Command: command, RequestID: "t", Payload: payload})
}

func TestConnectionPanel_TestConnectionRetriesTransientFailures(t *testing.T) {
	calls := 0
	client := &remote.Fake{
		TestConnectionFn: func(ctx context.Context, info remote.ConnectionInfo) error {
			calls++
			if calls < 3 {
				return remote.NewOperationError("testConnection", "connection reset")
			}
			return nil
		},
	}
	s := buildSession(t, ConnectionFactory(testDeps(client)))

	out, err := invoke(t, s, envelope.CmdTestConnection, &envelope.TestConnectionParams{Endpoint: "http://localhost:8080"})
	if err != nil {
		t.Fatalf("%s - testConnection failed: %v", panelsTestPrefix, err)
	}
	if calls != 3 {
		t.Errorf("%s - remote called %d times, want 3", panelsTestPrefix, calls)
	}
	if m, ok := out.(map[string]bool); !ok || !m["reachable"] {
		t.Errorf("%s - unexpected result %v", panelsTestPrefix, out)
	}
}

func TestConnectionPanel_MissingEndpointIsProtocolFault(t *testing.T) {
	s := buildSession(t, ConnectionFactory(testDeps(&remote.Fake{})))

	_, err := invoke(t, s, envelope.CmdTestConnection, &envelope.TestConnectionParams{})
	if fault.KindOf(err) != fault.KindProtocol {
		t.Errorf("%s - kind = %v, want protocol", panelsTestPrefix, fault.KindOf(err))
	}
}

func TestConnectionPanel_SaveWithoutStoreFails(t *testing.T) {
	s := buildSession(t, ConnectionFactory(testDeps(&remote.Fake{})))

	_, err := invoke(t, s, envelope.CmdSaveConnection, &envelope.SaveConnectionParams{Name: "local", Endpoint: "http://localhost:8080"})
	if err == nil {
		t.Fatalf("%s - saveConnection without a store did not fail", panelsTestPrefix)
	}
}

func TestAliasPanel_MutationBroadcastsRefreshedList(t *testing.T) {
	created := []remote.Alias{}
	client := &remote.Fake{
		CreateAliasFn: func(ctx context.Context, alias remote.Alias) error {
			created = append(created, alias)
			return nil
		},
		ListAliasesFn: func(ctx context.Context) ([]remote.Alias, error) {
			return created, nil
		},
	}

	var mu sync.Mutex
	broadcasts := []string{}
	pub := events.NewCallbackPublisher(func(ctx context.Context, command string, payload interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		broadcasts = append(broadcasts, command)
		return nil
	})
	deps := testDeps(client)
	deps.Events = pub

	s := buildSession(t, AliasFactory(deps))

	_, err := invoke(t, s, envelope.CmdCreateAlias, &envelope.AliasParams{Alias: "articles-latest", Collection: "Articles"})
	if err != nil {
		t.Fatalf("%s - createAlias failed: %v", panelsTestPrefix, err)
	}
	if len(created) != 1 || created[0].Collection != "Articles" {
		t.Errorf("%s - remote saw %v", panelsTestPrefix, created)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(broadcasts) != 1 || broadcasts[0] != envelope.CmdAliasesUpdated {
		t.Errorf("%s - broadcasts = %v, want [aliasesUpdated]", panelsTestPrefix, broadcasts)
	}
}

func TestAliasPanel_FailedMutationDoesNotBroadcast(t *testing.T) {
	client := &remote.Fake{
		DeleteAliasFn: func(ctx context.Context, name string) error {
			return remote.NewOperationError("deleteAlias", "alias not found")
		},
	}
	broadcasts := 0
	deps := testDeps(client)
	deps.Events = events.NewCallbackPublisher(func(ctx context.Context, command string, payload interface{}) error {
		broadcasts++
		return nil
	})
	s := buildSession(t, AliasFactory(deps))

	_, err := invoke(t, s, envelope.CmdDeleteAlias, &envelope.AliasParams{Alias: "gone"})
	if err == nil {
		t.Fatalf("%s - deleteAlias did not fail", panelsTestPrefix)
	}
	if broadcasts != 0 {
		t.Errorf("%s - failed mutation broadcast %d times", panelsTestPrefix, broadcasts)
	}
}

func TestBackupPanel_CreateIsNeverRetried(t *testing.T) {
	calls := 0
	client := &remote.Fake{
		CreateBackupFn: func(ctx context.Context, backend string, include []string) (*remote.Backup, error) {
			calls++
			return nil, remote.NewOperationError("createBackup", "backend unavailable")
		},
	}
	s := buildSession(t, BackupFactory(testDeps(client)))

	_, err := invoke(t, s, envelope.CmdCreateBackup, &envelope.BackupParams{Backend: "s3"})
	if err == nil {
		t.Fatalf("%s - createBackup did not fail", panelsTestPrefix)
	}
	if calls != 1 {
		t.Errorf("%s - createBackup called %d times, want exactly 1", panelsTestPrefix, calls)
	}
}

func TestBackupPanel_DefaultBackendAndRestoreValidation(t *testing.T) {
	var seenBackend string
	client := &remote.Fake{
		ListBackupsFn: func(ctx context.Context, backend string) ([]remote.Backup, error) {
			seenBackend = backend
			return nil, nil
		},
	}
	s := buildSession(t, BackupFactory(testDeps(client)))

	if _, err := invoke(t, s, envelope.CmdListBackups, &envelope.BackupParams{}); err != nil {
		t.Fatalf("%s - listBackups failed: %v", panelsTestPrefix, err)
	}
	if seenBackend != DefaultBackupBackend {
		t.Errorf("%s - backend = %q, want %q", panelsTestPrefix, seenBackend, DefaultBackupBackend)
	}

	_, err := invoke(t, s, envelope.CmdRestoreBackup, &envelope.BackupParams{})
	if fault.KindOf(err) != fault.KindProtocol {
		t.Errorf("%s - restore without id kind = %v, want protocol", panelsTestPrefix, fault.KindOf(err))
	}
}

func TestRBACPanel_UpsertBroadcastsRoles(t *testing.T) {
	client := &remote.Fake{
		ListRolesFn: func(ctx context.Context) ([]remote.Role, error) {
			return []remote.Role{{Name: "viewer", Permissions: []string{"read_data"}}}, nil
		},
	}
	var got *events.RolesUpdatedEvent
	deps := testDeps(client)
	deps.Events = events.NewCallbackPublisher(func(ctx context.Context, command string, payload interface{}) error {
		if command == envelope.CmdRolesUpdated {
			got = payload.(*events.RolesUpdatedEvent)
		}
		return nil
	})
	s := buildSession(t, RBACFactory(deps))

	_, err := invoke(t, s, envelope.CmdUpsertRole, &envelope.RoleParams{Name: "viewer", Permissions: []string{"read_data"}})
	if err != nil {
		t.Fatalf("%s - upsertRole failed: %v", panelsTestPrefix, err)
	}
	if got == nil || len(got.Roles) != 1 || got.Roles[0].Name != "viewer" {
		t.Errorf("%s - broadcast payload = %+v", panelsTestPrefix, got)
	}
}

func TestClusterPanel_ReportsVersionSkew(t *testing.T) {
	client := &remote.Fake{
		ClusterNodesFn: func(ctx context.Context) ([]remote.Node, error) {
			return []remote.Node{
				{Name: "node-0", Version: "1.25.3", Status: "HEALTHY"},
				{Name: "node-1", Version: "1.26.1", Status: "HEALTHY"},
			}, nil
		},
	}
	s := buildSession(t, ClusterFactory(testDeps(client)))

	out, err := invoke(t, s, envelope.CmdClusterNodes, nil)
	if err != nil {
		t.Fatalf("%s - clusterNodes failed: %v", panelsTestPrefix, err)
	}
	report, ok := out.(*ClusterReport)
	if !ok {
		t.Fatalf("%s - result type %T", panelsTestPrefix, out)
	}
	if report.Skew == nil || !report.Skew.Mixed || report.Skew.MajorSkew {
		t.Errorf("%s - skew = %+v, want mixed minor skew", panelsTestPrefix, report.Skew)
	}
}

func TestExplorerPanel_QueryResultsAreCached(t *testing.T) {
	calls := 0
	client := &remote.Fake{
		RunQueryFn: func(ctx context.Context, collection string, filters map[string]string, sort string, page, limit int) (*remote.QueryResult, error) {
			calls++
			return &remote.QueryResult{Total: 42}, nil
		},
	}
	s := buildSession(t, ExplorerFactory(testDeps(client)))

	params := &envelope.QueryParams{Collection: "Articles", Page: 1, Limit: 25, Immediate: true}
	for i := 0; i < 3; i++ {
		out, err := invoke(t, s, envelope.CmdRunQuery, params)
		if err != nil {
			t.Fatalf("%s - runQuery %d failed: %v", panelsTestPrefix, i, err)
		}
		if res, ok := out.(*remote.QueryResult); !ok || res.Total != 42 {
			t.Errorf("%s - result %d = %v", panelsTestPrefix, i, out)
		}
	}
	if calls != 1 {
		t.Errorf("%s - remote queried %d times, want 1", panelsTestPrefix, calls)
	}
}

// TestExplorerPanel_RapidTypingCoalescesToLastQuery drives keystrokes through
// a live session over the broker so the whole inbound path is exercised: each
// request arrives on the subscription and must still be able to supersede the
// one debouncing before it.
func TestExplorerPanel_RapidTypingCoalescesToLastQuery(t *testing.T) {
	opts := &commsserver.Options{Host: "127.0.0.1", Port: 14240, NoLog: true, NoSigs: true}
	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", panelsTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", panelsTestPrefix)
	}
	defer func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	}()

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		t.Fatalf("%s - failed to connect: %v", panelsTestPrefix, err)
	}
	defer nc.Close()

	var mu sync.Mutex
	queried := []string{}
	client := &remote.Fake{
		RunQueryFn: func(ctx context.Context, collection string, filters map[string]string, sort string, page, limit int) (*remote.QueryResult, error) {
			mu.Lock()
			queried = append(queried, filters["title"])
			mu.Unlock()
			return &remote.QueryResult{}, nil
		},
	}

	s := session.New(nc, session.TypeExplorer, 2*time.Second)
	if err := ExplorerFactory(testDeps(client))(s); err != nil {
		t.Fatalf("%s - factory failed: %v", panelsTestPrefix, err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("%s - Start failed: %v", panelsTestPrefix, err)
	}
	defer s.Dispose()

	responses := make(chan *envelope.Response, 8)
	sub, err := nc.Subscribe(commsutil.BuildResponseSubject(s.ID()), func(msg *comms.Msg) {
		var resp envelope.Response
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			t.Errorf("%s - failed to decode response: %v", panelsTestPrefix, err)
			return
		}
		responses <- &resp
	})
	if err != nil {
		t.Fatalf("%s - subscribe failed: %v", panelsTestPrefix, err)
	}
	defer sub.Unsubscribe()

	send := func(title string) {
		payload, _ := envelope.EncodePayload(&envelope.QueryParams{
			Collection: "Articles",
			Filters:    map[string]string{"title": title},
		})
		data, _ := json.Marshal(&envelope.Request{Command: envelope.CmdRunQuery, RequestID: title, Payload: payload})
		if err := nc.Publish(commsutil.BuildRequestSubject(s.ID()), data); err != nil {
			t.Fatalf("%s - publish failed: %v", panelsTestPrefix, err)
		}
	}

	// Three keystrokes inside the quiet window. Only the last fires.
	for _, title := range []string{"g", "go", "gol"} {
		send(title)
		time.Sleep(20 * time.Millisecond)
	}

	byID := map[string]*envelope.Response{}
	for len(byID) < 3 {
		select {
		case resp := <-responses:
			byID[resp.RequestID] = resp
		case <-time.After(5 * time.Second):
			t.Fatalf("%s - only %d of 3 responses arrived", panelsTestPrefix, len(byID))
		}
	}

	for _, id := range []string{"g", "go"} {
		resp := byID[id]
		if resp.Error == nil || resp.Error.Kind != fault.KindAborted {
			t.Errorf("%s - superseded query %q error = %+v, want aborted kind", panelsTestPrefix, id, resp.Error)
		}
	}
	if final := byID["gol"]; final == nil || final.Error != nil {
		t.Errorf("%s - final query response = %+v, want success", panelsTestPrefix, byID["gol"])
	}

	mu.Lock()
	defer mu.Unlock()
	if len(queried) != 1 || queried[0] != "gol" {
		t.Errorf("%s - remote saw queries %v, want [gol]", panelsTestPrefix, queried)
	}
}

func TestExplorerPanel_ImmediateBypassesDebounce(t *testing.T) {
	client := &remote.Fake{}
	deps := testDeps(client)
	deps.DebounceDelay = 500 * time.Millisecond
	s := buildSession(t, ExplorerFactory(deps))

	start := time.Now()
	_, err := invoke(t, s, envelope.CmdRunQuery, &envelope.QueryParams{Collection: "Articles", Page: 2, Immediate: true})
	if err != nil {
		t.Fatalf("%s - immediate query failed: %v", panelsTestPrefix, err)
	}
	if elapsed := time.Since(start); elapsed >= deps.DebounceDelay {
		t.Errorf("%s - immediate query waited %s", panelsTestPrefix, elapsed)
	}
}

func TestExplorerPanel_InvalidateSchemaDropsCollectionResults(t *testing.T) {
	queryCalls := 0
	client := &remote.Fake{
		RunQueryFn: func(ctx context.Context, collection string, filters map[string]string, sort string, page, limit int) (*remote.QueryResult, error) {
			queryCalls++
			return &remote.QueryResult{}, nil
		},
	}
	s := buildSession(t, ExplorerFactory(testDeps(client)))

	params := &envelope.QueryParams{Collection: "Articles", Immediate: true}
	other := &envelope.QueryParams{Collection: "Authors", Immediate: true}

	for _, p := range []*envelope.QueryParams{params, other} {
		if _, err := invoke(t, s, envelope.CmdRunQuery, p); err != nil {
			t.Fatalf("%s - seed query failed: %v", panelsTestPrefix, err)
		}
	}

	out, err := invoke(t, s, envelope.CmdInvalidateSchema, &envelope.InvalidateSchemaParams{Collection: "Articles"})
	if err != nil {
		t.Fatalf("%s - invalidateSchema failed: %v", panelsTestPrefix, err)
	}
	if removed := out.(map[string]int)["removed"]; removed != 1 {
		t.Errorf("%s - removed = %d, want 1", panelsTestPrefix, removed)
	}

	// Articles refetches, Authors still served from cache.
	for _, p := range []*envelope.QueryParams{params, other} {
		if _, err := invoke(t, s, envelope.CmdRunQuery, p); err != nil {
			t.Fatalf("%s - post-invalidate query failed: %v", panelsTestPrefix, err)
		}
	}
	if queryCalls != 3 {
		t.Errorf("%s - remote queried %d times, want 3", panelsTestPrefix, queryCalls)
	}
}

func TestExplorerPanel_MalformedPayloadIsProtocolFault(t *testing.T) {
	s := buildSession(t, ExplorerFactory(testDeps(&remote.Fake{})))
	h, _ := s.Handler(envelope.CmdRunQuery)

	_, err := h(context.Background(), &envelope.Request{
		Command:   envelope.CmdRunQuery,
		RequestID: "bad",
		Payload:   json.RawMessage(`{"collection": 7}`),
	})
	if fault.KindOf(err) != fault.KindProtocol {
		t.Errorf("%s - kind = %v, want protocol", panelsTestPrefix, fault.KindOf(err))
	}
}
