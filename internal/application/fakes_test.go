package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rpc-scanner/internal/domain/capability"
	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/pkg/apperrors"
)

const testAccount = "someguy123"

// fakeClient answers calls from per-method handlers and counts attempts.
type fakeClient struct {
	mu       sync.Mutex
	identify func(attempt int) (entity.Identity, error)
	handlers map[string]func(attempt int) (json.RawMessage, error)
	calls    map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		identify: func(int) (entity.Identity, error) {
			return entity.Identity{ServerType: entity.ServerAppbase}, nil
		},
		handlers: make(map[string]func(int) (json.RawMessage, error)),
		calls:    make(map[string]int),
	}
}

func (f *fakeClient) Identify(ctx context.Context, endpoint entity.Endpoint) (entity.Identity, error) {
	attempt := f.count(IdentifyProbe)
	if err := ctx.Err(); err != nil {
		return entity.Identity{}, probeErr(entity.FailureTimeout, IdentifyProbe)
	}
	return f.identify(attempt)
}

func (f *fakeClient) Call(ctx context.Context, _ entity.Endpoint, method string, _ json.RawMessage) (json.RawMessage, error) {
	attempt := f.count(method)
	if err := ctx.Err(); err != nil {
		return nil, probeErr(entity.FailureTimeout, method)
	}
	f.mu.Lock()
	h, ok := f.handlers[method]
	f.mu.Unlock()
	if !ok {
		return nil, rpcErr(method, "method not found")
	}
	return h(attempt)
}

func (f *fakeClient) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.calls[method]
}

func (f *fakeClient) callsTo(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeClient) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeClient) set(method string, h func(attempt int) (json.RawMessage, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeClient) answer(method, result string) {
	f.set(method, func(int) (json.RawMessage, error) { return json.RawMessage(result), nil })
}

func (f *fakeClient) fail(method string, kind entity.FailureKind) {
	f.set(method, func(int) (json.RawMessage, error) { return nil, probeErr(kind, method) })
}

func probeErr(kind entity.FailureKind, method string) error {
	return &entity.ProbeError{
		Kind:   kind,
		Method: method,
		Err:    errors.New(strings.ToLower(kind.String())),
	}
}

func rpcErr(method, msg string) error {
	return &entity.ProbeError{
		Kind:       entity.FailureRPCError,
		Method:     method,
		RPCCode:    -32000,
		RPCMessage: msg,
		RPCClass:   entity.ClassifyRPCMessage(msg),
		Err:        apperrors.ErrRPC,
	}
}

func repeatJSON(item string, n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = item
	}
	return "[" + strings.Join(items, ",") + "]"
}

// healthyHiveNode registers correct answers for metadata and every catalogue method.
func healthyHiveNode(f *fakeClient, blockTime time.Time) {
	f.answer("condenser_api.get_config", `{"HIVE_BLOCKCHAIN_VERSION":"1.27.4"}`)
	f.answer("condenser_api.get_dynamic_global_properties", `{
		"head_block_number": 80000000,
		"last_irreversible_block_num": 79999980,
		"time": "`+blockTime.UTC().Format("2006-01-02T15:04:05")+`",
		"virtual_supply": "450000000.000 HIVE"
	}`)

	f.answer("condenser_api.get_accounts", `[{"name":"someguy123"}]`)
	f.answer("condenser_api.get_witness_by_account", `{"owner":"someguy123","signing_key":"STM6abc"}`)
	f.answer("condenser_api.get_blog", repeatJSON(`{"blog":"someguy123","entry_id":1,"comment":{"body":"x"}}`, 10))
	f.answer("condenser_api.get_content", `{"body":"b","author":"someguy123","category":"c","title":"t"}`)
	f.answer("condenser_api.get_followers", repeatJSON(`{"follower":"a","following":"someguy123","what":["blog"]}`, 10))
	f.answer("bridge.get_trending_topics", `[["hive-167922","LeoFinance"],["hive-174301","Gems"]]`)
	f.answer("condenser_api.get_account_history", repeatJSON(`[7,{"op":["vote",{}]}]`, 5))
	f.answer("account_history_api.get_account_history", `{"history":`+repeatJSON(`[7,{"op":{"type":"vote_operation"}}]`, 5)+`}`)
}

func testOptions(maxTries int) ScanOptions {
	return ScanOptions{
		Retry:        RetryPolicy{MaxTries: maxTries},
		ProbeTimeout: time.Second,
		Matrix:       capability.Default(capability.Bindings{Account: testAccount, Post: "post", PubPrefix: "STM"}),
		TestPlugins:  true,
		MaxWorkers:   4,
	}
}

func newTestScanner(t *testing.T, client *fakeClient, opts ScanOptions, now time.Time) *NodeScanner {
	t.Helper()
	s, err := NewNodeScanner(client, opts, zap.NewNop(), nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

// recordingMetrics keeps every probe observation as "method:outcome:attempts".
type recordingMetrics struct {
	mu     sync.Mutex
	probes []string
}

func (m *recordingMetrics) ObserveProbe(method, outcome string, attempts int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes = append(m.probes, fmt.Sprintf("%s:%s:%d", method, outcome, attempts))
}

func (m *recordingMetrics) ObserveScan(string, int, time.Duration) {}

func (m *recordingMetrics) observed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.probes...)
}
