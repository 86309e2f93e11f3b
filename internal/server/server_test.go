package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/morezero/channel-gateway/internal/config"
	"github.com/morezero/channel-gateway/pkg/dispatcher"
	"github.com/morezero/channel-gateway/pkg/envelope"
	"github.com/morezero/channel-gateway/pkg/provider"
	memprovider "github.com/morezero/channel-gateway/pkg/provider/memory"
	"github.com/morezero/channel-gateway/pkg/registry"
	"github.com/morezero/channel-gateway/pkg/types"
)

const serverTestPrefix = "server:server_test"

func testConfig() *config.Config {
	return &config.Config{
		COMMSName:          "gateway-test",
		RequestTimeout:     5 * time.Second,
		HealthCheckTimeout: time.Second,
	}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.NewRegistry(registry.NewRegistryParams{
		Name:        "test-channels",
		Description: "channels for handler tests",
		Channels: []registry.Channel{
			{
				Name:   "psu:current",
				Getter: registry.NewOperationConfig(types.Scalar, nil, nil),
				Setter: registry.NewOperationConfig(types.Void, nil, nil),
			},
			{
				Name: "bpm:*",
				Getter: registry.NewOperationConfig(types.Table, []registry.FieldSpec{
					{Name: "x", Label: "X"}, {Name: "y", Label: "Y"},
				}, []string{"MODE"}),
			},
			{Name: "wave:data", Getter: registry.NewOperationConfig(types.DoubleArray, nil, nil)},
		},
	})
	if err != nil {
		t.Fatalf("%s - NewRegistry: %v", serverTestPrefix, err)
	}
	return reg
}

func testServer(t *testing.T) (*Server, *memprovider.Provider) {
	t.Helper()
	mem := memprovider.New()
	s := New(Params{Config: testConfig(), Registry: testRegistry(t), Provider: mem})
	return s, mem
}

type wireResponse struct {
	ID     string                  `json:"id"`
	Ok     bool                    `json:"ok"`
	Result *envelope.Response      `json:"result"`
	Error  *dispatcher.ErrorDetail `json:"error"`
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeWire(t *testing.T, rec *httptest.ResponseRecorder) wireResponse {
	t.Helper()
	var out wireResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s - decode response %q: %v", serverTestPrefix, rec.Body.String(), err)
	}
	return out
}

func TestChannelValue_ScalarGet(t *testing.T) {
	s, mem := testServer(t)
	mem.StoreScalar("psu:current", 1.5)

	rec := do(t, s.Router(), http.MethodGet, "/channel/psu:current?TYPE=DOUBLE", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, body = %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
	resp := decodeWire(t, rec)
	if !resp.Ok || resp.Result.Kind != envelope.KindScalar || resp.Result.Type != types.Double {
		t.Fatalf("%s - response = %+v", serverTestPrefix, resp)
	}
	if v, _ := resp.Result.Value.(float64); v != 1.5 {
		t.Errorf("%s - value = %v, want 1.5", serverTestPrefix, resp.Result.Value)
	}
	if resp.ID == "" {
		t.Errorf("%s - expected a request ID", serverTestPrefix)
	}
}

func TestChannelValue_Set(t *testing.T) {
	s, mem := testServer(t)

	rec := do(t, s.Router(), http.MethodGet, "/channel/psu:current?VALUE=3.25", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, body = %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
	if resp := decodeWire(t, rec); resp.Result.Kind != envelope.KindVoid {
		t.Errorf("%s - kind = %s, want void", serverTestPrefix, resp.Result.Kind)
	}
	if v, ok := mem.Scalar("psu:current"); !ok || v != "3.25" {
		t.Errorf("%s - stored value = %v, %v", serverTestPrefix, v, ok)
	}
}

func TestChannelValue_Errors(t *testing.T) {
	s, mem := testServer(t)
	mem.FailWith("wave:data", errors.New("device offline"))

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   dispatcher.Kind
	}{
		{"missing type", "/channel/psu:current", http.StatusBadRequest, dispatcher.KindMissingTypeArgument},
		{"invalid type", "/channel/psu:current?TYPE=BLOB", http.StatusBadRequest, dispatcher.KindInvalidTypeArgument},
		{"incompatible", "/channel/wave:data?TYPE=DOUBLE", http.StatusBadRequest, dispatcher.KindIncompatibleType},
		{"unknown argument", "/channel/bpm:01?TYPE=TABLE&FOO=1", http.StatusBadRequest, dispatcher.KindUnknownArgument},
		{"unsupported", "/channel/nothing?TYPE=DOUBLE", http.StatusMethodNotAllowed, dispatcher.KindUnsupportedOperation},
		{"native failure", "/channel/wave:data?TYPE=DOUBLE_ARRAY", http.StatusBadGateway, dispatcher.KindNativeOperationFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Router(), http.MethodGet, tt.target, "", nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("%s - status = %d, want %d", serverTestPrefix, rec.Code, tt.wantStatus)
			}
			resp := decodeWire(t, rec)
			if resp.Ok || resp.Error == nil || resp.Error.Code != string(tt.wantCode) {
				t.Errorf("%s - error = %+v, want %s", serverTestPrefix, resp.Error, tt.wantCode)
			}
		})
	}
}

func TestRequest_Post(t *testing.T) {
	s, mem := testServer(t)
	mem.StoreArray("wave:data", []float64{1, 2, 3})

	body := `{"id":"abc","type":"epics:nt/NTURI:1.0","path":"wave:data","query":{"TYPE":"DOUBLE_ARRAY"}}`
	rec := do(t, s.Router(), http.MethodPost, "/request", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, body = %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
	resp := decodeWire(t, rec)
	if resp.ID != "abc" || resp.Result.Kind != envelope.KindArray {
		t.Errorf("%s - response = %+v", serverTestPrefix, resp)
	}
	if vals, _ := resp.Result.Value.([]any); len(vals) != 3 {
		t.Errorf("%s - values = %v", serverTestPrefix, resp.Result.Value)
	}

	rec = do(t, s.Router(), http.MethodPost, "/request", `{not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("%s - bad JSON status = %d", serverTestPrefix, rec.Code)
	}
	if resp := decodeWire(t, rec); resp.Error == nil || resp.Error.Code != string(dispatcher.KindMalformedRequest) {
		t.Errorf("%s - bad JSON error = %+v", serverTestPrefix, resp.Error)
	}

	huge := `{"path":"` + strings.Repeat("a", maxRequestBody) + `"}`
	rec = do(t, s.Router(), http.MethodPost, "/request", huge, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("%s - oversized status = %d", serverTestPrefix, rec.Code)
	}
}

func TestChannelValue_TableAsArrow(t *testing.T) {
	s, mem := testServer(t)
	mem.StoreTable("bpm:01", provider.NewTable([]float64{0.1, 0.2}, []float64{1.1, 1.2}))

	rec := do(t, s.Router(), http.MethodGet, "/channel/bpm:01?TYPE=TABLE&MODE=fast", "", map[string]string{
		"Accept": "application/json;q=0.5, " + envelope.ArrowStreamMediaType,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, body = %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != envelope.ArrowStreamMediaType {
		t.Fatalf("%s - content type = %q", serverTestPrefix, ct)
	}

	reader, err := ipc.NewReader(rec.Body, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		t.Fatalf("%s - NewReader: %v", serverTestPrefix, err)
	}
	defer reader.Release()
	if !reader.Next() {
		t.Fatalf("%s - expected a record", serverTestPrefix)
	}
	rec2 := reader.Record()
	if rec2.NumRows() != 2 || rec2.Schema().Field(0).Name != "X" || rec2.Schema().Field(1).Name != "Y" {
		t.Errorf("%s - schema = %v rows = %d", serverTestPrefix, rec2.Schema(), rec2.NumRows())
	}

	// Without the Arrow media type the table is JSON.
	rec = do(t, s.Router(), http.MethodGet, "/channel/bpm:01?TYPE=TABLE", "", nil)
	resp := decodeWire(t, rec)
	if resp.Result == nil || resp.Result.Table == nil {
		t.Fatalf("%s - expected JSON table, got %s", serverTestPrefix, rec.Body.String())
	}
	if labels := resp.Result.Table.Labels(); len(labels) != 2 || labels[0] != "X" {
		t.Errorf("%s - labels = %v", serverTestPrefix, labels)
	}
}

func TestChannels_ListAndDescribe(t *testing.T) {
	s, _ := testServer(t)
	h := s.Router()

	rec := do(t, h, http.MethodGet, "/channels?query=BPM", "", nil)
	var list registry.ListOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("%s - decode list: %v", serverTestPrefix, err)
	}
	if len(list.Channels) != 1 || list.Channels[0].Channel != "bpm:*" || !list.Channels[0].Wildcard {
		t.Errorf("%s - list = %+v", serverTestPrefix, list)
	}

	rec = do(t, h, http.MethodGet, "/channels/bpm:07", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - describe status = %d", serverTestPrefix, rec.Code)
	}
	var desc struct {
		Channel   string `json:"channel"`
		MatchedBy string `json:"matchedBy"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &desc); err != nil {
		t.Fatalf("%s - decode describe: %v", serverTestPrefix, err)
	}
	if desc.Channel != "bpm:07" || desc.MatchedBy != "bpm:*" {
		t.Errorf("%s - describe = %+v", serverTestPrefix, desc)
	}

	rec = do(t, h, http.MethodGet, "/channels/missing", "", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "NOT_FOUND") {
		t.Errorf("%s - missing channel status = %d body = %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	s, mem := testServer(t)
	h := s.Router()

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("%s - health = %d %s", serverTestPrefix, rec.Code, rec.Body.String())
	}

	if rec := do(t, h, http.MethodGet, "/ready", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("%s - ready before start = %d", serverTestPrefix, rec.Code)
	}
	s.MarkReady()
	if rec := do(t, h, http.MethodGet, "/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("%s - ready after start = %d", serverTestPrefix, rec.Code)
	}

	mem.StoreScalar("psu:current", 2)
	do(t, h, http.MethodGet, "/channel/psu:current?TYPE=INTEGER", "", nil)
	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), `gateway_requests_total{op="get",outcome="ok"} 1`) {
		t.Errorf("%s - metrics missing request counter:\n%s", serverTestPrefix, rec.Body.String())
	}
}

func TestHealth_NoChannels(t *testing.T) {
	reg, err := registry.NewRegistry(registry.NewRegistryParams{Name: "empty"})
	if err != nil {
		t.Fatalf("%s - NewRegistry: %v", serverTestPrefix, err)
	}
	s := New(Params{Config: testConfig(), Registry: reg, Provider: memprovider.New()})
	if rec := do(t, s.Router(), http.MethodGet, "/health", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("%s - health with no channels = %d", serverTestPrefix, rec.Code)
	}
}

func TestHome(t *testing.T) {
	s, _ := testServer(t)
	rec := do(t, s.Router(), http.MethodGet, "/", "", nil)
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, "test-channels") || !strings.Contains(body, "bpm:*") {
		t.Errorf("%s - home = %d\n%s", serverTestPrefix, rec.Code, body)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("%s - content type = %q", serverTestPrefix, rec.Header().Get("Content-Type"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind dispatcher.Kind
		want int
	}{
		{dispatcher.KindMalformedRequest, http.StatusBadRequest},
		{dispatcher.KindUnknownArgument, http.StatusBadRequest},
		{dispatcher.KindUnsupportedOperation, http.StatusMethodNotAllowed},
		{dispatcher.KindMisconfiguredChannel, http.StatusInternalServerError},
		{dispatcher.KindNativeOperationFailure, http.StatusBadGateway},
		{dispatcher.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.kind); got != tt.want {
			t.Errorf("%s - statusFor(%s) = %d, want %d", serverTestPrefix, tt.kind, got, tt.want)
		}
	}
}

func TestShutdown_WithoutTransports(t *testing.T) {
	s, _ := testServer(t)
	if err := s.Subscribe(); err != nil {
		t.Fatalf("%s - Subscribe without COMMS: %v", serverTestPrefix, err)
	}
	s.MarkReady()
	s.Shutdown(context.Background())
	if s.ready.Load() {
		t.Errorf("%s - expected not ready after shutdown", serverTestPrefix)
	}
}

func TestChannelValue_NonFiniteDouble(t *testing.T) {
	s, mem := testServer(t)
	mem.StoreScalar("psu:current", math.NaN())
	mem.StoreArray("wave:data", []float64{1, math.Inf(1), math.Inf(-1)})

	rec := do(t, s.Router(), http.MethodGet, "/channel/psu:current?TYPE=DOUBLE", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, body = %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
	resp := decodeWire(t, rec)
	if !resp.Ok || resp.Result == nil {
		t.Fatalf("%s - response = %+v", serverTestPrefix, resp)
	}
	if f, ok := envelope.Float(resp.Result.Value); !ok || !math.IsNaN(f) {
		t.Errorf("%s - value = %#v, want NaN", serverTestPrefix, resp.Result.Value)
	}

	rec = do(t, s.Router(), http.MethodGet, "/channel/wave:data?TYPE=DOUBLE_ARRAY", "", nil)
	resp = decodeWire(t, rec)
	values, _ := resp.Result.Value.([]any)
	if len(values) != 3 {
		t.Fatalf("%s - values = %#v", serverTestPrefix, resp.Result.Value)
	}
	if f, _ := envelope.Float(values[1]); !math.IsInf(f, 1) {
		t.Errorf("%s - values[1] = %v", serverTestPrefix, values[1])
	}
	if f, _ := envelope.Float(values[2]); !math.IsInf(f, -1) {
		t.Errorf("%s - values[2] = %v", serverTestPrefix, values[2])
	}
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, &dispatcher.Response{
		ID:     "bad",
		Ok:     true,
		Result: &envelope.Response{Kind: envelope.KindScalar, Type: types.String, Value: make(chan int)},
	})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("%s - status = %d, want 500", serverTestPrefix, rec.Code)
	}
	resp := decodeWire(t, rec)
	if resp.Ok || resp.ID != "bad" || resp.Error == nil || resp.Error.Code != string(dispatcher.KindInternal) {
		t.Errorf("%s - response = %+v", serverTestPrefix, resp)
	}
}
