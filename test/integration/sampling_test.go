package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weirdgate/weirdgate/internal/core/engine"
	"github.com/weirdgate/weirdgate/internal/observability"
	"github.com/weirdgate/weirdgate/internal/server"
	"github.com/weirdgate/weirdgate/internal/server/handlers"
)

type recordingSink struct {
	signals chan engine.Signal
}

func (s recordingSink) Emit(sig engine.Signal) {
	s.signals <- sig
}

func newSamplingServer(t *testing.T, e *engine.Engine, sink engine.Sink) (*httptest.Server, *http.Client) {
	t.Helper()
	objects := engine.NewObjectIndex()
	api := &handlers.SamplingAPI{
		Reporter: &engine.Reporter{Engine: e, Objects: objects, Sink: sink},
		Objects:  objects,
	}
	srv := server.New("127.0.0.1", 0, server.WithSampling(api))
	return serveLoopback(t, srv.Handler())
}

func raise(t *testing.T, client *http.Client, url string, req handlers.WeirdRequest) handlers.WeirdResponse {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := client.Post(url+"/v1/weirds", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded handlers.WeirdResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func TestSamplingAPI_BurstOverHTTP(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger(observability.ServerLoggerOptions{Service: "test", Level: "info", Environment: "test"})
	handlers.InitHealthManager("test")

	e, err := engine.New(engine.Options{
		Settings:       engine.Settings{Threshold: 10, Rate: 10, WindowDuration: time.Hour},
		NormalizePairs: true,
	})
	require.NoError(t, err)

	sink := recordingSink{signals: make(chan engine.Signal, 64)}
	ts, client := newSamplingServer(t, e, sink)

	passed := 0
	for i := 0; i < 30; i++ {
		req := handlers.WeirdRequest{Name: "bad_checksum", Scope: "pair", A: "10.0.0.1", B: "10.0.0.2"}
		if i%2 == 1 {
			req.A, req.B = req.B, req.A
		}
		resp := raise(t, client, ts.URL, req)
		assert.Equal(t, "bad_checksum@pair:10.0.0.1,10.0.0.2", resp.Key)
		if resp.Decision == "pass" {
			passed++
		}
	}

	assert.Equal(t, 12, passed)
	assert.Len(t, sink.signals, 12)
	assert.Equal(t, 1, e.Ledger().Len())

	resp, err := client.Get(ts.URL + "/v1/sampling/windows")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var windows handlers.WindowsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&windows))
	require.Equal(t, 1, windows.Count)
	assert.Equal(t, uint64(30), windows.Windows[0].Window.Count)
}

func TestSamplingAPI_UnknownObjectOverHTTP(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger(observability.ServerLoggerOptions{Service: "test", Level: "info", Environment: "test"})
	handlers.InitHealthManager("test")

	e, err := engine.New(engine.Options{Settings: engine.DefaultSettings()})
	require.NoError(t, err)
	ts, client := newSamplingServer(t, e, nil)

	body, err := json.Marshal(handlers.WeirdRequest{Name: "file_truncated", Scope: "object", ID: "F404"})
	require.NoError(t, err)
	resp, err := client.Post(ts.URL+"/v1/weirds", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, e.Ledger().Len())
}
