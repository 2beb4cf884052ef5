package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tableseg/internal/cloud"
	"github.com/banshee-data/tableseg/internal/config"
	"github.com/banshee-data/tableseg/internal/geom"
	"github.com/banshee-data/tableseg/internal/store"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func testConfig() *config.TuningConfig {
	return &config.TuningConfig{
		ClusterDBSCANEps: floatPtr(0.01),
		MinPoints:        intPtr(3),
		MinVolume:        floatPtr(1e-6),
		MaxObjHeight:     floatPtr(0.3),
	}
}

// testFrame is a 1 m table with top at z = 0.71 and a 5x2x1 cm block on it,
// padded with missing pixels to a whole number of rows.
func testFrame(t *testing.T) *Frame {
	t.Helper()
	var pts []r3.Vector
	for i := 0; i <= 10; i++ {
		for j := 0; j <= 4; j++ {
			for k := 0; k <= 2; k++ {
				pts = append(pts, r3.Vector{X: float64(i) * 0.005, Y: float64(j) * 0.005, Z: 0.72 + float64(k)*0.005})
			}
		}
	}
	pts = append(pts, r3.Vector{X: 3, Y: 3, Z: 0}) // floor
	const width = 20
	for len(pts)%width != 0 {
		pts = append(pts, cloud.InvalidPoint())
	}
	c, err := cloud.NewStructured(len(pts)/width, width, pts)
	require.NoError(t, err)

	table := geom.NewAxisAlignedBox(r3.Vector{X: -0.5, Y: -0.5, Z: 0.69}, r3.Vector{X: 0.5, Y: 0.5, Z: 0.71})
	f := FrameFromCloud(c, []geom.OrientedBox{table})
	f.Source = "unit-test"
	return f
}

func postFrame(t *testing.T, mux http.Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/segment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewServer(testConfig(), db), db
}

func TestHandleSegment(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	body, err := json.Marshal(testFrame(t))
	require.NoError(t, err)
	rec := postFrame(t, mux, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SegmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Annotation)
	assert.NotEmpty(t, resp.RunID)
	assert.True(t, resp.Annotation.Succeeded())
	assert.Equal(t, []int32{-1}, resp.Annotation.ClassIDs)
	assert.Equal(t, []string{"Unknown"}, resp.Annotation.ClassNames)
	assert.InDelta(t, 1e-5, resp.Annotation.Objects[0].Volume, 1e-8)
	assert.Equal(t, "16SC1", resp.Annotation.Image.Encoding)
	assert.Equal(t, 166, resp.ValidPoints, "block plus floor point")

	labelled := 0
	for _, row := range resp.Annotation.Image.Data {
		for _, l := range row {
			if l == 0 {
				labelled++
			}
		}
	}
	assert.Equal(t, 165, labelled)

	// The run is stored and retrievable.
	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID, nil)
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)

	var run store.Run
	require.NoError(t, json.NewDecoder(getRec.Body).Decode(&run))
	assert.Equal(t, "objects", run.Status)
	assert.Equal(t, "unit-test", run.Source)
	assert.Len(t, run.Objects, 1)
}

func TestHandleSegment_ParamOverride(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	frame := testFrame(t)
	frame.Params = &config.TuningConfig{MinVolume: floatPtr(1e-4)}
	body, err := json.Marshal(frame)
	require.NoError(t, err)

	rec := postFrame(t, mux, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SegmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "no_objects", resp.Annotation.Status)
	assert.Empty(t, resp.Annotation.ClassIDs)
}

func TestHandleSegment_NoTable(t *testing.T) {
	server := NewServer(testConfig(), nil)
	frame := testFrame(t)
	frame.Planes = nil
	body, err := json.Marshal(frame)
	require.NoError(t, err)

	rec := postFrame(t, server.ServeMux(), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SegmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "no_table", resp.Annotation.Status)
	assert.Empty(t, resp.RunID, "no store configured")
}

func TestHandleSegment_BadRequests(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	good, err := json.Marshal(testFrame(t))
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"unknown field", `{"height":1,"width":1,"points":[null],"bogus":1}`},
		{"size mismatch", `{"height":2,"width":2,"points":[null]}`},
		{"zero size", `{"height":0,"width":0,"points":[]}`},
		{"bad params", strings.Replace(string(good), `"planes"`, `"params":{"min_points":0},"planes"`, 1)},
		{"bad plane", `{"height":1,"width":1,"points":[null],"planes":[{"center":[0,0,0],"extent":[-1,1,1]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postFrame(t, mux, []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.Contains(t, rec.Body.String(), `"status":400`)
		})
	}
}

func TestServerSegment_CanceledDropsResult(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := server.Segment(ctx, testFrame(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrBadFrame)
	assert.Nil(t, server.lastResult())

	runs, err := server.runs.ListRuns(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestServerSegment_BadFrame(t *testing.T) {
	server := NewServer(testConfig(), nil)
	frame := testFrame(t)
	frame.Width++
	_, err := server.Segment(context.Background(), frame)
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestHandleSegment_MethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/segment", nil)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListRuns(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	body, err := json.Marshal(testFrame(t))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, postFrame(t, mux, body).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=2", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []store.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	assert.Len(t, runs, 2)

	req = httptest.NewRequest(http.MethodGet, "/api/runs?limit=abc", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRuns_Empty(t *testing.T) {
	server, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetRun_NotFound(t *testing.T) {
	server, _ := setupTestServer(t)
	for _, path := range []string{"/api/runs/nope", "/api/runs/", "/api/runs/a/b"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.ServeMux().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRuns_NoStore(t *testing.T) {
	server := NewServer(testConfig(), nil)
	for _, path := range []string{"/api/runs", "/api/runs/x"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.ServeMux().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestShowConfig(t *testing.T) {
	server := NewServer(testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var cfg config.TuningConfig
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cfg))
	assert.Equal(t, 3, cfg.GetMinPoints())
}

func TestLoggingMiddleware(t *testing.T) {
	var logged []string
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	restore := captureLogs(&logged)
	defer restore()

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "418")
	assert.Contains(t, logged[0], "/api/runs?limit=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}
