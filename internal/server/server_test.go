package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kikiluvv/cuepoint/internal/analyzer"
	"github.com/kikiluvv/cuepoint/internal/config"
	"github.com/kikiluvv/cuepoint/internal/cues"
	"github.com/kikiluvv/cuepoint/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var detectedShots = []cues.Segment{
	{Start: 0.0, End: 12.1},
	{Start: 12.3, End: 12.5},
	{Start: 12.7, End: 60.1},
	{Start: 60.3, End: 60.8},
	{Start: 65.3, End: 65.8},
}

func newTestServer(t *testing.T, fake *analyzer.FakeAnalyzer) http.Handler {
	t.Helper()
	cfg := config.Default().Server
	cfg.LocalRoot = "/videos"
	return newServerWithConfig(fake, cfg).Handler()
}

func newServerWithConfig(fake *analyzer.FakeAnalyzer, cfg config.ServerConfig) *Server {
	p := pipeline.New(zerolog.Nop(), fake, nil)
	return New(zerolog.Nop(), p, pipeline.DefaultOptions(), cfg)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/cues", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func cuePoints(t *testing.T, body map[string]any) []float64 {
	t.Helper()
	raw, ok := body["cue_points"].([]any)
	require.True(t, ok, "cue_points is a list")
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = v.(float64)
	}
	return out
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(t, analyzer.NewFakeAnalyzer())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCuesDefaults(t *testing.T) {
	fake := analyzer.NewFakeAnalyzer().Set("/videos/ad.mp4", &analyzer.Analysis{Segments: detectedShots})
	rec := post(t, newTestServer(t, fake), `{"path": "/videos/ad.mp4"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	got := cuePoints(t, body)
	require.Len(t, got, 2)
	assert.InDelta(t, 0, got[0], 1e-9)
	assert.InDelta(t, 60.2, got[1], 1e-9)
	assert.NotEmpty(t, body["run_id"])
	assert.NotContains(t, body, "report")
}

func TestCuesAcceptsLongFieldNames(t *testing.T) {
	fake := analyzer.NewFakeAnalyzer().Set("gs://media/ad.mp4", &analyzer.Analysis{Segments: detectedShots})
	rec := post(t, newTestServer(t, fake), `{
		"gcs_path": "gs://media/ad.mp4",
		"minimum_time_for_first_cue_point": 10,
		"minimum_time_between_cue_points": 30
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := cuePoints(t, decode(t, rec))
	require.Len(t, got, 2)
	assert.InDelta(t, 12.2, got[0], 1e-9)
	assert.InDelta(t, 60.2, got[1], 1e-9)
}

func TestCuesExplain(t *testing.T) {
	fake := analyzer.NewFakeAnalyzer().Set("/videos/ad.mp4", &analyzer.Analysis{Segments: detectedShots})
	rec := post(t, newTestServer(t, fake), `{"path": "ad.mp4", "between_cues": 5, "explain": true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, cuePoints(t, body), 4)

	report, ok := body["report"].(map[string]any)
	require.True(t, ok)
	decisions, ok := report["decisions"].([]any)
	require.True(t, ok)
	assert.Len(t, decisions, 6)
	assert.Equal(t, "too_close", decisions[2].(map[string]any)["outcome"])
}

func TestCuesMissingPath(t *testing.T) {
	h := newTestServer(t, analyzer.NewFakeAnalyzer())
	for _, body := range []string{`{}`, `{"path": "  "}`, `not json`, ``} {
		rec := post(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, msgMissingPath, decode(t, rec)["error"], body)
	}
}

func TestCuesInvalidSettings(t *testing.T) {
	fake := analyzer.NewFakeAnalyzer()
	rec := post(t, newTestServer(t, fake), `{"path": "ad.mp4", "between_cues": -5}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "time between cues")
	assert.Empty(t, fake.Calls())
}

func TestCuesAnalysisFailureHidesDetails(t *testing.T) {
	fake := analyzer.NewFakeAnalyzer().Fail("/videos/ad.mp4", errors.New("ffprobe: /secret/path"))
	rec := post(t, newTestServer(t, fake), `{"path": "ad.mp4"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgInternalError, decode(t, rec)["error"])
}

func TestCuesUnsupportedSource(t *testing.T) {
	fake := analyzer.NewFakeAnalyzer().Fail("gs://b/ad.mp4", analyzer.ErrUnsupportedSource)
	rec := post(t, newTestServer(t, fake), `{"path": "gs://b/ad.mp4"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCuesLocalPathsStayUnderRoot(t *testing.T) {
	fake := analyzer.NewFakeAnalyzer().Set("/videos/ads/ad.mp4", &analyzer.Analysis{Segments: detectedShots})
	h := newTestServer(t, fake)

	for _, path := range []string{"/videos/ads/ad.mp4", "ads/ad.mp4", "file:///videos/ads/ad.mp4", "ads/../ads/ad.mp4"} {
		rec := post(t, h, `{"path": "`+path+`"}`)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	for _, path := range []string{"/etc/passwd", "../etc/passwd", "/videos/../etc/passwd", "file:///etc/passwd", "/videosx/ad.mp4"} {
		rec := post(t, h, `{"path": "`+path+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, msgOutsideRoot, decode(t, rec)["error"], path)
	}
	assert.Equal(t, []string{"/videos/ads/ad.mp4", "/videos/ads/ad.mp4", "/videos/ads/ad.mp4", "/videos/ads/ad.mp4"}, fake.Calls())
}

func TestCuesRejectsSymlinkOutOfRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))
	if err := os.Symlink(outside, filepath.Join(root, "link.mp4")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	fake := analyzer.NewFakeAnalyzer()
	cfg := config.Default().Server
	cfg.LocalRoot = root
	rec := post(t, newServerWithConfig(fake, cfg).Handler(), `{"path": "link.mp4"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgOutsideRoot, decode(t, rec)["error"])
	assert.Empty(t, fake.Calls())
}

func TestCuesWithoutLocalRootOnlyServesRemoteSources(t *testing.T) {
	fake := analyzer.NewFakeAnalyzer().Set("s3://media/ad.mp4", &analyzer.Analysis{Segments: detectedShots})
	h := newServerWithConfig(fake, config.Default().Server).Handler()

	rec := post(t, h, `{"path": "/videos/ad.mp4"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgNoLocalFiles, decode(t, rec)["error"])

	rec = post(t, h, `{"path": "s3://media/ad.mp4"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s3://media/ad.mp4"}, fake.Calls())
}

func TestRespondJSONLogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	p := pipeline.New(zerolog.Nop(), analyzer.NewFakeAnalyzer(), nil)
	srv := New(zerolog.New(&buf), p, pipeline.DefaultOptions(), config.Default().Server)

	rec := httptest.NewRecorder()
	srv.respondJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "failed to write response")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestCuesRejectsGet(t *testing.T) {
	h := newTestServer(t, analyzer.NewFakeAnalyzer())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cues", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := pipeline.New(zerolog.Nop(), analyzer.NewFakeAnalyzer(), nil)
	srv := New(zerolog.Nop(), p, pipeline.DefaultOptions(), config.Default().Server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body) == "OK"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
