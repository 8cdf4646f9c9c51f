package weights

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comfyshim/gpupin/device"
)

func newTestFetcher(t *testing.T, handler http.Handler) (*Fetcher, *httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	f := NewFetcher(dir, device.Fixed(device.CUDA(0)))
	f.SetProgress(false)
	return f, srv, dir
}

func TestFetchDownloadsAndCaches(t *testing.T) {
	hits := 0
	f, srv, dir := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, "fake checkpoint bytes")
	}))

	ck := Checkpoint{Name: "body_pose_model.pth", URL: srv.URL + "/body_pose_model.pth"}

	path, err := f.Fetch(ck)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "body_pose_model.pth"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "fake checkpoint bytes", string(data))

	// second fetch hits the cache, not the server
	_, err = f.Fetch(ck)
	require.NoError(t, err)
	require.Equal(t, 1, hits)

	// no partial file left behind
	_, err = os.Stat(path + ".part")
	require.True(t, os.IsNotExist(err))
}

func TestFetchServerError(t *testing.T) {
	f, srv, dir := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	_, err := f.Fetch(Checkpoint{Name: "yolox_l.onnx", URL: srv.URL + "/yolox_l.onnx"})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, "yolox_l.onnx"))
	require.True(t, os.IsNotExist(err), "failed download must not leave a checkpoint file")
}

func TestFetchAllContinuesPastFailures(t *testing.T) {
	f, srv, dir := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		fmt.Fprint(w, "weights")
	}))

	// point the manifest entries at the test server
	orig := Manifest
	defer func() { Manifest = orig }()
	Manifest = map[string][]Checkpoint{
		"DWPreprocessor": {
			{Name: "dw-ll_ucoco_384.onnx", URL: srv.URL + "/fail"},
			{Name: "yolox_l.onnx", URL: srv.URL + "/yolox_l.onnx"},
		},
		"OpenposePreprocessor": {
			{Name: "body_pose_model.pth", URL: srv.URL + "/body_pose_model.pth"},
		},
	}

	err := f.FetchAll([]string{"DWPreprocessor", "OpenposePreprocessor", "CannyEdgePreprocessor"})
	require.Error(t, err, "the failed checkpoint must be reported")

	for _, name := range []string{"yolox_l.onnx", "body_pose_model.pth"} {
		_, serr := os.Stat(filepath.Join(dir, name))
		require.NoError(t, serr, "later checkpoints must still download")
	}
}

func TestManifestCoversModelLoadingPreprocessors(t *testing.T) {
	for _, class := range []string{"DepthAnythingV2Preprocessor", "DWPreprocessor", "OpenposePreprocessor", "MiDaS-DepthMapPreprocessor"} {
		require.NotEmpty(t, Manifest[class], "manifest missing %s", class)
	}
	_, hasCanny := Manifest["CannyEdgePreprocessor"]
	require.False(t, hasCanny, "canny loads no model")
}
