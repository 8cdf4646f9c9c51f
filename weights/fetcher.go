// Package weights prefetches preprocessor model checkpoints. The wrapped
// preprocessors download their weights on first use, which is exactly the
// load the wrappers have to pin; prefetching moves the download out of the
// guarded region so first invocations stay fast.
package weights

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/comfyshim/gpupin/device"
)

// Checkpoint names one downloadable model file.
type Checkpoint struct {
	Name string
	URL  string
}

// Manifest maps wrapped preprocessor classes to the checkpoints they load.
// CannyEdgePreprocessor is absent: it is pure image processing and loads
// no model.
var Manifest = map[string][]Checkpoint{
	"DepthAnythingV2Preprocessor": {
		{Name: "depth_anything_v2_vitl.pth", URL: "https://huggingface.co/depth-anything/Depth-Anything-V2-Large/resolve/main/depth_anything_v2_vitl.pth"},
	},
	"DWPreprocessor": {
		{Name: "dw-ll_ucoco_384.onnx", URL: "https://huggingface.co/yzd-v/DWPose/resolve/main/dw-ll_ucoco_384.onnx"},
		{Name: "yolox_l.onnx", URL: "https://huggingface.co/yzd-v/DWPose/resolve/main/yolox_l.onnx"},
	},
	"OpenposePreprocessor": {
		{Name: "body_pose_model.pth", URL: "https://huggingface.co/lllyasviel/Annotators/resolve/main/body_pose_model.pth"},
	},
	"MiDaS-DepthMapPreprocessor": {
		{Name: "dpt_hybrid-midas-501f0c75.pt", URL: "https://huggingface.co/lllyasviel/Annotators/resolve/main/dpt_hybrid-midas-501f0c75.pt"},
	},
}

// Fetcher downloads checkpoints into a cache directory. It resolves the
// current target device through the injected resolver purely for
// diagnostics: the log line records where the weights are expected to land.
type Fetcher struct {
	dir        string
	resolver   device.Resolver
	httpclient *http.Client
	progress   bool
}

// NewFetcher creates a fetcher caching into dir and resolving placement
// through resolver.
func NewFetcher(dir string, resolver device.Resolver) *Fetcher {
	return &Fetcher{
		dir:        dir,
		resolver:   resolver,
		httpclient: &http.Client{},
		progress:   true,
	}
}

// SetHTTPClient replaces the underlying http client.
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpclient = client
}

// SetProgress toggles the download progress bar.
func (f *Fetcher) SetProgress(enabled bool) {
	f.progress = enabled
}

// Fetch downloads one checkpoint unless it is already cached, returning
// the local path.
func (f *Fetcher) Fetch(ck Checkpoint) (string, error) {
	path := filepath.Join(f.dir, ck.Name)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		slog.Info("checkpoint already cached", "checkpoint", ck.Name)
		return path, nil
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", err
	}

	slog.Info("prefetching checkpoint", "checkpoint", ck.Name, "target", f.resolver.Resolve())

	resp, err := f.httpclient.Get(ck.URL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: status %d", ck.Name, resp.StatusCode)
	}

	// download to a partial file, rename once complete
	partial := path + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return "", err
	}

	var dst io.Writer = out
	if f.progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, ck.Name)
		dst = io.MultiWriter(out, bar)
	}

	_, err = io.Copy(dst, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("downloading %s: %w", ck.Name, err)
	}

	if err := os.Rename(partial, path); err != nil {
		return "", err
	}
	return path, nil
}

// FetchAll downloads the checkpoints for the given wrapped classes,
// continuing past individual failures and reporting them joined.
func (f *Fetcher) FetchAll(classes []string) error {
	var errs []error
	for _, class := range classes {
		cks, ok := Manifest[class]
		if !ok {
			slog.Info("no checkpoints to prefetch", "class", class)
			continue
		}
		for _, ck := range cks {
			if _, err := f.Fetch(ck); err != nil {
				slog.Warn("checkpoint prefetch failed", "class", class, "checkpoint", ck.Name, "error", err)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
