// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caldera-launcher/caldera/internal/adoptium"
)

// requireUnix skips tests that execute fake runtime scripts.
func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test executes shell scripts")
	}
}

// fakeJavaScript renders a shell script that mimics a JVM's response to
// -XshowSettings:properties -version. The banner goes to stderr like the
// real thing.
func fakeJavaScript(version string, sixtyFourBit bool) string {
	dataModel := 64
	arch := "amd64"
	if !sixtyFourBit {
		dataModel = 32
		arch = "i386"
	}
	return fmt.Sprintf(`#!/bin/sh
echo 'Property settings:' >&2
echo '    java.home = /opt/java' >&2
echo '    os.arch = %s' >&2
echo '    sun.arch.data.model = %d' >&2
echo 'openjdk version "%s" 2024-01-16' >&2
echo 'OpenJDK Runtime Environment Temurin-%s (build %s)' >&2
`, arch, dataModel, version, version, version)
}

// writeFakeJava materializes a fake runtime layout under dir and returns the
// executable path.
func writeFakeJava(t *testing.T, dir, version string, sixtyFourBit bool) string {
	t.Helper()
	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", binDir, err)
	}
	exePath := filepath.Join(binDir, "java")
	if err := os.WriteFile(exePath, []byte(fakeJavaScript(version, sixtyFourBit)), 0o755); err != nil {
		t.Fatalf("writing fake java: %v", err)
	}
	return exePath
}

// buildRuntimeTarGz packs a fake runtime into a tar.gz the way release
// archives are laid out: a single wrapping directory with bin/java inside.
func buildRuntimeTarGz(t *testing.T, version string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	script := fakeJavaScript(version, true)
	top := "jdk-" + version + "-jre"
	entries := []struct {
		name string
		mode int64
		body string
	}{
		{top + "/", 0o755, ""},
		{top + "/bin/", 0o755, ""},
		{top + "/bin/java", 0o755, script},
		{top + "/release", 0o644, "JAVA_VERSION=\"" + version + "\"\n"},
	}
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode, Size: int64(len(e.body))}
		if e.body == "" && e.name[len(e.name)-1] == '/' {
			hdr.Typeflag = tar.TypeDir
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", e.name, err)
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			t.Fatalf("tar body %s: %v", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	return buf.Bytes()
}

// buildZip packs the given name/body pairs into a zip archive.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		hdr.SetMode(0o644)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip body %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// releaseServer fakes the release API plus artifact hosting for one or more
// major versions. apiHits counts metadata requests so tests can assert that
// cached resolutions stay off the network.
type releaseServer struct {
	*httptest.Server
	apiHits atomic.Int64
}

// newReleaseServer serves each configured major as a tar.gz release. The
// version string for major N is "N.0.2+9" cleaned to "N.0.2".
func newReleaseServer(t *testing.T, majors ...int) *releaseServer {
	t.Helper()
	archives := make(map[int][]byte, len(majors))
	for _, major := range majors {
		archives[major] = buildRuntimeTarGz(t, fmt.Sprintf("%d.0.2", major))
	}

	rs := &releaseServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/assets/latest/", func(w http.ResponseWriter, r *http.Request) {
		rs.apiHits.Add(1)
		var major int
		if _, err := fmt.Sscanf(r.URL.Path, "/v3/assets/latest/%d/hotspot", &major); err != nil {
			http.NotFound(w, r)
			return
		}
		archive, ok := archives[major]
		if !ok || r.URL.Query().Get("image_type") != "jre" {
			http.NotFound(w, r)
			return
		}
		version := fmt.Sprintf("%d.0.2+9", major)
		payload := []map[string]any{{
			"binary": map[string]any{
				"image_type": "jre",
				"package": map[string]any{
					"checksum": sha256Hex(archive),
					"link":     rs.URL + fmt.Sprintf("/download/java%d.tar.gz", major),
					"name":     fmt.Sprintf("temurin-%d-jre.tar.gz", major),
				},
			},
			"version": map[string]any{"openjdk_version": version},
		}}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encoding assets payload: %v", err)
		}
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		var major int
		if _, err := fmt.Sscanf(r.URL.Path, "/download/java%d.tar.gz", &major); err != nil {
			http.NotFound(w, r)
			return
		}
		archive, ok := archives[major]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	})

	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

// newTestManager wires a Manager against the fake release server with short
// timeouts and a temp data dir.
func newTestManager(t *testing.T, rs *releaseServer) *Manager {
	t.Helper()
	validator := &Validator{Timeout: 30 * time.Second}
	return &Manager{
		DataDir:   t.TempDir(),
		Validator: validator,
		Installer: &Installer{
			Client:           adoptium.NewClient(adoptium.WithBaseURL(rs.URL)),
			Validator:        validator,
			Arch:             "x64",
			OS:               "linux",
			DownloadAttempts: 2,
			DownloadBackoff:  time.Millisecond,
		},
		LockTTL: time.Minute,
		Getenv:  func(string) string { return "" },
	}
}
