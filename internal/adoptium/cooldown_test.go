// SPDX-License-Identifier: MPL-2.0

package adoptium

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestCooldownGateTripAndExpire(t *testing.T) {
	gate := &cooldownGate{path: filepath.Join(t.TempDir(), "rate-limit")}
	now := time.Now()

	if _, active := gate.Active(now); active {
		t.Fatal("fresh gate should be open")
	}

	gate.Trip(now, time.Minute)
	until, active := gate.Active(now)
	if !active {
		t.Fatal("gate should be closed right after Trip")
	}
	if got := until.Sub(now); got < 59*time.Second || got > 61*time.Second {
		t.Errorf("cooldown end %v from now, want ~1m", got)
	}

	if _, active := gate.Active(now.Add(2 * time.Minute)); active {
		t.Error("gate should reopen once the cooldown elapses")
	}
	if _, err := os.Stat(gate.path); !os.IsNotExist(err) {
		t.Errorf("expired marker should be removed, stat err = %v", err)
	}
}

func TestCooldownGateIgnoresGarbageMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate-limit")
	if err := os.WriteFile(path, []byte("not a timestamp"), 0o644); err != nil {
		t.Fatal(err)
	}

	gate := &cooldownGate{path: path}
	if _, active := gate.Active(time.Now()); active {
		t.Error("unparsable marker should leave the gate open")
	}
}

func TestResolveReleaseHonorsCooldownAfter429(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	marker := filepath.Join(t.TempDir(), "rate-limit")
	client := NewClient(
		WithBaseURL(srv.URL),
		WithRetryPolicy(1, time.Millisecond),
		WithCooldownMarker(marker),
	)

	if _, err := client.ResolveRelease(context.Background(), 17, "x64", "linux"); err == nil {
		t.Fatal("expected rate-limit error")
	}
	if hits.Load() == 0 {
		t.Fatal("server was never reached")
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("429 should write the cooldown marker: %v", err)
	}

	before := hits.Load()
	_, err := client.ResolveRelease(context.Background(), 17, "x64", "linux")
	if err == nil || !strings.Contains(err.Error(), "rate limited until") {
		t.Fatalf("cooled-down resolve error = %v, want rate limited until", err)
	}
	if hits.Load() != before {
		t.Errorf("request count went %d -> %d, want no new requests during cooldown", before, hits.Load())
	}
}
