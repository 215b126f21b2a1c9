package inbox_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/internal/inbox"
	"scribe/internal/intake"
	"scribe/internal/testsupport"
)

type claimed struct {
	path string
	name string
}

func startWatcher(t *testing.T, dir, staging string) <-chan claimed {
	t.Helper()
	out := make(chan claimed, 8)
	handler := func(_ context.Context, path, name string) error {
		out <- claimed{path: path, name: name}
		return nil
	}
	w := inbox.New(dir, staging, nil, handler, nil, inbox.WithSettle(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return out
}

func waitClaim(t *testing.T, ch <-chan claimed) claimed {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbox claim")
	}
	return claimed{}
}

func TestWatcherClaimsDroppedFile(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "inbox")
	staging := filepath.Join(base, "staging")
	claims := startWatcher(t, dir, staging)

	time.Sleep(50 * time.Millisecond)
	src := filepath.Join(dir, "standup.mp3")
	testsupport.WriteFile(t, src, 4096)

	got := waitClaim(t, claims)
	if got.name != "standup.mp3" {
		t.Fatalf("unexpected name %q", got.name)
	}
	if filepath.Dir(got.path) != staging || !strings.HasPrefix(filepath.Base(got.path), intake.StagePrefix) {
		t.Fatalf("unexpected staged path %s", got.path)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected inbox file moved, stat err = %v", err)
	}
	if info, err := os.Stat(got.path); err != nil || info.Size() != 4096 {
		t.Fatalf("staged file missing or truncated: %v", err)
	}
}

func TestWatcherClaimsExistingFilesOnStart(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "inbox")
	testsupport.WriteFile(t, filepath.Join(dir, "earlier.wav"), 2048)

	claims := startWatcher(t, dir, filepath.Join(base, "staging"))
	if got := waitClaim(t, claims); got.name != "earlier.wav" {
		t.Fatalf("unexpected claim %+v", got)
	}
}

func TestWatcherLeavesUnsupportedAndInvalidFiles(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "inbox")
	notes := filepath.Join(dir, "notes.txt")
	tiny := filepath.Join(dir, "tiny.wav")
	testsupport.WriteFile(t, notes, 4096)
	testsupport.WriteFile(t, tiny, 10)
	testsupport.WriteFile(t, filepath.Join(dir, "good.flac"), 4096)

	claims := startWatcher(t, dir, filepath.Join(base, "staging"))
	if got := waitClaim(t, claims); got.name != "good.flac" {
		t.Fatalf("unexpected claim %+v", got)
	}
	select {
	case extra := <-claims:
		t.Fatalf("unexpected extra claim %+v", extra)
	case <-time.After(300 * time.Millisecond):
	}
	for _, path := range []string{notes, tiny} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s left in inbox: %v", path, err)
		}
	}
}
