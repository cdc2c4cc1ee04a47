package outdir

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestManager_SharedUntilLastRelease(t *testing.T) {
	m := NewManager(Options{Root: t.TempDir()})
	key := "/suites/hello world"
	m.Reserve(key, 3)

	a, err := m.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	b, err := m.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if a.Path() != b.Path() {
		t.Fatalf("units of one suite got different dirs: %s, %s", a.Path(), b.Path())
	}
	if !strings.HasPrefix(filepath.Base(a.Path()), "torture-hello_world-") {
		t.Errorf("unexpected directory name %s", filepath.Base(a.Path()))
	}

	if err := a.Release(); err != nil {
		t.Fatal(err)
	}
	if err := m.Skip(key); err != nil {
		t.Fatal(err)
	}
	if !exists(t, b.Path()) {
		t.Fatal("directory removed while a lease is outstanding")
	}
	if err := b.Release(); err != nil {
		t.Fatal(err)
	}
	if exists(t, b.Path()) {
		t.Error("directory survived the last release")
	}
}

func TestManager_PromotedSurvives(t *testing.T) {
	m := NewManager(Options{Root: t.TempDir()})
	m.Reserve("s", 2)

	a, _ := m.Acquire("s")
	b, _ := m.Acquire("s")
	a.Promote()
	_ = a.Release()
	_ = b.Release()

	if !exists(t, a.Path()) {
		t.Fatal("promoted directory was removed")
	}
	if got := m.Persistent(); got["s"] != a.Path() {
		t.Errorf("Persistent() = %v", got)
	}
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	m := NewManager(Options{Root: t.TempDir()})
	m.Reserve("s", 2)

	a, _ := m.Acquire("s")
	_ = a.Release()
	_ = a.Release()

	b, err := m.Acquire("s")
	if err != nil {
		t.Fatalf("second unit lost its reservation: %v", err)
	}
	if !exists(t, b.Path()) {
		t.Error("directory removed before the second unit released")
	}
	_ = b.Release()
}

func TestManager_SkipOnlyNeverCreates(t *testing.T) {
	root := t.TempDir()
	m := NewManager(Options{Root: root})
	m.Reserve("s", 1)
	if err := m.Skip("s"); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("skipped suite created %d entries", len(entries))
	}
}

func TestManager_Unreserved(t *testing.T) {
	m := NewManager(Options{Root: t.TempDir()})
	if _, err := m.Acquire("s"); err == nil {
		t.Error("Acquire without reservation should fail")
	}
	if err := m.Skip("s"); err == nil {
		t.Error("Skip without reservation should fail")
	}
}

func TestManager_Provided(t *testing.T) {
	provided := t.TempDir()
	m := NewManager(Options{Provided: provided})
	m.Reserve("s", 1)

	l, err := m.Acquire("s")
	if err != nil {
		t.Fatal(err)
	}
	if l.Path() != provided || l.Dir().Kind() != KindProvided {
		t.Fatalf("lease = %s (%s)", l.Path(), l.Dir().Kind())
	}
	l.Promote()
	_ = l.Release()
	if !exists(t, provided) {
		t.Error("provided directory was removed")
	}
	if len(m.Persistent()) != 0 {
		t.Error("provided directory reported as persistent")
	}
}

func TestManager_Concurrent(t *testing.T) {
	m := NewManager(Options{Root: t.TempDir()})
	const units = 32
	m.Reserve("s", units)

	paths := make(chan string, units)
	var wg sync.WaitGroup
	for range units {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := m.Acquire("s")
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			paths <- l.Path()
			_ = l.Release()
		}()
	}
	wg.Wait()
	close(paths)

	seen := map[string]bool{}
	for p := range paths {
		seen[p] = true
	}
	// Releases may interleave with acquisitions, but once all have
	// released nothing is left on disk.
	for p := range seen {
		if exists(t, p) {
			t.Errorf("%s left behind", p)
		}
	}
}
