package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_HandleEvent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "Hardware"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Hardware", "nas.md"), []byte("nas"), 0o644))

	w := &Watcher{root: root, walker: NewWalker([]string{"**/*.md"}, []string{"**/.obsidian/**"})}

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"create file", "Hardware/nas.md", fsnotify.Create, true},
		{"write file", "Hardware/nas.md", fsnotify.Write, true},
		{"remove file", "Hardware/gone.md", fsnotify.Remove, true},
		{"rename file", "Hardware/old.md", fsnotify.Rename, true},
		{"chmod ignored", "Hardware/nas.md", fsnotify.Chmod, false},
		{"directory ignored", "Hardware", fsnotify.Create, false},
		{"hidden file ignored", "Hardware/.nas.md", fsnotify.Write, false},
		{"excluded dir ignored", ".obsidian/workspace.md", fsnotify.Write, false},
		{"not included", "Hardware/photo.png", fsnotify.Create, false},
		{"outside root ignored", "../elsewhere.md", fsnotify.Write, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := fsnotify.Event{Name: filepath.Join(root, filepath.FromSlash(tt.path)), Op: tt.op}
			assert.Equal(t, tt.want, w.handleEvent(ev))
		})
	}
}

func TestWatcher_RunBatchesChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "Projects"), 0o755))

	w, err := NewWatcher(root, NewWalker([]string{"**/*.md"}, nil), 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(paths []string) { batches <- paths }) }()

	target := filepath.Join(root, "Projects", "plan.md")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("v2"), 0o644))

	select {
	case paths := <-batches:
		assert.Contains(t, paths, target)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_DirectoryMovedInQueuesItsFiles(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	src := filepath.Join(outside, "Services")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "media"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "jellyfin.md"), []byte("jellyfin"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "media", "plex.md"), []byte("plex"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.png"), []byte("png"), 0o644))

	w, err := NewWatcher(root, NewWalker([]string{"**/*.md"}, nil), 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(paths []string) { batches <- paths }) }()

	dst := filepath.Join(root, "Services")
	require.NoError(t, os.Rename(src, dst))

	want := []string{filepath.Join(dst, "jellyfin.md"), filepath.Join(dst, "media", "plex.md")}
	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for !seen[want[0]] || !seen[want[1]] {
		select {
		case paths := <-batches:
			for _, p := range paths {
				seen[p] = true
			}
		case <-deadline:
			t.Fatalf("moved-in files not reported, got %v", seen)
		}
	}
	assert.False(t, seen[filepath.Join(dst, "notes.png")])

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_AddTreeReturnsIndexableFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", ".obsidian"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "one.md"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", ".hidden.md"), []byte("h"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", ".obsidian", "ws.md"), []byte("w"), 0o644))

	fsw, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer fsw.Close()
	w := &Watcher{root: root, walker: NewWalker([]string{"**/*.md"}, []string{"**/.obsidian/**"}), fsw: fsw}

	files, err := w.addTree(filepath.Join(root, "a"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a", "one.md")}, files)
}
