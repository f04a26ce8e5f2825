package blade

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTemplateName(t *testing.T) {
	exts := DefaultExtensions()
	tests := []struct {
		input    string
		expected string
	}{
		{"'layouts.app'", "layouts/app"},
		{`"pages.home"`, "pages/home"},
		{" partials/nav ", "partials/nav"},
		{`admin\users`, "admin/users"},
		{"/home", "home"},
		{"'mail.blade.html'", "mail.blade.html"},
		{"''", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTemplateName(tt.input, exts))
		})
	}
}

func TestCandidateNames(t *testing.T) {
	exts := []string{ExtBladeHTML, ExtHTML}

	assert.Equal(t, []string{"home.blade.html", "home.html"}, CandidateNames("home", exts))
	assert.Equal(t, []string{"home.html"}, CandidateNames("home.html", exts))
}

func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func TestFilesystemLoader(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"home.blade.html":             "home",
		"layouts/app.html":            "layout",
		"legacy.php":                  "legacy",
		"both.blade.html":             "preferred",
		"both.html":                   "fallback",
		"notes.txt":                   "ignored",
		"components/alert.blade.html": "alert",
	})
	loader, err := NewFilesystemLoader(dir)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("resolves extension candidates", func(t *testing.T) {
		src, err := loader.Load(ctx, "layouts/app")
		require.NoError(t, err)
		assert.Equal(t, "layouts/app", src.Name)
		assert.Equal(t, "layouts/app.html", src.Path)
		assert.Equal(t, "layout", src.Content)
	})

	t.Run("candidate order", func(t *testing.T) {
		src, err := loader.Load(ctx, "both")
		require.NoError(t, err)
		assert.Equal(t, "preferred", src.Content)
	})

	t.Run("explicit extension", func(t *testing.T) {
		src, err := loader.Load(ctx, "legacy.php")
		require.NoError(t, err)
		assert.Equal(t, "legacy", src.Name)
	})

	t.Run("not found lists candidates", func(t *testing.T) {
		_, err := loader.Load(ctx, "missing")
		require.Error(t, err)
		assert.True(t, IsTemplateNotFound(err))
	})

	t.Run("directory is not a template", func(t *testing.T) {
		_, err := loader.Load(ctx, "layouts")
		assert.True(t, IsTemplateNotFound(err))
	})

	t.Run("escaping the root", func(t *testing.T) {
		_, err := loader.Load(ctx, "../outside")
		assert.True(t, IsTemplateNotFound(err))
	})

	t.Run("list", func(t *testing.T) {
		names, err := loader.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"both", "components/alert", "home", "layouts/app", "legacy"}, names)
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := loader.Load(canceled, "home")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFilesystemLoader_EmptyRoot(t *testing.T) {
	_, err := NewFilesystemLoader("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestMemoryLoader(t *testing.T) {
	loader := NewMemoryLoader(map[string]string{
		"home":                   "bare",
		"layouts/app.blade.html": "layout",
	})
	ctx := context.Background()

	src, err := loader.Load(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, "bare", src.Content)

	src, err = loader.Load(ctx, "layouts/app")
	require.NoError(t, err)
	assert.Equal(t, "layouts/app", src.Name)
	assert.Equal(t, "layouts/app.blade.html", src.Path)

	names, err := loader.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "layouts/app"}, names)

	loader.Set("extra", "x")
	loader.Delete("home")
	_, err = loader.Load(ctx, "home")
	assert.True(t, IsTemplateNotFound(err))
	_, err = loader.Load(ctx, "extra")
	assert.NoError(t, err)
}

// countingLoader counts the calls that reach the wrapped loader.
type countingLoader struct {
	Loader
	loads atomic.Int32
	delay time.Duration
}

func (l *countingLoader) Load(ctx context.Context, name string) (*Source, error) {
	l.loads.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	return l.Loader.Load(ctx, name)
}

func TestCachedLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("caches hits", func(t *testing.T) {
		inner := &countingLoader{Loader: NewMemoryLoader(map[string]string{"home": "v1"})}
		loader := NewCachedLoader(inner, DefaultCacheConfig(), nil)

		for i := 0; i < 3; i++ {
			src, err := loader.Load(ctx, "home")
			require.NoError(t, err)
			assert.Equal(t, "v1", src.Content)
		}
		assert.Equal(t, int32(1), inner.loads.Load())
		assert.Equal(t, 1, loader.Stats().ValidEntries)
	})

	t.Run("returned sources are copies", func(t *testing.T) {
		loader := NewCachedLoader(NewMemoryLoader(map[string]string{"home": "v1"}), DefaultCacheConfig(), nil)
		src, err := loader.Load(ctx, "home")
		require.NoError(t, err)
		src.Content = "mutated"

		again, err := loader.Load(ctx, "home")
		require.NoError(t, err)
		assert.Equal(t, "v1", again.Content)
	})

	t.Run("negative caching", func(t *testing.T) {
		mem := NewMemoryLoader(nil)
		inner := &countingLoader{Loader: mem}
		loader := NewCachedLoader(inner, DefaultCacheConfig(), nil)

		_, err := loader.Load(ctx, "late")
		assert.True(t, IsTemplateNotFound(err))
		mem.Set("late", "now here")

		_, err = loader.Load(ctx, "late")
		assert.True(t, IsTemplateNotFound(err))
		assert.Equal(t, int32(1), inner.loads.Load())
		assert.Equal(t, 1, loader.Stats().NegativeEntries)

		loader.Invalidate("late")
		src, err := loader.Load(ctx, "late")
		require.NoError(t, err)
		assert.Equal(t, "now here", src.Content)
	})

	t.Run("negative caching disabled", func(t *testing.T) {
		inner := &countingLoader{Loader: NewMemoryLoader(nil)}
		cfg := DefaultCacheConfig()
		cfg.NegativeCacheTTL = -1
		loader := NewCachedLoader(inner, cfg, nil)

		_, _ = loader.Load(ctx, "nope")
		_, _ = loader.Load(ctx, "nope")
		assert.Equal(t, int32(2), inner.loads.Load())
	})

	t.Run("ttl expiry", func(t *testing.T) {
		inner := &countingLoader{Loader: NewMemoryLoader(map[string]string{"home": "v1"})}
		loader := NewCachedLoader(inner, DefaultCacheConfig(), nil)
		now := time.Now()
		loader.now = func() time.Time { return now }

		_, err := loader.Load(ctx, "home")
		require.NoError(t, err)
		now = now.Add(LoaderCacheDefaultTTL + time.Second)
		_, err = loader.Load(ctx, "home")
		require.NoError(t, err)
		assert.Equal(t, int32(2), inner.loads.Load())
	})

	t.Run("eviction", func(t *testing.T) {
		cfg := DefaultCacheConfig()
		cfg.MaxEntries = 2
		loader := NewCachedLoader(NewMemoryLoader(map[string]string{"a": "a", "b": "b", "c": "c"}), cfg, nil)

		for _, name := range []string{"a", "b", "c"} {
			_, err := loader.Load(ctx, name)
			require.NoError(t, err)
		}
		assert.Equal(t, 2, loader.Stats().Entries)

		loader.InvalidateAll()
		assert.Equal(t, 0, loader.Stats().Entries)
	})

	t.Run("concurrent loads share one backend call", func(t *testing.T) {
		inner := &countingLoader{Loader: NewMemoryLoader(map[string]string{"home": "v1"}), delay: 50 * time.Millisecond}
		loader := NewCachedLoader(inner, DefaultCacheConfig(), nil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				src, err := loader.Load(ctx, "home")
				assert.NoError(t, err)
				assert.Equal(t, "v1", src.Content)
			}()
		}
		wg.Wait()
		assert.LessOrEqual(t, inner.loads.Load(), int32(2))
	})

	t.Run("canceled caller does not fail the shared load", func(t *testing.T) {
		inner := &gatedLoader{
			Loader:  NewMemoryLoader(map[string]string{"home": "v1"}),
			started: make(chan struct{}, 1),
			release: make(chan struct{}),
		}
		loader := NewCachedLoader(inner, DefaultCacheConfig(), nil)

		first, cancel := context.WithCancel(ctx)
		firstErr := make(chan error, 1)
		go func() {
			_, err := loader.Load(first, "home")
			firstErr <- err
		}()
		<-inner.started

		second := make(chan *Source, 1)
		go func() {
			src, err := loader.Load(ctx, "home")
			assert.NoError(t, err)
			second <- src
		}()

		cancel()
		assert.ErrorIs(t, <-firstErr, context.Canceled)

		close(inner.release)
		src := <-second
		require.NotNil(t, src)
		assert.Equal(t, "v1", src.Content)
		assert.False(t, inner.canceled.Load())
	})
}

// gatedLoader blocks every load until release is closed and records whether
// the context it was handed had been canceled by then.
type gatedLoader struct {
	Loader
	started  chan struct{}
	release  chan struct{}
	canceled atomic.Bool
}

func (l *gatedLoader) Load(ctx context.Context, name string) (*Source, error) {
	select {
	case l.started <- struct{}{}:
	default:
	}
	<-l.release
	if ctx.Err() != nil {
		l.canceled.Store(true)
	}
	return l.Loader.Load(ctx, name)
}
