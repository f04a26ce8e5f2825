package blade

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Source is a loaded template.
type Source struct {
	// Name is the normalized logical name, e.g. "layouts/app".
	Name string
	// Path is the key the template was found under (file name relative to
	// the loader root, or the stored name).
	Path string
	// Content is the raw template text.
	Content string
	// Version is the stored version for versioned backends, 0 otherwise.
	Version int
}

// Loader resolves template names to sources.
// Implementations must be safe for concurrent use and return an error
// matching ErrTemplateNotFound when no candidate exists.
type Loader interface {
	// Load resolves a normalized template name.
	Load(ctx context.Context, name string) (*Source, error)
	// List returns every template name the loader can resolve, sorted.
	List(ctx context.Context) ([]string, error)
}

// NormalizeTemplateName turns a directive argument such as "'layouts.app'"
// into a loader name ("layouts/app"). Dots and backslashes become slashes
// unless the name already ends in one of exts.
func NormalizeTemplateName(name string, exts []string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `'"`)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if hasExtension(name, exts) {
		return strings.ReplaceAll(name, `\`, "/")
	}
	return strings.NewReplacer(".", "/", `\`, "/").Replace(name)
}

// CandidateNames lists the keys tried for name, in order.
func CandidateNames(name string, exts []string) []string {
	if hasExtension(name, exts) {
		return []string{name}
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		out = append(out, name+ext)
	}
	return out
}

func hasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func trimExtension(name string, exts []string) string {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// FilesystemLoader reads templates from a directory tree.
//
// Layout:
//
//	<root>/
//	  layouts/app.blade.html
//	  components/alert.blade.html
//	  home.blade.html
type FilesystemLoader struct {
	root       string
	extensions []string
}

// NewFilesystemLoader creates a loader rooted at root. With no extensions the
// defaults are used.
func NewFilesystemLoader(root string, exts ...string) (*FilesystemLoader, error) {
	if root == "" {
		return nil, NewConfigurationError(ErrMsgInvalidConfig, MetaKeyPath, nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, NewConfigurationError(ErrMsgInvalidConfig, MetaKeyPath, err)
	}
	if len(exts) == 0 {
		exts = DefaultExtensions()
	}
	return &FilesystemLoader{root: abs, extensions: exts}, nil
}

// Root returns the absolute root directory.
func (l *FilesystemLoader) Root() string {
	return l.root
}

// Load implements Loader.
func (l *FilesystemLoader) Load(ctx context.Context, name string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, NewTemplateNotFoundError(name, nil)
	}

	candidates := CandidateNames(name, l.extensions)
	for _, cand := range candidates {
		full := filepath.Join(l.root, filepath.FromSlash(cand))
		rel, err := filepath.Rel(l.root, full)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
				continue
			}
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) && isDirError(full) {
				continue
			}
			return nil, NewLoaderError(ErrMsgLoaderFailed, name, err)
		}
		return &Source{
			Name:    trimExtension(name, l.extensions),
			Path:    filepath.ToSlash(rel),
			Content: string(data),
		}, nil
	}
	return nil, NewTemplateNotFoundError(name, candidates)
}

func isDirError(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// List implements Loader.
func (l *FilesystemLoader) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !hasExtension(d.Name(), l.extensions) {
			return nil
		}
		rel, relErr := filepath.Rel(l.root, path)
		if relErr != nil {
			return relErr
		}
		seen[trimExtension(filepath.ToSlash(rel), l.extensions)] = true
		return nil
	})
	if err != nil {
		return nil, NewLoaderError(ErrMsgLoaderFailed, l.root, err)
	}
	return sortedKeys(seen), nil
}

// MemoryLoader serves templates from a map. Used for tests and embedded
// template sets.
type MemoryLoader struct {
	mu         sync.RWMutex
	templates  map[string]string
	extensions []string
}

// NewMemoryLoader creates a loader holding templates keyed by name.
func NewMemoryLoader(templates map[string]string) *MemoryLoader {
	l := &MemoryLoader{
		templates:  make(map[string]string, len(templates)),
		extensions: DefaultExtensions(),
	}
	for name, content := range templates {
		l.templates[name] = content
	}
	return l
}

// Set adds or replaces a template.
func (l *MemoryLoader) Set(name, content string) {
	l.mu.Lock()
	l.templates[name] = content
	l.mu.Unlock()
}

// Delete removes a template.
func (l *MemoryLoader) Delete(name string) {
	l.mu.Lock()
	delete(l.templates, name)
	l.mu.Unlock()
}

// Load implements Loader. The bare name is tried before the extension
// candidates.
func (l *MemoryLoader) Load(ctx context.Context, name string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	candidates := append([]string{name}, CandidateNames(name, l.extensions)...)
	for _, cand := range candidates {
		if content, ok := l.templates[cand]; ok {
			return &Source{
				Name:    trimExtension(name, l.extensions),
				Path:    cand,
				Content: content,
			}, nil
		}
	}
	return nil, NewTemplateNotFoundError(name, candidates)
}

// List implements Loader.
func (l *MemoryLoader) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool, len(l.templates))
	for name := range l.templates {
		seen[trimExtension(name, l.extensions)] = true
	}
	return sortedKeys(seen), nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
