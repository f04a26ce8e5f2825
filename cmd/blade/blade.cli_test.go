package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/itsatony/go-blade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test data constants
const (
	testHomeTemplate   = "Hello, {{ $name }}!"
	testAboutTemplate  = "About {{ $site }}"
	testBrokenTemplate = "first\n{{ $x.y.z() }}"
	testDataJSON       = `{"name": "Ada", "site": "Example"}`
	testDataYAML       = "name: Grace\nsite: Docs\n"
)

// setupViews creates a views directory with test templates
func setupViews(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"home.blade.html":        testHomeTemplate,
		"pages/about.blade.html": testAboutTemplate,
		"broken.blade.html":      testBrokenTemplate,
	}
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), DirPermissions))
		require.NoError(t, os.WriteFile(full, []byte(content), FilePermissions))
	}
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := run(context.Background(), args, strings.NewReader(stdin), stdout, stderr)
	return code, stdout.String(), stderr.String()
}

// ==================== root command ====================

func TestRun_NoArgs_ShowsHelp(t *testing.T) {
	code, stdout, _ := runCLI(t, "")

	assert.Equal(t, ExitCodeSuccess, code)
	assert.Contains(t, stdout, CLIName)
	assert.Contains(t, stdout, CmdNameRender)
	assert.Contains(t, stdout, CmdNameTrace)
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "", "explode")

	assert.Equal(t, ExitCodeUsageError, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestRun_VersionCommand(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		code, stdout, _ := runCLI(t, "", CmdNameVersion)
		assert.Equal(t, ExitCodeSuccess, code)
		assert.Contains(t, stdout, CLIName)
	})

	t.Run("json", func(t *testing.T) {
		code, stdout, _ := runCLI(t, "", CmdNameVersion, "--"+FlagFormat, OutputFormatJSON)
		require.Equal(t, ExitCodeSuccess, code)

		var out versionOutput
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.NotEmpty(t, out.GoVersion)
	})

	t.Run("invalid format", func(t *testing.T) {
		code, _, stderr := runCLI(t, "", CmdNameVersion, "--"+FlagFormat, "xml")
		assert.Equal(t, ExitCodeUsageError, code)
		assert.Contains(t, stderr, ErrMsgInvalidFormat)
	})
}

// ==================== render ====================

func TestRender_Single(t *testing.T) {
	views := setupViews(t)

	code, stdout, stderr := runCLI(t, "", CmdNameRender, "home", "--"+FlagViews, views, "--"+FlagData, testDataJSON)

	require.Equal(t, ExitCodeSuccess, code, stderr)
	assert.Equal(t, "Hello, Ada!", stdout)
}

func TestRender_MultipleInArgumentOrder(t *testing.T) {
	views := setupViews(t)

	code, stdout, stderr := runCLI(t, "", CmdNameRender, "pages.about", "home",
		"--"+FlagViews, views, "--"+FlagData, testDataJSON, "--"+FlagParallel, "2")

	require.Equal(t, ExitCodeSuccess, code, stderr)
	assert.Equal(t, "About ExampleHello, Ada!", stdout)
}

func TestRender_OutDirectory(t *testing.T) {
	views := setupViews(t)
	out := t.TempDir()

	code, stdout, stderr := runCLI(t, "", CmdNameRender, "home", "pages.about",
		"--"+FlagViews, views, "--"+FlagData, testDataJSON, "--"+FlagOut, out)
	require.Equal(t, ExitCodeSuccess, code, stderr)
	assert.Empty(t, stdout)

	home, err := os.ReadFile(filepath.Join(out, "home"+OutputFileExt))
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", string(home))

	about, err := os.ReadFile(filepath.Join(out, "pages", "about"+OutputFileExt))
	require.NoError(t, err)
	assert.Equal(t, "About Example", string(about))
}

func TestRender_DataFile(t *testing.T) {
	views := setupViews(t)

	t.Run("yaml file", func(t *testing.T) {
		dataPath := filepath.Join(t.TempDir(), "data.yaml")
		require.NoError(t, os.WriteFile(dataPath, []byte(testDataYAML), FilePermissions))

		code, stdout, stderr := runCLI(t, "", CmdNameRender, "home", "--"+FlagViews, views, "--"+FlagDataFile, dataPath)
		require.Equal(t, ExitCodeSuccess, code, stderr)
		assert.Equal(t, "Hello, Grace!", stdout)
	})

	t.Run("json from stdin with inline override", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, testDataJSON, CmdNameRender, "home",
			"--"+FlagViews, views, "-"+FlagDataFileShort, InputSourceStdin, "-"+FlagDataShort, `{"name": "Linus"}`)
		require.Equal(t, ExitCodeSuccess, code, stderr)
		assert.Equal(t, "Hello, Linus!", stdout)
	})
}

func TestRender_Errors(t *testing.T) {
	views := setupViews(t)

	tests := []struct {
		name     string
		args     []string
		code     int
		contains string
	}{
		{
			name:     "missing name",
			args:     []string{CmdNameRender, "--" + FlagViews, views},
			code:     ExitCodeUsageError,
			contains: "requires at least 1 arg",
		},
		{
			name:     "invalid json",
			args:     []string{CmdNameRender, "home", "--" + FlagViews, views, "--" + FlagData, "{nope"},
			code:     ExitCodeInputError,
			contains: ErrMsgInvalidJSON,
		},
		{
			name:     "unknown template",
			args:     []string{CmdNameRender, "nowhere", "--" + FlagViews, views},
			code:     ExitCodeRenderError,
			contains: "nowhere",
		},
		{
			name:     "no views",
			args:     []string{CmdNameRender, "home"},
			code:     ExitCodeRenderError,
			contains: ErrMsgRenderFailed,
		},
		{
			name:     "missing config",
			args:     []string{CmdNameRender, "home", "--" + FlagConfig, filepath.Join(views, "none.yaml")},
			code:     ExitCodeInputError,
			contains: ErrMsgEngineFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, "", tt.args...)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr, tt.contains)
		})
	}
}

func TestRender_ExecutionErrorPrintsTrace(t *testing.T) {
	views := setupViews(t)

	code, stdout, stderr := runCLI(t, "", CmdNameRender, "broken", "--"+FlagViews, views, "--"+FlagData, `{"x": 1}`)

	assert.Equal(t, ExitCodeRenderError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "broken:2")
	assert.Contains(t, stderr, "at ")
}

func TestRender_ConfigFile(t *testing.T) {
	views := setupViews(t)
	cfgPath := filepath.Join(t.TempDir(), "blade.toml")
	cfg := "mode = \"development\"\nviews = " + strconv.Quote(views) + "\n\n[globals]\nsite = \"FromConfig\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), FilePermissions))

	code, stdout, stderr := runCLI(t, "", CmdNameRender, "pages/about", "--"+FlagConfig, cfgPath)

	require.Equal(t, ExitCodeSuccess, code, stderr)
	assert.Equal(t, "About FromConfig", stdout)
}

// ==================== compile ====================

func TestCompile_PrintsFragments(t *testing.T) {
	views := setupViews(t)

	code, stdout, stderr := runCLI(t, "", CmdNameCompile, filepath.Join(views, "home.blade.html"))

	require.Equal(t, ExitCodeSuccess, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "Hello, "))
	assert.Contains(t, stdout, "<?blade echo")
	assert.NotContains(t, stdout, "{{")
}

func TestCompile_Stdin(t *testing.T) {
	code, stdout, stderr := runCLI(t, "@if($a) yes @endif", CmdNameCompile, InputSourceStdin)

	require.Equal(t, ExitCodeSuccess, code, stderr)
	assert.Contains(t, stdout, "<?blade if")
	assert.Contains(t, stdout, "<?blade endif")
}

func TestCompile_MissingFile(t *testing.T) {
	code, _, stderr := runCLI(t, "", CmdNameCompile, filepath.Join(t.TempDir(), "none.html"))

	assert.Equal(t, ExitCodeInputError, code)
	assert.Contains(t, stderr, ErrMsgReadFileFailed)
}

// ==================== trace ====================

func compiledWithInclude(t *testing.T) (string, int) {
	t.Helper()
	loader := blade.NewMemoryLoader(map[string]string{"partial": "a\nFAIL"})
	engine := blade.MustNew(blade.WithLoader(loader))

	compiled, err := engine.Compile(context.Background(), "top\n@include('partial')\nbottom")
	require.NoError(t, err)

	for i, line := range strings.Split(compiled, "\n") {
		if line == "FAIL" {
			return compiled, i + 1
		}
	}
	t.Fatalf("FAIL line not found in %q", compiled)
	return "", 0
}

func TestTrace_ResolvesIncludedLine(t *testing.T) {
	compiled, physical := compiledWithInclude(t)
	file := filepath.Join(t.TempDir(), "compiled.txt")
	require.NoError(t, os.WriteFile(file, []byte(compiled), FilePermissions))

	t.Run("text", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, "", CmdNameTrace, file, strconv.Itoa(physical))
		require.Equal(t, ExitCodeSuccess, code, stderr)
		assert.Contains(t, stdout, "partial:2")
		assert.Contains(t, stdout, "in include ("+RootPathLabel+":2)")
	})

	t.Run("json", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, "", CmdNameTrace, file, strconv.Itoa(physical), "-"+FlagFormatShort, OutputFormatJSON)
		require.Equal(t, ExitCodeSuccess, code, stderr)

		var out locationOutput
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, "partial", out.Path)
		assert.Equal(t, 2, out.Line)
		assert.Equal(t, physical, out.Physical)
		require.Len(t, out.Frames, 1)
	})

	t.Run("line after block", func(t *testing.T) {
		lines := strings.Count(compiled, "\n") + 1
		code, stdout, _ := runCLI(t, "", CmdNameTrace, file, strconv.Itoa(lines))
		require.Equal(t, ExitCodeSuccess, code)
		assert.Contains(t, stdout, RootPathLabel+":3")
	})
}

func TestTrace_InvalidLine(t *testing.T) {
	for _, arg := range []string{"zero", "0"} {
		code, _, stderr := runCLI(t, "", CmdNameTrace, InputSourceStdin, arg)
		assert.Equal(t, ExitCodeUsageError, code, arg)
		assert.Contains(t, stderr, ErrMsgInvalidLine)
	}
}

// ==================== helpers ====================

func TestLoadBindings(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		b, err := loadBindings("", "", strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, b)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := decodeBindings([]byte("a: [1"), ".yml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgInvalidYAML)
	})
}

func TestPrinter_NoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	newPrinter(&buf).printError(fail(ExitCodeError, "boom", nil))
	assert.Equal(t, FmtErrorPrefix+"boom\n", buf.String())
}
