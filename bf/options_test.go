package bf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MarcinKonowalczyk/runbfx/bf"
	"github.com/MarcinKonowalczyk/runbfx/utils"
)

func writeOptions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bfx.yaml")
	utils.AssertNoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOptions(t *testing.T) {
	path := writeOptions(t, "debug: true\ncrlf: true\nmax_repeat: 1000\n")
	opts, err := bf.LoadOptions(path)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, opts, bf.Options{Debug: true, CRLF: true, MaxRepeat: 1000})
}

func TestLoadOptions_UnknownField(t *testing.T) {
	path := writeOptions(t, "tape_size: 30000\n")
	_, err := bf.LoadOptions(path)
	utils.Assert(t, err != nil, "expected an error for an unknown field")
}

func TestLoadOptions_NegativeMaxRepeat(t *testing.T) {
	path := writeOptions(t, "max_repeat: -1\n")
	_, err := bf.LoadOptions(path)
	utils.Assert(t, err != nil, "expected an error for a negative max_repeat")
}

func TestLoadOptions_Missing(t *testing.T) {
	_, err := bf.LoadOptions(filepath.Join(t.TempDir(), "nope.yaml"))
	utils.AssertErrorIs(t, err, os.ErrNotExist)
}

func TestOptions_FromEnv(t *testing.T) {
	t.Setenv(bf.EnvDebug, "true")
	t.Setenv(bf.EnvCRLF, "false")
	t.Setenv(bf.EnvMaxRepeat, "64")
	opts := bf.Options{CRLF: true}.FromEnv()
	utils.AssertEqual(t, opts, bf.Options{Debug: true, CRLF: false, MaxRepeat: 64})
}

func TestOptions_FromEnviron(t *testing.T) {
	environ := []string{
		"PATH=/bin",
		bf.EnvDebug + "=yes",
		bf.EnvCRLF + "=1",
		bf.EnvCRLF + "=false",
		bf.EnvMaxRepeat + "=12",
	}
	opts := bf.Options{CRLF: true, MaxRepeat: 3}.FromEnviron(environ)
	utils.AssertEqual(t, opts, bf.Options{Debug: true, CRLF: false, MaxRepeat: 12})
}

func TestOptions_FromEnvironIgnored(t *testing.T) {
	environ := []string{
		bf.EnvDebug + "=",
		bf.EnvMaxRepeat + "=-4",
		"BFX_CRLF",
	}
	want := bf.Options{CRLF: true, MaxRepeat: 3}
	utils.AssertEqual(t, want.FromEnviron(environ), want)
	utils.AssertEqual(t, want.FromEnviron(nil), want)
}
