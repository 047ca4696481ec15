package shim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MarcinKonowalczyk/runbfx/bf"
	"github.com/MarcinKonowalczyk/runbfx/utils"
	"github.com/containerd/errdefs"
)

// makeBundle lays out a bundle with a rootfs containing files.
func makeBundle(t *testing.T, args []string, env []string, files map[string]string) string {
	t.Helper()
	bundle := t.TempDir()
	rootfs := filepath.Join(bundle, "rootfs")
	utils.AssertNoError(t, os.MkdirAll(rootfs, 0o755))
	for name, content := range files {
		utils.AssertNoError(t, os.WriteFile(filepath.Join(rootfs, name), []byte(content), 0o644))
	}
	spec := ociSpec{
		Root:    ociRoot{Path: rootfs},
		Process: ociProcess{Args: args, Env: env},
	}
	data, err := json.Marshal(spec)
	utils.AssertNoError(t, err)
	utils.AssertNoError(t, os.WriteFile(filepath.Join(bundle, configFilename), data, 0o644))
	return bundle
}

func TestReadConfig(t *testing.T) {
	bundle := makeBundle(t,
		[]string{"hello.bf"},
		[]string{"HOME=/", "PATH=/bin:/usr/bin"},
		map[string]string{"hello.bf": "++."},
	)
	config, err := ReadConfig(bundle)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, config.Entrypoint, "hello.bf")
	utils.AssertEqual(t, config.FullPath(), filepath.Join(bundle, "rootfs", "hello.bf"))
	utils.AssertDeepEqual(t, []string{"/bin", "/usr/bin"}, config.Path)
	utils.AssertEqual(t, config.Options, defaultOptions())
	utils.Assert(t, config.Options.CRLF, "CRLF should default to on in containers")
}

func TestReadConfig_Options(t *testing.T) {
	bundle := makeBundle(t,
		[]string{"hello.brainfuck"},
		nil,
		map[string]string{
			"hello.brainfuck": "++.",
			optionsFilename:   "debug: true\nmax_repeat: 100\n",
		},
	)
	config, err := ReadConfig(bundle)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, config.Options, bf.Options{Debug: true, MaxRepeat: 100})
	utils.AssertDeepEqual(t, []string{
		"brainfuck",
		"-file", config.FullPath(),
		"-crlf=false",
		"-debug=true",
		"-max-repeat=100",
	}, config.Args())
}

func TestReadConfig_EnvOverrides(t *testing.T) {
	bundle := makeBundle(t,
		[]string{"hello.bf"},
		[]string{"PATH=/bin", bf.EnvCRLF + "=false", bf.EnvMaxRepeat + "=7"},
		map[string]string{
			"hello.bf":      "++.",
			optionsFilename: "debug: true\nmax_repeat: 100\n",
		},
	)
	config, err := ReadConfig(bundle)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, config.Options, bf.Options{Debug: true, CRLF: false, MaxRepeat: 7})
	utils.AssertDeepEqual(t, []string{
		"brainfuck",
		"-file", config.FullPath(),
		"-crlf=false",
		"-debug=true",
		"-max-repeat=7",
	}, config.Args())
}

func TestReadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		files map[string]string
	}{
		{"no args", []string{}, nil},
		{"two args", []string{"a.bf", "b.bf"}, map[string]string{"a.bf": "", "b.bf": ""}},
		{"wrong extension", []string{"hello.txt"}, map[string]string{"hello.txt": "++."}},
		{"no extension", []string{"hello"}, map[string]string{"hello": "++."}},
		{"missing script", []string{"hello.bf"}, nil},
		{"bad options", []string{"hello.bf"}, map[string]string{"hello.bf": "", optionsFilename: "tape: 1\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := makeBundle(t, tt.args, nil, tt.files)
			_, err := ReadConfig(bundle)
			utils.AssertErrorIs(t, err, errdefs.ErrInvalidArgument)
		})
	}
}

func TestReadConfig_NoConfigFile(t *testing.T) {
	_, err := ReadConfig(t.TempDir())
	utils.AssertErrorIs(t, err, errdefs.ErrInvalidArgument)
}

func TestReadConfig_RelativeRoot(t *testing.T) {
	bundle := t.TempDir()
	utils.AssertNoError(t, os.MkdirAll(filepath.Join(bundle, "rootfs"), 0o755))
	utils.AssertNoError(t, os.WriteFile(filepath.Join(bundle, "rootfs", "a.bf"), nil, 0o644))
	data := `{"root": {"path": "rootfs"}, "process": {"args": ["a.bf"]}}`
	utils.AssertNoError(t, os.WriteFile(filepath.Join(bundle, configFilename), []byte(data), 0o644))

	config, err := ReadConfig(bundle)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, config.Root, filepath.Join(bundle, "rootfs"))
}

func TestSearchPath(t *testing.T) {
	utils.AssertDeepEqual(t, []string{}, searchPath(nil))
	utils.AssertDeepEqual(t, []string{"/a", "/b"}, searchPath([]string{"X=1", "PATH=/a:/b"}))
}
