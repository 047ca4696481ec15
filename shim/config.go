package shim

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MarcinKonowalczyk/runbfx/bf"
	"github.com/containerd/errdefs"
)

const configFilename = "config.json"

// optionsFilename is looked up in the root of the container filesystem.
const optionsFilename = "bfx.yaml"

// OCI runtime spec, only the bits we need
type ociRoot struct {
	// Path is the path to the rootfs
	Path string `json:"path"`
}

type ociProcess struct {
	// Args is the command to run
	Args []string `json:"args"`
	// Env is the environment variables to set
	Env []string `json:"env"`
}

type ociSpec struct {
	Root    ociRoot    `json:"root"`
	Process ociProcess `json:"process"`
}

// Config describes the script a task runs and how to run it.
type Config struct {
	Root       string
	Entrypoint string
	Path       []string
	Options    bf.Options
}

// defaultOptions are used when the image has no bfx.yaml. Container
// consoles want "\r\n".
func defaultOptions() bf.Options {
	opts := bf.DefaultOptions()
	opts.CRLF = true
	return opts
}

// ReadConfig reads the bundle's config.json and the optional bfx.yaml from
// its rootfs. Invalid bundles are reported as errdefs.ErrInvalidArgument.
func ReadConfig(bundle string) (*Config, error) {
	filePath := filepath.Join(bundle, configFilename)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found: %w", configFilename, errdefs.ErrInvalidArgument)
		}
		return nil, err
	}
	var spec ociSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %w", configFilename, errdefs.ErrInvalidArgument, err)
	}

	if spec.Root.Path == "" {
		return nil, fmt.Errorf("root path not found in config file %s: %w", configFilename, errdefs.ErrInvalidArgument)
	}
	root := spec.Root.Path
	if !filepath.IsAbs(root) {
		root = filepath.Join(bundle, root)
	}

	if len(spec.Process.Args) != 1 {
		return nil, fmt.Errorf("incorrect number of args in the CMD. Expected 1, got %d: %w", len(spec.Process.Args), errdefs.ErrInvalidArgument)
	}
	entrypoint := spec.Process.Args[0]

	if err := bf.CheckExtension(entrypoint); err != nil {
		return nil, fmt.Errorf("entry point: %w: %w", errdefs.ErrInvalidArgument, err)
	}

	script := filepath.Join(root, entrypoint)
	if _, err := os.Stat(script); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("script %s does not exist: %w", entrypoint, errdefs.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("checking script %s: %w", entrypoint, err)
	}

	opts := defaultOptions()
	optsPath := filepath.Join(root, optionsFilename)
	if _, err := os.Stat(optsPath); err == nil {
		if opts, err = bf.LoadOptions(optsPath); err != nil {
			return nil, fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, err)
		}
	}
	opts = opts.FromEnviron(spec.Process.Env)

	return &Config{
		Root:       root,
		Entrypoint: entrypoint,
		Path:       searchPath(spec.Process.Env),
		Options:    opts,
	}, nil
}

// searchPath splits the PATH entry of an environment list.
func searchPath(environ []string) []string {
	for _, kv := range environ {
		if path, ok := strings.CutPrefix(kv, "PATH="); ok {
			return strings.Split(path, ":")
		}
	}
	return []string{}
}

func (c *Config) FullPath() string {
	return filepath.Join(c.Root, c.Entrypoint)
}

// Args are the arguments of the interpreter sub-command for this script.
func (c *Config) Args() []string {
	return []string{
		"brainfuck",
		"-file", c.FullPath(),
		"-crlf=" + strconv.FormatBool(c.Options.CRLF),
		"-debug=" + strconv.FormatBool(c.Options.Debug),
		"-max-repeat=" + strconv.Itoa(c.Options.MaxRepeat),
	}
}
