package bf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// comptime override for debug flag
// set with `-ldflags="-X 'github.com/MarcinKonowalczyk/runbfx/bf.debug=true'"`
var debug string

// Environment variables overriding Options.
const (
	EnvDebug     = "BFX_DEBUG"
	EnvCRLF      = "BFX_CRLF"
	EnvMaxRepeat = "BFX_MAX_REPEAT"
)

type Options struct {
	// Debug enables debug logging of the parser and interpreter
	Debug bool `yaml:"debug"`
	// CRLF writes '\n' as "\r\n". Docker consoles want this.
	CRLF bool `yaml:"crlf"`
	// MaxRepeat bounds the count of a repetition group. 0 means no limit.
	MaxRepeat int `yaml:"max_repeat"`
}

func DefaultOptions() Options {
	return Options{
		Debug: debug != "",
	}
}

// LoadOptions reads options from a YAML file. Unknown keys are an error.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	file, err := os.Open(path)
	if err != nil {
		return opts, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&opts); err != nil {
		return opts, fmt.Errorf("options: parse %s: %w", path, err)
	}
	if opts.MaxRepeat < 0 {
		return opts, fmt.Errorf("options: max_repeat must not be negative, got %d", opts.MaxRepeat)
	}
	return opts, nil
}

// FromEnv overlays the BFX_* environment variables that are set.
func (o Options) FromEnv() Options {
	if env.Has(EnvDebug) {
		o.Debug = env.Bool(EnvDebug)
	}
	if env.Has(EnvCRLF) {
		o.CRLF = env.Bool(EnvCRLF)
	}
	if n := env.Int(EnvMaxRepeat, o.MaxRepeat); n >= 0 {
		o.MaxRepeat = n
	}
	return o
}

// FromEnviron overlays the BFX_* entries of an environment list of
// "key=value" strings, such as the environment of a container process.
// Empty values are ignored and later entries win.
func (o Options) FromEnviron(environ []string) Options {
	vars := make(map[string]string)
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && v != "" {
			vars[k] = v
		}
	}
	if v, ok := vars[EnvDebug]; ok {
		o.Debug = env.AsBool(v)
	}
	if v, ok := vars[EnvCRLF]; ok {
		o.CRLF = env.AsBool(v)
	}
	if n, err := strconv.Atoi(vars[EnvMaxRepeat]); err == nil && n >= 0 {
		o.MaxRepeat = n
	}
	return o
}
