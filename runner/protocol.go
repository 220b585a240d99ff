package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mh/benchmark"
)

// ProtocolVersion is the version of the child result envelope.
const ProtocolVersion = 1

// ChildCommand is the hidden sub-command a fork runs.
const ChildCommand = "run-child"

// Environment markers set on every fork.
const (
	EnvChild     = "GOMH_CHILD"
	EnvForkIndex = "GOMH_FORK_INDEX"
	EnvRunID     = "GOMH_RUN_ID"
	EnvProtocol  = "GOMH_PROTOCOL"
	// EnvConfig carries the parent-resolved class configuration as JSON.
	EnvConfig = "GOMH_CONFIG"
)

var (
	// ErrDeserialization indicates a child's output is not a valid envelope.
	ErrDeserialization = errors.New("invalid fork output")

	// ErrNotChild indicates the child markers are missing from the environment.
	ErrNotChild = errors.New("not running as a fork child")
)

// Envelope is the single JSON document a child writes to stdout.
type Envelope struct {
	Version int                   `json:"version"`
	Result  *benchmark.ForkResult `json:"result"`
}

// ChildSpec is everything needed to start one fork.
type ChildSpec struct {
	Executable string
	Args       []string
	Env        []string
}

// BuildChildSpec assembles the command line and environment of a fork.
//
// Arguments:
//   - executable: The binary to re-execute.
//   - class: The class the child runs.
//   - fork: The 1-based fork index.
//   - runID: The run identifier the child must echo back.
//   - cfg: The parent-resolved class configuration.
//   - environ: The inherited environment ("K=V" entries).
//
// Returns:
//   - ChildSpec: Fork args precede the run-child sub-command; the
//     environment is environ overlaid by cfg.Fork.Env, then by the markers.
//   - error: If the configuration cannot be encoded.
func BuildChildSpec(executable, class string, fork int, runID string, cfg benchmark.Config, environ []string) (ChildSpec, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return ChildSpec{}, errors.Wrap(err, "failed to encode child configuration")
	}

	args := make([]string, 0, len(cfg.Fork.Args)+2)
	args = append(args, cfg.Fork.Args...)
	args = append(args, ChildCommand, class)

	env := newEnvSet(environ)
	for _, k := range sortedKeys(cfg.Fork.Env) {
		env.set(k, cfg.Fork.Env[k])
	}
	env.set(EnvChild, "1")
	env.set(EnvForkIndex, strconv.Itoa(fork))
	env.set(EnvRunID, runID)
	env.set(EnvProtocol, strconv.Itoa(ProtocolVersion))
	env.set(EnvConfig, string(encoded))

	return ChildSpec{Executable: executable, Args: args, Env: env.list()}, nil
}

// EncodeForkResult writes the envelope of fr as one line.
func EncodeForkResult(w io.Writer, fr benchmark.ForkResult) error {
	data, err := json.Marshal(Envelope{Version: ProtocolVersion, Result: &fr})
	if err != nil {
		return errors.Wrap(err, "failed to encode fork result")
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "failed to write fork result")
	}
	return nil
}

// DecodeForkResult parses and validates a child's stdout.
//
// Arguments:
//   - data: The full stdout of the child.
//
// Returns:
//   - benchmark.ForkResult: The decoded result.
//   - error: ErrDeserialization if the output is empty, malformed, has
//     trailing data, carries another protocol version or an invalid result.
func DecodeForkResult(data []byte) (benchmark.ForkResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return benchmark.ForkResult{}, errors.Wrap(ErrDeserialization, "child wrote no result")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return benchmark.ForkResult{}, errors.Wrapf(ErrDeserialization, "malformed envelope: %v", err)
	}
	if dec.InputOffset() != int64(len(trimmed)) {
		return benchmark.ForkResult{}, errors.Wrapf(ErrDeserialization, "unexpected data after envelope at byte %d", dec.InputOffset())
	}
	if env.Version != ProtocolVersion {
		return benchmark.ForkResult{}, errors.Wrapf(ErrDeserialization, "protocol version %d, expected %d", env.Version, ProtocolVersion)
	}
	if env.Result == nil {
		return benchmark.ForkResult{}, errors.Wrap(ErrDeserialization, "envelope has no result")
	}
	if err := env.Result.Validate(); err != nil {
		return benchmark.ForkResult{}, errors.Wrapf(ErrDeserialization, "invalid result: %v", err)
	}
	return *env.Result, nil
}

// ChildContext is what a fork learns from its environment.
type ChildContext struct {
	Fork   int
	RunID  string
	Config benchmark.Config
}

// ChildContextFromEnv reads the fork markers.
//
// Arguments:
//   - getenv: Environment lookup, usually os.Getenv.
//
// Returns:
//   - ChildContext: Fork index, run ID and parent-resolved configuration.
//   - error: ErrNotChild without the child marker, ErrDeserialization for
//     a protocol mismatch or malformed values.
func ChildContextFromEnv(getenv func(string) string) (ChildContext, error) {
	if getenv(EnvChild) != "1" {
		return ChildContext{}, errors.Wrapf(ErrNotChild, "%s is not set", EnvChild)
	}
	if v := getenv(EnvProtocol); v != strconv.Itoa(ProtocolVersion) {
		return ChildContext{}, errors.Wrapf(ErrDeserialization, "parent speaks protocol %q, child speaks %d", v, ProtocolVersion)
	}

	fork, err := strconv.Atoi(getenv(EnvForkIndex))
	if err != nil || fork < 1 {
		return ChildContext{}, errors.Wrapf(ErrDeserialization, "invalid %s %q", EnvForkIndex, getenv(EnvForkIndex))
	}

	var cfg benchmark.Config
	if err := json.Unmarshal([]byte(getenv(EnvConfig)), &cfg); err != nil {
		return ChildContext{}, errors.Wrapf(ErrDeserialization, "invalid %s: %v", EnvConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return ChildContext{}, err
	}

	return ChildContext{Fork: fork, RunID: getenv(EnvRunID), Config: cfg}, nil
}

// envSet is an ordered environment where later assignments win.
type envSet struct {
	keys   []string
	values map[string]string
}

func newEnvSet(environ []string) *envSet {
	e := &envSet{values: make(map[string]string, len(environ))}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		e.set(k, v)
	}
	return e
}

func (e *envSet) set(k, v string) {
	if _, ok := e.values[k]; !ok {
		e.keys = append(e.keys, k)
	}
	e.values[k] = v
}

func (e *envSet) list() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, fmt.Sprintf("%s=%s", k, e.values[k]))
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
