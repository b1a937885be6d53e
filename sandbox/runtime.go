package sandbox

// Sandbox Runtime (spec §4.5): wraps a goja ECMAScript interpreter to play
// the role of the original host language's dynamic-compilation sandbox.
// State machine Empty -> Compiled -> Live <-> Executing is a generalization
// of the teacher's SandboxInfo/StartSandbox/StopSandbox tracking struct in
// core/vm_sandbox_management.go, repurposed from WASM-gas/memory
// bookkeeping to interpreter lifecycle bookkeeping.

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dop251/goja"

	"smartxchain/pkg/errs"
)

// State is the runtime's lifecycle stage.
type State int

const (
	StateEmpty State = iota
	StateCompiled
	StateLive
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCompiled:
		return "compiled"
	case StateLive:
		return "live"
	case StateExecuting:
		return "executing"
	default:
		return "unknown"
	}
}

// Config bounds one Runtime's resource usage (spec §4.5, §5 timeouts).
type Config struct {
	Timeout            time.Duration
	MemoryCeilingBytes uint64
	MemoryPollInterval time.Duration
}

// DefaultConfig matches spec §5's stated defaults: 30s wall-clock timeout,
// a conservative memory ceiling, polled frequently enough to catch runaway
// allocation without dominating CPU.
func DefaultConfig() Config {
	return Config{
		Timeout:            30 * time.Second,
		MemoryCeilingBytes: 256 << 20,
		MemoryPollInterval: 25 * time.Millisecond,
	}
}

// Runtime executes one contract's source against successive states. It is
// not safe for concurrent Execute calls — the spec's state machine only
// ever allows one execution in flight per contract instance (spec §4.5
// "Live <-> Executing").
type Runtime struct {
	mu    sync.Mutex
	state State
	cfg   Config

	source    string
	program   *goja.Program
	stateBlob string
}

// NewRuntime returns an empty runtime. Zero-value cfg fields fall back to
// DefaultConfig.
func NewRuntime(cfg Config) *Runtime {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MemoryCeilingBytes == 0 {
		cfg.MemoryCeilingBytes = def.MemoryCeilingBytes
	}
	if cfg.MemoryPollInterval <= 0 {
		cfg.MemoryPollInterval = def.MemoryPollInterval
	}
	return &Runtime{state: StateEmpty, cfg: cfg}
}

// Current reports the runtime's lifecycle state.
func (r *Runtime) Current() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Compile runs the Safety Analyzer over source and, on success, compiles it
// against goja (spec §4.4/§4.5 "compile(source)... on failure, returns a
// compilation-diagnostics bundle and leaves prior state intact").
func (r *Runtime) Compile(source string) error {
	if v := Analyze(source); v != nil {
		return errs.New(errs.KindUnsafeCode, v.Error())
	}

	prog, err := goja.Compile("contract.js", source, true)
	if err != nil {
		return errs.Wrap(errs.KindCompilationFailed, "compile contract source", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = source
	r.program = prog
	r.state = StateCompiled
	return nil
}

// LoadState sets the current serialized state blob, opaque to the runtime
// (spec §4.5 "loadState(string)").
func (r *Runtime) LoadState(state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state < StateCompiled {
		return errs.New(errs.KindExecutionFailed, "loadState before compile")
	}
	r.stateBlob = state
	r.state = StateLive
	return nil
}

// SnapshotState returns the current state blob (spec §4.5 "snapshotState()").
func (r *Runtime) SnapshotState() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateBlob
}

type execOutcome struct {
	result   string
	newState string
	err      error
}

// Execute instantiates the contract's entry point and invokes
// Execute(inputs, state), enforcing a wall-clock timeout and a memory
// ceiling (spec §4.5, §5). On timeout or memory breach the state is left
// unchanged and a tagged error is returned; the result string in that case
// mirrors spec §8 S4's literal "Execution timeout" wording.
func (r *Runtime) Execute(ctx context.Context, inputs []string) (string, string, error) {
	if v := AnalyzeInputs(inputs); v != nil {
		return "", "", errs.New(errs.KindUnsafeCode, v.Error())
	}

	r.mu.Lock()
	if r.state != StateLive {
		r.mu.Unlock()
		return "", "", errs.New(errs.KindExecutionFailed, "execute called outside Live state")
	}
	r.state = StateExecuting
	program := r.program
	priorState := r.stateBlob
	cfg := r.cfg
	r.mu.Unlock()

	vm := goja.New()
	if _, err := vm.RunProgram(program); err != nil {
		r.backToLive()
		return "", "", errs.Wrap(errs.KindExecutionFailed, "initialize contract module", err)
	}

	entry := vm.Get("Execute")
	fn, ok := goja.AssertFunction(entry)
	if !ok {
		r.backToLive()
		return "", "", errs.New(errs.KindExecutionFailed, "no Execute(inputs, state) entry point found")
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	done := make(chan execOutcome, 1)
	go func() {
		val, err := fn(goja.Undefined(), vm.ToValue(inputs), vm.ToValue(priorState))
		if err != nil {
			done <- execOutcome{err: err}
			return
		}
		result, newState, perr := parseExecuteResult(val)
		done <- execOutcome{result: result, newState: newState, err: perr}
	}()

	stopMem := make(chan struct{})
	go watchMemory(vm, cfg.MemoryCeilingBytes, cfg.MemoryPollInterval, stopMem)
	defer close(stopMem)

	select {
	case out := <-done:
		r.backToLive()
		if out.err != nil {
			if isInterrupted(out.err, "memory limit") {
				return "Execution failed: memory limit", priorState, errs.Wrap(errs.KindMemoryExceeded, "memory ceiling exceeded", out.err)
			}
			return "Execution failed: " + out.err.Error(), priorState, errs.Wrap(errs.KindExecutionFailed, "contract execution failed", out.err)
		}
		r.mu.Lock()
		r.stateBlob = out.newState
		r.mu.Unlock()
		return out.result, out.newState, nil

	case <-runCtx.Done():
		vm.Interrupt("execution timeout")
		<-done // wait for the goroutine to observe the interrupt and exit
		r.backToLive()
		return "Execution timeout", priorState, errs.New(errs.KindExecutionTimeout, "contract execution exceeded timeout")
	}
}

func (r *Runtime) backToLive() {
	r.mu.Lock()
	r.state = StateLive
	r.mu.Unlock()
}

// watchMemory samples process heap usage and interrupts vm if it exceeds
// ceiling (spec §4.5 "memory ceiling sampled... aborting with
// vm.Interrupt"). It samples process-wide stats since goja does not expose
// per-VM allocation counters.
func watchMemory(vm *goja.Runtime, ceiling uint64, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var stats runtime.MemStats
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			runtime.ReadMemStats(&stats)
			if stats.Alloc > ceiling {
				vm.Interrupt("memory limit")
				return
			}
		}
	}
}

func isInterrupted(err error, reason string) bool {
	ie, ok := err.(*goja.InterruptedError)
	if !ok {
		return false
	}
	v, _ := ie.Value().(string)
	return v == reason
}

// parseExecuteResult accepts either a [result, newState] array or a
// {result, newState} object returned from the contract's Execute function.
func parseExecuteResult(val goja.Value) (string, string, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", "", errs.New(errs.KindExecutionFailed, "Execute returned no value")
	}
	exported := val.Export()

	switch v := exported.(type) {
	case []interface{}:
		if len(v) != 2 {
			return "", "", errs.New(errs.KindExecutionFailed, "Execute tuple must have exactly 2 elements")
		}
		return fmt.Sprintf("%v", v[0]), fmt.Sprintf("%v", v[1]), nil
	case map[string]interface{}:
		result, _ := v["result"].(string)
		newState, _ := v["newState"].(string)
		return result, newState, nil
	default:
		return "", "", errs.New(errs.KindExecutionFailed, "Execute must return a [result, newState] tuple or object")
	}
}
