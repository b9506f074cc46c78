// Package testdsl compiles LPIR source text straight through to a running
// emulator and asserts on the outcome, so backend tests can write a program
// as text and check what it does without hand-assembling instructions.
package testdsl

import (
	"context"
	"fmt"
	"time"

	"github.com/lp-glsl-vm/lpirc/pkg/codegen/riscv32"
	"github.com/lp-glsl-vm/lpirc/pkg/elf"
	"github.com/lp-glsl-vm/lpirc/pkg/emulator"
	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

// defaultRunTimeout bounds how long a single compiled program is allowed to
// run before a test gives up waiting on it. The emulator enforces its own
// instruction budget independently; this timeout exists only so a defect
// that somehow evades that budget (an infinite host-side loop in Run's
// syscall dispatch, for instance) can't hang the test binary forever.
const defaultRunTimeout = 5 * time.Second

// defaultRAMSize is the guest RAM given to every compiled program unless a
// caller asks for more, enough for the panic-message and write-buffer tests
// exercised by this package without needing a per-test size.
const defaultRAMSize = 4096

// Compile parses, verifies, and lowers source into a flat RV32IM image
// ready to run. The entry function must be declared first in source, since
// LowerModule lays functions out in declaration order and execution always
// starts at offset 0.
func Compile(source string) ([]byte, error) {
	mod, err := lpir.ParseModule(source)
	if err != nil {
		return nil, fmt.Errorf("testdsl: parse: %w", err)
	}

	if errs := lpir.VerifyModule(mod); len(errs) > 0 {
		return nil, fmt.Errorf("testdsl: verify: %w", errs[0])
	}

	buf, err := riscv32.NewLowerer().LowerModule(mod)
	if err != nil {
		return nil, fmt.Errorf("testdsl: lower: %w", err)
	}

	return buf.AsBytes(), nil
}

// CompileELF is Compile followed by ELF32 packaging, for tests that exercise
// the image format itself rather than just running the code.
func CompileELF(source string) ([]byte, error) {
	code, err := Compile(source)
	if err != nil {
		return nil, err
	}
	return elf.Generate(code), nil
}

// Outcome is the result of running a compiled program to completion, along
// with the emulator instance itself so a test can inspect final register
// state beyond the syscall/exit-code surface Run already reports.
type Outcome struct {
	Run emulator.RunResult
	Emu *emulator.Emulator
}

// Run compiles source and runs it to completion (done/ebreak syscall or
// guest panic) inside a worker goroutine, bounded by timeout. The goroutine
// is never forcibly killed on timeout, since Go has no mechanism to do
// that; the emulator's own instruction-count budget is what actually
// protects against a runaway program; the timeout here only keeps a test
// from blocking indefinitely if that budget is somehow set too high for the
// test harness's patience.
func Run(ctx context.Context, source string, ramSize int) (Outcome, error) {
	code, err := Compile(source)
	if err != nil {
		return Outcome{}, err
	}

	if ramSize <= 0 {
		ramSize = defaultRAMSize
	}
	e := emulator.New(code, make([]byte, ramSize))

	type result struct {
		res emulator.RunResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := e.Run()
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Outcome{}, r.err
		}
		return Outcome{Run: r.res, Emu: e}, nil
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("testdsl: run: %w", ctx.Err())
	}
}

// RunDefault is Run with defaultRunTimeout and defaultRAMSize.
func RunDefault(source string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()
	return Run(ctx, source, defaultRAMSize)
}
