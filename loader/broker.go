package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"

	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/errors"
)

// circuitBreaker is a failure channel for errors the host cannot report
// through the entry function's own result.
type circuitBreaker struct {
	ch   chan error
	once sync.Once
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{ch: make(chan error, 1)}
}

func (b *circuitBreaker) trip(err error) {
	b.once.Do(func() {
		b.ch <- err
	})
}

// moduleInstantiator hands the precompiled module to the host, tripping the
// breaker when the module cannot be obtained or is rejected.
func moduleInstantiator(source func(context.Context) (wazero.CompiledModule, error), b *circuitBreaker) qtwasm.InstantiateWasmFunc {
	return func(ctx context.Context, success func(wazero.CompiledModule) error) {
		mod, err := source(ctx)
		if err == nil {
			err = success(mod)
		}
		if err != nil {
			b.trip(errors.Instantiation(err))
		}
	}
}

type entryResult struct {
	inst qtwasm.Instance
	err  error
}

// instantiate calls entry once and returns whichever settles first: the
// entry function or the breaker. A panic in entry is returned as an error.
func instantiate(ctx context.Context, entry qtwasm.EntryFunc, rc *qtwasm.RuntimeConfig, b *circuitBreaker) (qtwasm.Instance, error) {
	done := make(chan entryResult, 1)
	go func() {
		var res entryResult
		defer func() {
			if r := recover(); r != nil {
				res = entryResult{err: panicError(r)}
			}
			done <- res
		}()
		res.inst, res.err = entry(ctx, rc)
	}()

	select {
	case res := <-done:
		return res.inst, res.err
	case err := <-b.ch:
		go func() {
			// The host may still settle; release what it builds.
			if res := <-done; res.inst != nil {
				res.inst.Close(context.WithoutCancel(ctx))
			}
		}()
		return nil, err
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
