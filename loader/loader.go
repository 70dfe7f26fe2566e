package loader

import (
	"context"

	"go.uber.org/zap"

	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/errors"
)

// Load validates cfg, fetches preload manifests, constructs the module
// instance and runs its main.
//
// Load returns an error when the config is malformed, a manifest cannot be
// fetched, a capability requested by the config is not exported, or a
// failure escapes instantiation or main. Escaping failures are also reported
// through Qt.OnExit. Runtime exits and aborts are reported through Qt.OnExit
// only.
//
// When main unwinds on purpose the instance is returned with a nil error and
// no report is delivered. If the entry function itself unwinds there is no
// instance yet, so Load returns nil, nil.
func Load(ctx context.Context, cfg *Config) (qtwasm.Instance, error) {
	n, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	log := Logger()
	qt := n.qt

	files, err := fetchManifests(ctx, qt.Fetcher, qt.Preload)
	if err != nil {
		return nil, err
	}
	log.Debug("preload manifests fetched",
		zap.Int("manifests", len(qt.Preload)),
		zap.Int("files", len(files)))

	lc := newLifecycle(qt.OnExit, log)
	rc := n.runtime

	preloadRequested := len(qt.Preload) > 0
	rc.PreRun = append(rc.PreRun, func(_ context.Context, inst qtwasm.Instance) error {
		if err := injectEnvironment(inst, qt.Environment); err != nil {
			return err
		}
		if !preloadRequested {
			return nil
		}
		return materialize(inst, files, qt.QtDir)
	})
	rc.OnRuntimeInitialized = append(rc.OnRuntimeInitialized, func() {
		if qt.OnLoaded != nil {
			qt.OnLoaded()
		}
	})
	rc.OnExit = append(rc.OnExit, lc.exit)
	rc.OnAbort = append(rc.OnAbort, lc.abort)
	rc.LocateFile = locateFile(rc.LocateFile, qt.QtDir)

	breaker := newCircuitBreaker()
	if qt.Module != nil {
		rc.InstantiateWasm = moduleInstantiator(qt.Module, breaker)
	}

	inst, err := instantiate(ctx, qt.EntryFunction, rc, breaker)
	if err != nil {
		return settle(ctx, lc, qt, inst, errors.PhaseInstantiate, err)
	}
	lc.running()
	log.Debug("module instantiated")

	if n.intent.runMain {
		if err := inst.CallMain(ctx, n.intent.args); err != nil {
			return settle(ctx, lc, qt, inst, errors.PhaseMain, err)
		}
		log.Debug("main returned")
	}

	return inst, nil
}

// settle classifies a failure escaping instantiation or main.
func settle(ctx context.Context, lc *lifecycle, qt QtConfig, inst qtwasm.Instance, phase errors.Phase, err error) (qtwasm.Instance, error) {
	switch {
	case qt.IsUnwind(err):
		Logger().Debug("main unwound to the event loop", zap.Stringer("state", lc.State()))
		return inst, nil
	case errors.Is(err, errors.ErrAbort):
		// Reported by the abort listener; this only covers hosts that
		// return the abort without firing it.
		var qerr *errors.Error
		text := err.Error()
		if errors.As(err, &qerr) && qerr.Kind == errors.KindAbort {
			text = qerr.Detail
		}
		lc.abort(text)
		return inst, nil
	}

	lc.fail(err)
	if inst != nil {
		if cerr := inst.Close(context.WithoutCancel(ctx)); cerr != nil {
			Logger().Warn("close failed instance", zap.Error(cerr))
		}
	}
	var qerr *errors.Error
	if !errors.As(err, &qerr) {
		err = errors.Uncaught(phase, err)
	}
	return nil, err
}
