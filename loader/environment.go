package loader

import (
	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/errors"
)

// injectEnvironment copies env into the instance's exported ENV store.
func injectEnvironment(inst qtwasm.Instance, env map[string]string) error {
	if len(env) == 0 {
		return nil
	}

	var store map[string]string
	if exp, ok := inst.(qtwasm.EnvExporter); ok {
		store = exp.Env()
	}
	if store == nil {
		return errors.CapabilityMissing("ENV",
			"ENV must be exported if environment variables are passed, "+
				"add it to the module's exported runtime methods")
	}

	for name, value := range env {
		store[name] = value
	}
	return nil
}
