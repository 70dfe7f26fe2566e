// Package legacy adapts the older option-bag loader API onto loader.Load.
//
// New is deprecated: callers should build a loader.Config and call
// loader.Load directly. The handle it returns mirrors the old surface:
// ShowLoader is called on construction, ShowCanvas once the runtime is
// initialized, ShowExit after the exit report is recorded and ShowError
// when the load fails.
package legacy
