// Package config loads schoolcache configuration.
//
// Loading is layered: built-in defaults, then each file added with AddLayer
// (JSON or YAML, chosen by extension) merged key by key, then SCHOOLCACHE_*
// environment overrides. Every file layer is checked against an embedded
// JSON schema before it is merged, and the result is checked by
// Config.Validate when validation is enabled.
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/device.json")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Durations are strings ("15m", "1d") or whole seconds.
package config
