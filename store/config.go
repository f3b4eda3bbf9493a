// Package store implements the Storage Facade: the single type sealedkv
// clients interact with, composing the engine, envelope crypto, password
// policy, and the transaction registry.
package store

import "github.com/cuemby/sealedkv/internal/policy"

// Config configures a Storage instance. Password is optional: nil means the
// database is plaintext. Policy is an optional override of the default
// password policy, mirroring original_source/storage_config.rs's shape.
type Config struct {
	Path     string
	Password *string
	Policy   *policy.Policy
}

func (c Config) effectivePolicy() policy.Policy {
	if c.Policy != nil {
		return *c.Policy
	}
	return policy.Default()
}
