package handlers

import "github.com/danielgtaylor/huma/v2"

// NewAPIConfig returns the huma configuration used by the server. Bodies
// carry no $schema link so responses match the public JSON contract exactly.
func NewAPIConfig(title, version string) huma.Config {
	config := huma.DefaultConfig(title, version)
	config.CreateHooks = nil

	return config
}
