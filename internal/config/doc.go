// Package config manages the airctrl device registry.
//
// The registry is a small YAML file in the user's configuration
// directory that remembers purifiers by name so CLI invocations don't
// need --host every time:
//
//	version: 1
//	default: bedroom
//	devices:
//	  bedroom:
//	    host: 192.168.1.50
//	    port: 5683
//	  office:
//	    host: 192.168.1.61
//
// Writes are atomic (temp file + rename) so a crash mid-save cannot
// corrupt the registry.
package config
