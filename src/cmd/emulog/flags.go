// FILE: src/cmd/emulog/flags.go
package main

import (
	"fmt"
	"strings"
)

// Process-level flags. Everything else on the command line is handed to the
// config loader as a key override, e.g. --facility.synchronous=true
type FlagConfig struct {
	ConfigFile            string
	Quiet                 bool
	ShowVersion           bool
	DisableStatusReporter bool
}

func parseFlags(args []string) (*FlagConfig, []string, error) {
	cfg := &FlagConfig{}
	rest := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")

		switch name {
		case "-c", "--config", "-config":
			if !hasValue {
				if i+1 >= len(args) {
					return nil, nil, fmt.Errorf("%s requires a path", name)
				}
				i++
				value = args[i]
			}
			if value == "" {
				return nil, nil, fmt.Errorf("%s requires a path", name)
			}
			cfg.ConfigFile = value
		case "-q", "--quiet":
			cfg.Quiet = true
		case "-v", "--version", "-version":
			cfg.ShowVersion = true
		case "--disable-status-reporter":
			cfg.DisableStatusReporter = true
		default:
			rest = append(rest, arg)
		}
	}

	return cfg, rest, nil
}
