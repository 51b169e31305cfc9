// FILE: src/cmd/emulog/commands.go
package main

import (
	"fmt"
	"io"
	"os"

	"emulog/src/internal/auth"
	"emulog/src/internal/version"
)

// Defines the interface for subcommands
type CommandHandler interface {
	Execute(args []string) error
	Description() string
}

// Routes subcommands before the logging service starts
type CommandRouter struct {
	commands map[string]CommandHandler
	order    []string
	stdout   io.Writer
	stderr   io.Writer
}

func NewCommandRouter() *CommandRouter {
	r := &CommandRouter{
		commands: make(map[string]CommandHandler),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	r.register("hash", &hashCommand{})
	r.register("version", &versionCommand{out: r.stdout})
	r.register("help", &helpCommand{out: r.stdout})
	return r
}

func (r *CommandRouter) register(name string, h CommandHandler) {
	r.commands[name] = h
	r.order = append(r.order, name)
}

// Route runs the subcommand named by args[0], if any. handled reports
// whether a subcommand consumed the invocation.
func (r *CommandRouter) Route(args []string) (handled bool, err error) {
	if len(args) == 0 {
		return false, nil
	}

	if args[0] == "-h" || args[0] == "--help" {
		return true, r.commands["help"].Execute(nil)
	}

	handler, exists := r.commands[args[0]]
	if !exists {
		if args[0] != "" && args[0][0] != '-' {
			fmt.Fprintf(r.stderr, "Unknown command: %s\n\nAvailable commands:\n", args[0])
			r.ShowCommands()
			return true, fmt.Errorf("unknown command: %s", args[0])
		}
		return false, nil
	}

	return true, handler.Execute(args[1:])
}

// Displays available subcommands
func (r *CommandRouter) ShowCommands() {
	for _, name := range r.order {
		fmt.Fprintf(r.stderr, "  %-10s %s\n", name, r.commands[name].Description())
	}
}

type hashCommand struct{}

func (c *hashCommand) Execute(args []string) error {
	return auth.NewGeneratorCommand().Execute(args)
}

func (c *hashCommand) Description() string {
	return "Generate HTTP backend credentials"
}

type versionCommand struct {
	out io.Writer
}

func (c *versionCommand) Execute(args []string) error {
	fmt.Fprintln(c.out, version.String())
	return nil
}

func (c *versionCommand) Description() string {
	return "Show version information"
}

type helpCommand struct {
	out io.Writer
}

func (c *helpCommand) Execute(args []string) error {
	fmt.Fprint(c.out, helpText)
	return nil
}

func (c *helpCommand) Description() string {
	return "Display help information"
}
