// FILE: src/internal/auth/generator.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"
)

// GeneratorCommand implements "emulog hash": credentials for the HTTP backend
type GeneratorCommand struct {
	output io.Writer
	errOut io.Writer
	prompt func(prompt string) (string, error)
}

func NewGeneratorCommand() *GeneratorCommand {
	g := &GeneratorCommand{
		output: os.Stdout,
		errOut: os.Stderr,
	}
	g.prompt = g.promptPassword
	return g
}

func (g *GeneratorCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("hash", flag.ContinueOnError)
	cmd.SetOutput(g.errOut)

	var (
		username = cmd.String("u", "", "Username for basic auth")
		password = cmd.String("p", "", "Password to hash (will prompt if not provided)")
		genToken = cmd.Bool("t", false, "Generate random bearer token")
		tokenLen = cmd.Int("l", 32, "Token length in bytes")
	)

	cmd.Usage = func() {
		fmt.Fprintln(g.errOut, "Generate HTTP backend credentials for emulog")
		fmt.Fprintln(g.errOut, "\nUsage: emulog hash [options]")
		fmt.Fprintln(g.errOut, "\nExamples:")
		fmt.Fprintln(g.errOut, "  emulog hash -u admin")
		fmt.Fprintln(g.errOut, "  emulog hash -t -l 64")
		fmt.Fprintln(g.errOut, "\nOptions:")
		cmd.PrintDefaults()
	}

	if err := cmd.Parse(args); err != nil {
		return err
	}

	if *genToken {
		return g.generateToken(*tokenLen)
	}

	if *username == "" {
		cmd.Usage()
		return fmt.Errorf("username required for password hash generation")
	}

	return g.generatePasswordHash(*username, *password)
}

func (g *GeneratorCommand) generatePasswordHash(username, password string) error {
	if password == "" {
		pass1, err := g.prompt("Enter password: ")
		if err != nil {
			return err
		}
		pass2, err := g.prompt("Confirm password: ")
		if err != nil {
			return err
		}
		if pass1 != pass2 {
			return fmt.Errorf("passwords don't match")
		}
		password = pass1
	}
	if password == "" {
		return fmt.Errorf("empty password")
	}

	phcHash, err := HashPassword(password)
	if err != nil {
		return err
	}

	fmt.Fprintln(g.output, "\n# TOML Configuration (add to the http backend):")
	fmt.Fprintln(g.output, "[[backends.http.auth.users]]")
	fmt.Fprintf(g.output, "username = %q\n", username)
	fmt.Fprintf(g.output, "password_hash = %q\n\n", phcHash)

	fmt.Fprintln(g.output, "# Users File Format:")
	fmt.Fprintf(g.output, "%s:%s\n", username, phcHash)

	return nil
}

func (g *GeneratorCommand) generateToken(length int) error {
	if length < 16 {
		fmt.Fprintln(g.errOut, "Warning: tokens < 16 bytes are cryptographically weak")
	}
	if length > 512 {
		return fmt.Errorf("token length exceeds maximum (512 bytes)")
	}

	token := make([]byte, length)
	if _, err := rand.Read(token); err != nil {
		return fmt.Errorf("failed to generate random bytes: %w", err)
	}

	b64 := base64.RawURLEncoding.EncodeToString(token)

	fmt.Fprintln(g.output, "\n# TOML Configuration (add to the http backend auth block):")
	fmt.Fprintf(g.output, "tokens = [%q]\n", b64)

	return nil
}

func (g *GeneratorCommand) promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("stdin is not a terminal, use -p")
	}
	fmt.Fprint(g.errOut, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(g.errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
