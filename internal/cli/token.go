package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// resolveToken returns the configured API token, prompting interactively
// when unset. A missing token on a non-interactive stdin is a configuration
// error: the run fails before any network call.
func resolveToken(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("NOAA_TOKEN is not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Enter your NOAA API token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", errors.New("an API token is required")
	}
	return token, nil
}
