package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

// resolvePassword finds the database password: the MICROKV_PASSPHRASE
// environment variable (or config key) wins, otherwise the terminal is
// prompted without echo.
func resolvePassword() (string, error) {
	if p := viper.GetString("passphrase"); p != "" {
		return p, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no passphrase configured and stdin is not a terminal (set MICROKV_PASSPHRASE or use --unsafe)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}
