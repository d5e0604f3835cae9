package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"casesync/internal/remote"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func signIn(ctx context.Context, api *remote.HTTPClient) error {
	reader := bufio.NewReader(os.Stdin)

	email, err := promptLine(reader, "Email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := promptPassword(os.Stdout)
	if err != nil {
		return err
	}

	return api.SignIn(ctx, email, string(password))
}

// promptLine prints a prompt to w and reads a single trimmed line. If EOF
// occurs after some input was read, the partial line is returned.
func promptLine(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
