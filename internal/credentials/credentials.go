// Package credentials stores and resolves the API bearer token.
package credentials

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// Service is the keyring service name tokens are stored under.
const Service = "blueprinter"

// ErrNoToken indicates no token was found in any source.
var ErrNoToken = errors.New("no API token configured")

// Source names where a resolved token came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceConfig  Source = "config"
	SourceKeyring Source = "keyring"
)

// Store keeps one token per organization in the OS keyring.
type Store struct {
	service string
}

// NewStore creates a Store using the default service name.
func NewStore() *Store {
	return &Store{service: Service}
}

// Get returns the token for org. It returns ErrNoToken when none is stored.
func (s *Store) Get(org string) (string, error) {
	token, err := keyring.Get(s.service, org)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	return token, nil
}

// Set stores token for org.
func (s *Store) Set(org, token string) error {
	if err := keyring.Set(s.service, org, token); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

// Delete removes the token for org. Deleting a missing token is not an error.
func (s *Store) Delete(org string) error {
	err := keyring.Delete(s.service, org)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete from keyring: %w", err)
	}
	return nil
}

// Candidate is one possible token source, in precedence order.
type Candidate struct {
	Source Source
	Token  string
}

// Resolve returns the first non-empty candidate, falling back to the keyring
// entry for org. A keyring that cannot be read counts as empty.
func (s *Store) Resolve(org string, candidates ...Candidate) (string, Source, error) {
	for _, c := range candidates {
		if t := strings.TrimSpace(c.Token); t != "" {
			return t, c.Source, nil
		}
	}

	token, err := s.Get(org)
	if err != nil || token == "" {
		return "", "", ErrNoToken
	}
	return token, SourceKeyring, nil
}

// Prompt reads a token from in. When in is a terminal the input is not
// echoed. The prompt is written to out.
func Prompt(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "API token: ")

	var raw []byte
	var err error
	if term.IsTerminal(int(in.Fd())) {
		raw, err = term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
	} else {
		raw, err = readLine(in)
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// readLine reads up to the first newline without buffering past it.
func readLine(r io.Reader) ([]byte, error) {
	var line []byte
	b := make([]byte, 1)
	for {
		n, err := r.Read(b)
		if n > 0 {
			if b[0] == '\n' {
				return line, nil
			}
			line = append(line, b[0])
		}
		if errors.Is(err, io.EOF) {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Mask shortens a token for display, keeping only the last four characters.
func Mask(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}
