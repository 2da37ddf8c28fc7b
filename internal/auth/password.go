// Package auth hashes and checks the password that guards the report
// server. Hashes use argon2id in the PHC string format.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/term"
)

// Params are the argon2id cost settings.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams are used by HashPassword.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// ErrInvalidHash is returned for a stored hash that cannot be parsed.
var ErrInvalidHash = errors.New("invalid password hash")

// HashPassword hashes password with DefaultParams.
// The result looks like $argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>.
func HashPassword(password string) (string, error) {
	return HashPasswordWith(password, DefaultParams)
}

// HashPasswordWith hashes password with p.
func HashPasswordWith(password string, p Params) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches encoded. Parameters are
// read from encoded, so hashes made with other costs still verify.
func VerifyPassword(password, encoded string) (bool, error) {
	p, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(key, got) == 1, nil
}

func parseHash(encoded string) (Params, []byte, []byte, error) {
	var p Params

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return p, nil, nil, fmt.Errorf("%w: expected 6 fields, got %d", ErrInvalidHash, len(fields))
	}
	if fields[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: bad version: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: bad parameters: %v", ErrInvalidHash, err)
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(fields[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: bad salt: %v", ErrInvalidHash, err)
	}
	key, err := enc.DecodeString(fields[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: bad key: %v", ErrInvalidHash, err)
	}
	p.KeyLen = uint32(len(key))
	p.SaltLen = len(salt)
	return p, salt, key, nil
}

// ErrEmptyPassword is returned when the user enters an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// ErrPasswordMismatch is returned when the confirmation does not match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Prompter reads passwords without echo.
type Prompter struct {
	Out io.Writer
	// Read returns one line of hidden input. It defaults to reading fd
	// with term.ReadPassword.
	Read func() ([]byte, error)
}

// TerminalPrompter reads from the terminal on fd.
func TerminalPrompter(fd int, out io.Writer) Prompter {
	return Prompter{
		Out:  out,
		Read: func() ([]byte, error) { return term.ReadPassword(fd) },
	}
}

// Prompt prints label and reads one hidden line.
func (p Prompter) Prompt(label string) (string, error) {
	fmt.Fprint(p.Out, label)
	line, err := p.Read()
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(line), nil
}

// NewPassword asks for a password twice and returns it when both match.
func (p Prompter) NewPassword() (string, error) {
	password, err := p.Prompt("Enter password for the report server: ")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", ErrEmptyPassword
	}

	confirm, err := p.Prompt("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}
