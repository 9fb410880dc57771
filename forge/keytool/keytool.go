// Driver for the external keytool binary.
//
// All cryptographic work is delegated to keytool; this package only
// builds well-formed invocations and classifies their outcome. The
// exit code is the sole success signal for generation and export,
// output is never inspected for those. The process runner is an
// interface so tests can substitute canned exit codes and output for
// the real binary.
package keytool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/keyforge/keyforge/logging"
)

var (
	// ErrToolMissing indicates the keytool binary is not installed.
	ErrToolMissing = errors.New("keytool: tool not found")
	// ErrToolFailed indicates keytool ran but exited non-zero.
	ErrToolFailed = errors.New("keytool: command failed")
	// ErrToolTimedOut indicates keytool exceeded the configured timeout.
	ErrToolTimedOut = errors.New("keytool: command timed out")
)

// Runner executes a single external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands via os/exec. A Timeout of zero means the
// command may block until the context is done.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debugf("running %s %s", name, strings.Join(args, " "))
	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s after %v", ErrToolTimedOut, name, r.Timeout)
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, name)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) == 0 {
			msg = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("%w: %s exited with %d: %s",
			ErrToolFailed, name, exitErr.ExitCode(), msg)
	}

	return nil, fmt.Errorf("keytool: can't run %s: %v", name, err)
}

// Options hold the fixed key-material parameters for all invocations.
type Options struct {
	Path         string //keytool binary, defaults to "keytool"
	ValidityDays int
	KeySize      int
	Algorithm    string
}

func (o *Options) applyDefaults() {
	if len(o.Path) == 0 {
		o.Path = "keytool"
	}
	if o.ValidityDays <= 0 {
		o.ValidityDays = 36500
	}
	if o.KeySize <= 0 {
		o.KeySize = 2048
	}
	if len(o.Algorithm) == 0 {
		o.Algorithm = "RSA"
	}
}

// Tool binds a runner to a set of options.
type Tool struct {
	runner Runner
	opts   Options
}

// New returns a tool over the given runner. Zero option fields are
// filled with the defaults the service documents (RSA 2048, 100 years).
func New(runner Runner, opts Options) *Tool {
	opts.applyDefaults()
	return &Tool{runner: runner, opts: opts}
}

// GenerateKeyPair creates a fresh keystore at keystorePath holding one
// key pair under alias, with dn as the certificate subject. The store
// and key passwords are identical. On failure a partially written
// keystore is removed so later existence checks can't mistake it for
// a complete one.
func (t *Tool) GenerateKeyPair(ctx context.Context, keystorePath, alias, password, dn string) error {
	_, err := t.runner.Run(ctx, t.opts.Path,
		"-genkeypair",
		"-alias", alias,
		"-keyalg", t.opts.Algorithm,
		"-keysize", strconv.Itoa(t.opts.KeySize),
		"-validity", strconv.Itoa(t.opts.ValidityDays),
		"-keystore", keystorePath,
		"-storepass", password,
		"-keypass", password,
		"-dname", dn,
	)
	if err != nil {
		if rmErr := os.Remove(keystorePath); rmErr == nil {
			logging.Warningf("removed partially written keystore '%s'", keystorePath)
		}
		return fmt.Errorf("keytool: generating key pair for alias '%s': %w", alias, err)
	}

	logging.Infof("generated keystore '%s' (alias=%s)", keystorePath, alias)
	return nil
}

// ExportCertificate writes the PEM certificate for alias directly from
// the keystore to outPath.
func (t *Tool) ExportCertificate(ctx context.Context, keystorePath, alias, password, outPath string) error {
	_, err := t.runner.Run(ctx, t.opts.Path,
		"-export",
		"-rfc",
		"-keystore", keystorePath,
		"-storepass", password,
		"-alias", alias,
		"-file", outPath,
	)
	if err != nil {
		return fmt.Errorf("keytool: exporting certificate for alias '%s': %w", alias, err)
	}

	logging.Infof("exported certificate '%s' (alias=%s)", outPath, alias)
	return nil
}

// ExportCertificateViaPKCS12 converts the keystore into a temporary
// PKCS12 store first and exports the certificate from that. Some store
// formats only export cleanly through the portable PKCS12 container.
// The intermediate file is removed on every exit path.
func (t *Tool) ExportCertificateViaPKCS12(ctx context.Context, keystorePath, alias, password, outPath string) error {
	tmpDir, err := os.MkdirTemp("", "keyforge_p12_")
	if err != nil {
		return fmt.Errorf("keytool: can't create temp dir for conversion: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	p12Path := filepath.Join(tmpDir, "convert.p12")

	_, err = t.runner.Run(ctx, t.opts.Path,
		"-importkeystore",
		"-srckeystore", keystorePath,
		"-srcstorepass", password,
		"-srcalias", alias,
		"-destkeystore", p12Path,
		"-deststoretype", "PKCS12",
		"-deststorepass", password,
		"-destalias", alias,
		"-noprompt",
	)
	if err != nil {
		return fmt.Errorf("keytool: converting keystore to pkcs12: %w", err)
	}

	_, err = t.runner.Run(ctx, t.opts.Path,
		"-export",
		"-rfc",
		"-keystore", p12Path,
		"-storetype", "PKCS12",
		"-storepass", password,
		"-alias", alias,
		"-file", outPath,
	)
	if err != nil {
		return fmt.Errorf("keytool: exporting certificate from pkcs12: %w", err)
	}

	logging.Infof("exported certificate '%s' via pkcs12 (alias=%s)", outPath, alias)
	return nil
}
