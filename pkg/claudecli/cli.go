// Package claudecli wraps the local `claude` command-line binary: probing it
// for availability, interpreting rate-limit output, and proxying prompts.
//
// This package deliberately does not depend on the bot's internal packages so
// it stays usable from scripts and tests.
package claudecli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Config controls how the CLI binary is invoked.
type Config struct {
	// Binary is the executable name or path. Default "claude".
	Binary string

	// VersionArg is passed to the binary for health probes. Default "--version".
	VersionArg string

	// ProbeTimeout bounds a single health probe. Default 10s.
	ProbeTimeout time.Duration

	// RunArgs are prepended before the prompt when proxying a request,
	// e.g. ["--print"]. Default ["--print"].
	RunArgs []string

	// RunTimeout bounds a single proxied prompt. Default 120s.
	RunTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Binary == "" {
		c.Binary = "claude"
	}
	if c.VersionArg == "" {
		c.VersionArg = "--version"
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if len(c.RunArgs) == 0 {
		c.RunArgs = []string{"--print"}
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 120 * time.Second
	}
	return c
}

// CLI invokes the external binary.
type CLI struct {
	cfg Config
}

func New(cfg Config) *CLI {
	return &CLI{cfg: cfg.withDefaults()}
}

// Probe runs a version check against the binary.
//
// Timeout, binary-not-found and any other spawn failure are all reported
// uniformly as unavailable; the caller classifies the combined output.
func (c *CLI) Probe(ctx context.Context) ProbeResult {
	if ctx == nil {
		ctx = context.Background()
	}
	pctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(pctx, c.cfg.Binary, c.cfg.VersionArg)
	out, err := cmd.CombinedOutput()
	took := time.Since(start)

	res := ProbeResult{
		Output: strings.TrimSpace(string(out)),
		Took:   took,
	}
	if err != nil {
		res.Err = err
		if pctx.Err() == context.DeadlineExceeded {
			res.Err = fmt.Errorf("probe timeout after %s: %w", c.cfg.ProbeTimeout, err)
		}
		return res
	}
	res.Available = true
	return res
}

// Run proxies a prompt to the binary and returns its stdout.
//
// Stderr is folded into the returned error so limit/auth text from the binary
// is visible to the caller.
func (c *CLI) Run(ctx context.Context, prompt string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("empty prompt")
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RunTimeout)
	defer cancel()

	args := append(append([]string(nil), c.cfg.RunArgs...), prompt)
	cmd := exec.CommandContext(rctx, c.cfg.Binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if rctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("cli timeout after %s", c.cfg.RunTimeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return "", fmt.Errorf("cli failed: %s: %w", firstLine(msg), err)
		}
		return "", fmt.Errorf("cli failed: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
