// Package tts adapts an external speech synthesis command (espeak-ng,
// piper, a site-local wrapper script) to the description service. The
// command receives the text on stdin and must write a playable artifact to
// the path substituted for the {output} placeholder in its arguments.
package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/storm-alert-dispatch/internal/describe"
	"github.com/google/uuid"
)

// Command runs a configured synthesis command per request.
type Command struct {
	argv []string
	dir  string
}

// NewCommand parses the command line and ensures the artifact directory
// exists. An example command line: "espeak-ng -w {output} --stdin".
func NewCommand(commandLine, dir string) (*Command, error) {
	argv := strings.Fields(commandLine)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty synthesis command")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio directory %s: %w", dir, err)
	}
	return &Command{argv: argv, dir: dir}, nil
}

// Synthesize implements describe.Synthesizer.
func (c *Command) Synthesize(ctx context.Context, text string) (describe.AudioRef, error) {
	path := filepath.Join(c.dir, uuid.NewString()+".wav")

	args := make([]string, 0, len(c.argv)-1)
	for _, a := range c.argv[1:] {
		args = append(args, strings.ReplaceAll(a, "{output}", path))
	}

	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(path) //nolint:errcheck // partial artifact, if any
		return describe.AudioRef{}, fmt.Errorf("running %s: %w: %s", c.argv[0], err, firstLine(out))
	}

	if _, err := os.Stat(path); err != nil {
		return describe.AudioRef{}, fmt.Errorf("%s produced no artifact at %s", c.argv[0], path)
	}
	return describe.AudioRef{Path: path}, nil
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
