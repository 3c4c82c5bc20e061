package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultPdftoppm is the poppler binary used to render pages.
const DefaultPdftoppm = "pdftoppm"

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.logger.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		r.logger.Debug("exec ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"stderr_bytes", errb.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// Rasterizer renders single PDF pages to PNG with pdftoppm.
type Rasterizer struct {
	binary string
	runner Runner
}

// NewRasterizer returns a Rasterizer. An empty binary means DefaultPdftoppm;
// a nil runner executes the real command.
func NewRasterizer(binary string, runner Runner, logger *slog.Logger) *Rasterizer {
	if binary == "" {
		binary = DefaultPdftoppm
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = execRunner{logger: logger}
	}
	return &Rasterizer{binary: binary, runner: runner}
}

// Render returns the PNG for the 1-based page of the PDF at path.
func (r *Rasterizer) Render(ctx context.Context, path string, page, dpi int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	if dpi <= 0 {
		return nil, fmt.Errorf("dpi must be positive, got %d", dpi)
	}

	tmpDir, err := os.MkdirTemp("", "pfe-pp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(page)
	// pdftoppm -r 300 -png -f N -l N -singlefile <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.binary,
		"-r", strconv.Itoa(dpi), "-png", "-f", n, "-l", n, "-singlefile", path, prefix)
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return nil, fmt.Errorf("%s page %d: %w: %s", r.binary, page, err, msg)
		}
		return nil, fmt.Errorf("%s page %d: %w", r.binary, page, err)
	}

	img, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("%s produced no image for page %d: %w", r.binary, page, err)
	}
	return img, nil
}

// RasterizerAvailable reports whether binary can be found on PATH.
func RasterizerAvailable(binary string) bool {
	if binary == "" {
		binary = DefaultPdftoppm
	}
	_, err := exec.LookPath(binary)
	return err == nil
}
