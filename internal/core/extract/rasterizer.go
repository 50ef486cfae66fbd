package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

var _ Rasterizer = (*PopplerRasterizer)(nil)

// PopplerRasterizer shells out to pdftoppm, part of the same poppler toolchain
// docconv drives for its pdf handling.
type PopplerRasterizer struct{}

// RenderPage writes the document to a scratch file and renders the 1-based
// pageNum to a single PNG at the requested DPI.
func (PopplerRasterizer) RenderPage(ctx context.Context, raw []byte, pageNum int, dpi int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "lectern-raster-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "page.pdf")
	if err := os.WriteFile(src, raw, 0o600); err != nil {
		return nil, err
	}

	outRoot := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(pageNum),
		"-l", strconv.Itoa(pageNum),
		"-singlefile",
		src, outRoot,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %v: %s", err, stderr.String())
	}

	png, err := os.ReadFile(outRoot + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no output: %w", err)
	}
	return png, nil
}
