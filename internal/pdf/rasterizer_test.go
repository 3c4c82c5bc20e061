package pdf

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-field-extractor/internal/pdf/pdftest"
)

func TestRasterizer_Render(t *testing.T) {
	tests := []struct {
		name    string
		runner  *fakeRunner
		page    int
		dpi     int
		wantErr string
	}{
		{name: "ok", runner: &fakeRunner{}, page: 1, dpi: 300},
		{name: "runner_error", runner: &fakeRunner{err: errors.New("exit status 1")}, page: 1, dpi: 300, wantErr: "Couldn't open file"},
		{name: "no_output", runner: &fakeRunner{noOut: true}, page: 1, dpi: 300, wantErr: "produced no image"},
		{name: "bad_page", runner: &fakeRunner{}, page: 0, dpi: 300, wantErr: "out of range"},
		{name: "bad_dpi", runner: &fakeRunner{}, page: 1, dpi: 0, wantErr: "dpi must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRasterizer("", tt.runner, nil)
			img, err := r.Render(context.Background(), "in.pdf", tt.page, tt.dpi)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, string(img), "png:-r 300 -png -f 1 -l 1 -singlefile in.pdf ")
			assert.Equal(t, DefaultPdftoppm, tt.runner.calls[0][0])
		})
	}
}

func TestRasterizer_RealPdftoppm(t *testing.T) {
	if _, err := exec.LookPath(DefaultPdftoppm); err != nil {
		t.Skip("pdftoppm not installed in PATH")
	}
	assert.True(t, RasterizerAvailable(""))

	path := pdftest.Write(t, t.TempDir(), "one.pdf", "HEAT NO: H1")
	img, err := NewRasterizer("", nil, nil).Render(context.Background(), path, 1, 72)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img[:4])
}
