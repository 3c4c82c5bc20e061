package extract

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// fakeDoc is an in-memory Document. Rendering returns the page's OCR text
// as the "image" so fakeOCR can echo it back.
type fakeDoc struct {
	path      string
	texts     []string
	textErrs  map[int]error
	panics    map[int]bool
	ocrTexts  map[int]string
	renderErr map[int]error

	mu      sync.Mutex
	renders []int
}

func newFakeDoc(texts ...string) *fakeDoc {
	return &fakeDoc{
		path:      "fake.pdf",
		texts:     texts,
		textErrs:  map[int]error{},
		panics:    map[int]bool{},
		ocrTexts:  map[int]string{},
		renderErr: map[int]error{},
	}
}

func (d *fakeDoc) Path() string   { return d.path }
func (d *fakeDoc) PageCount() int { return len(d.texts) }

func (d *fakeDoc) PageText(index int) (string, error) {
	if d.panics[index] {
		panic("broken content stream")
	}
	if err := d.textErrs[index]; err != nil {
		return "", err
	}
	return d.texts[index], nil
}

func (d *fakeDoc) RenderPage(_ context.Context, index, _ int) ([]byte, error) {
	d.mu.Lock()
	d.renders = append(d.renders, index)
	d.mu.Unlock()
	if err := d.renderErr[index]; err != nil {
		return nil, err
	}
	return []byte(d.ocrTexts[index]), nil
}

func (d *fakeDoc) renderCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.renders)
}

type fakeOCR struct {
	calls atomic.Int32
	err   error
	dpi   atomic.Int32
}

func (f *fakeOCR) Recognize(_ context.Context, image []byte, dpi int) (string, error) {
	f.calls.Add(1)
	f.dpi.Store(int32(dpi))
	if f.err != nil {
		return "", f.err
	}
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	return string(image), nil
}
