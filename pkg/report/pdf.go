package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/spf13/afero"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// DefaultPDFName is the evidence bundle written at the end of a run.
const DefaultPDFName = "evidence.pdf"

// PDFBundle collects every screenshot of a run into one PDF, one image
// per page, in result order.
type PDFBundle struct {
	fs   afero.Fs
	path string
	imgs []string
}

// NewPDFBundle creates a bundle written to path.
func NewPDFBundle(fs afero.Fs, path string) *PDFBundle {
	return &PDFBundle{fs: fs, path: path}
}

// Append implements Sink.
func (p *PDFBundle) Append(result types.TestResult) error {
	for _, a := range result.Artifacts {
		p.imgs = append(p.imgs, a.Path)
	}
	return nil
}

// Finish implements Finisher. Nothing is written for a run without
// screenshots.
func (p *PDFBundle) Finish(*types.RunReport) error {
	if len(p.imgs) == 0 {
		return nil
	}

	readers := make([]io.Reader, 0, len(p.imgs))
	for _, path := range p.imgs {
		data, err := afero.ReadFile(p.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read screenshot %s: %w", path, err)
		}
		readers = append(readers, bytes.NewReader(data))
	}

	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, readers, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("failed to build evidence pdf: %w", err)
	}
	if err := afero.WriteFile(p.fs, p.path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write evidence pdf: %w", err)
	}
	return nil
}
