// Package pdfinfo inspects PDF bytes before they are uploaded or previewed.
package pdfinfo

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/sakif/studydeck/internal/apperror"
)

func init() {
	// pdfcpu would otherwise create a config dir under the user's home on first use.
	api.DisableConfigDir()
}

// Info is what the client knows about a PDF without rendering it.
type Info struct {
	Pages int
	// First is the size of page one in points.
	First types.Dim
}

// newConf returns a fresh configuration; pdfcpu mutates it per command.
func newConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// LooksLikePDF reports whether data starts with a PDF header.
func LooksLikePDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// Validate returns a validation error when data is not a readable PDF.
func Validate(data []byte) error {
	if !LooksLikePDF(data) {
		return apperror.ValidationFailed("file", "file is not a PDF")
	}
	if err := api.Validate(bytes.NewReader(data), newConf()); err != nil {
		return apperror.ValidationFailed("file", fmt.Sprintf("file is not a valid PDF: %v", err))
	}
	return nil
}

// Inspect validates data and reads its page count and first page size.
func Inspect(data []byte) (Info, error) {
	if err := Validate(data); err != nil {
		return Info{}, err
	}

	n, err := api.PageCount(bytes.NewReader(data), newConf())
	if err != nil {
		return Info{}, fmt.Errorf("pdfinfo: counting pages: %w", err)
	}
	info := Info{Pages: n}

	dims, err := api.PageDims(bytes.NewReader(data), newConf())
	if err != nil {
		return Info{}, fmt.Errorf("pdfinfo: reading page dimensions: %w", err)
	}
	if len(dims) > 0 {
		info.First = dims[0]
	}
	return info, nil
}
