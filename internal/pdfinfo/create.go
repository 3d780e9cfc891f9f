package pdfinfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	// LinesPerPage is how many text lines FromText puts on one page.
	LinesPerPage = 48

	fontName   = "Helvetica"
	fontSize   = 12
	leading    = 14
	leftMargin = 72
	firstLine  = 720
)

// layout is pdfcpu's JSON page description for api.Create.
type layout struct {
	Paper string          `json:"paper"`
	Pages map[string]page `json:"pages"`
}

type page struct {
	Content *pageContent `json:"content,omitempty"`
}

type pageContent struct {
	Text []textBox `json:"text"`
}

type textBox struct {
	Value string     `json:"value"`
	Pos   [2]float64 `json:"pos"`
	Font  font       `json:"font"`
}

type font struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// FromText lays text out as Helvetica 12pt on US Letter pages and returns the PDF
// bytes. Characters outside printable ASCII are written as '?'. An empty text yields
// one blank page.
func FromText(text string) ([]byte, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	doc := layout{Paper: "Letter", Pages: map[string]page{}}
	for n := 1; n == 1 || len(lines) > 0; n++ {
		chunk := lines[:min(len(lines), LinesPerPage)]
		lines = lines[len(chunk):]
		doc.Pages[strconv.Itoa(n)] = textPage(chunk)
	}

	desc, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("pdfinfo: encoding layout: %w", err)
	}
	var out bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(desc), &out, newConf()); err != nil {
		return nil, fmt.Errorf("pdfinfo: creating pdf: %w", err)
	}
	return out.Bytes(), nil
}

func textPage(lines []string) page {
	var boxes []textBox
	for i, line := range lines {
		line = printable(line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		boxes = append(boxes, textBox{
			Value: line,
			Pos:   [2]float64{leftMargin, float64(firstLine - i*leading)},
			Font:  font{Name: fontName, Size: fontSize},
		})
	}
	if len(boxes) == 0 {
		return page{}
	}
	return page{Content: &pageContent{Text: boxes}}
}

func printable(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r < 0x20 || r > 0x7e:
			return '?'
		}
		return r
	}, s)
}
