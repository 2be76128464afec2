package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// docxText pulls text runs out of a Word document. A .docx file is a zip
// archive; the document body lives in word/document.xml and visible text
// sits in <w:t> elements.
func docxText(data []byte) (string, error) {
	doc, err := zipEntry(data, "word/document.xml")
	if err != nil {
		return "", err
	}
	return xmlRunText(doc, "t", "p")
}

// pptxText pulls text out of every slide of a PowerPoint deck, in slide
// order. Slides live at ppt/slides/slideN.xml with text in <a:t> elements.
func pptxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: opening pptx archive: %v", ErrExtraction, err)
	}

	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("%w: pptx contains no slides", ErrExtraction)
	}
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i].Name) < slideNumber(slides[j].Name)
	})

	var parts []string
	for _, f := range slides {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: opening %s: %v", ErrExtraction, f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: reading %s: %v", ErrExtraction, f.Name, err)
		}
		text, err := xmlRunText(content, "t", "p")
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func slideNumber(name string) int {
	var n int
	fmt.Sscanf(name, "ppt/slides/slide%d.xml", &n)
	return n
}

// zipEntry returns the decompressed contents of a single named file
// inside a zip archive.
func zipEntry(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: opening archive: %v", ErrExtraction, err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", ErrExtraction, name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrExtraction, name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: archive has no %s", ErrExtraction, name)
}

// xmlRunText streams an OOXML part, concatenating the character data of
// every <textElem> element. Closing <paraElem> elements become newlines so
// paragraph structure survives.
func xmlRunText(doc []byte, textElem, paraElem string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	var sb strings.Builder
	depth := 0 // nesting depth inside textElem
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parsing xml: %v", ErrExtraction, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textElem {
				depth++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textElem:
				depth--
			case paraElem:
				sb.WriteString("\n")
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
