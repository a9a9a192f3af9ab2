package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slideNameRE = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractDocx extracts paragraph text from a DOCX archive. Legacy binary
// .doc files are not zip archives and fail the open, which surfaces as a
// logged extraction failure.
func extractDocx(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	doc, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return "", err
	}

	paragraphs, err := textRuns(doc, "p", "t")
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

// extractSlides extracts text from a PPTX archive, one labeled section per
// slide in deck order:
//
//	Slide 1:
//	<shape text lines>
//
// joined with blank lines between slides.
func extractSlides(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNameRE.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	for i, s := range slides {
		raw, err := readZipFile(zr, s.name)
		if err != nil {
			return "", err
		}
		// Every a:p paragraph inside a shape becomes one line.
		lines, err := textRuns(raw, "p", "t")
		if err != nil {
			return "", fmt.Errorf("parse slide %d: %w", s.num, err)
		}
		if len(lines) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("Slide %d:\n%s", i+1, strings.Join(lines, "\n")))
	}
	return strings.Join(parts, "\n\n"), nil
}

// readZipFile reads one named entry from a zip archive.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer func() { _ = rc.Close() }()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("archive has no %s", name)
}

// textRuns walks an OOXML part and collects the character data of every
// <runElem> element, grouped into one string per <groupElem> element.
// Namespace prefixes are ignored; only local names matter.
func textRuns(raw []byte, groupElem, runElem string) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		groups  []string
		current strings.Builder
		inGroup bool
		inRun   bool
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			groups = append(groups, s)
		}
		current.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case groupElem:
				inGroup = true
			case runElem:
				inRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case groupElem:
				if inGroup {
					flush()
					inGroup = false
				}
			case runElem:
				inRun = false
			}
		case xml.CharData:
			if inGroup && inRun {
				current.Write(t)
			}
		}
	}
	// Text runs outside any group element (unusual but legal).
	flush()
	return groups, nil
}
