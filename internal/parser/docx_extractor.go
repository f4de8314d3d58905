package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBodyPath = "word/document.xml"

// ErrDOCXBodyMissing 压缩包内没有 word/document.xml
var ErrDOCXBodyMissing = errors.New("docx: word/document.xml not found")

// DOCXTextExtractor 读取 word/document.xml 中的文字节点，按段落换行
type DOCXTextExtractor struct{}

// ExtractTextFromBytes 提取 DOCX 文本
func (DOCXTextExtractor) ExtractTextFromBytes(_ context.Context, data []byte, uri string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx %s: %w", uri, err)
	}
	for _, f := range zr.File {
		if f.Name != docxBodyPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("docx %s: %w", uri, err)
		}
		defer rc.Close()
		return documentXMLText(rc)
	}
	return "", ErrDOCXBodyMissing
}

// documentXMLText 只关心 w:t（文字）、w:tab、w:br 和 w:p（段落结束）
func documentXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
