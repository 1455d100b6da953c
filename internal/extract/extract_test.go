package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Master Services Agreement</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">1. Term: </w:t></w:r><w:r><w:t>12 months</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>2. Termination</w:t><w:tab/><w:t>30 days notice</w:t></w:r></w:p>
</w:body>
</w:document>`

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestReadFile_DocxParagraphsOnePerLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contract.DOCX")
	if err := os.WriteFile(path, buildDocx(t, docxBody), 0o600); err != nil {
		t.Fatalf("write docx: %v", err)
	}

	text, err := ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("read docx: %v", err)
	}
	want := "Master Services Agreement\n1. Term: 12 months\n\n2. Termination\t30 days notice"
	if text != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", text, want)
	}
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	for _, name := range []string{"notes.txt", "contract.doc", "noext"} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), name))
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
			}
		})
	}
}

func TestReadFile_MissingFile(t *testing.T) {
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("missing file should not be classified as unsupported: %v", err)
	}
}

func TestReadBytes_DocxWithoutDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("notes.txt")
	_, _ = w.Write([]byte("hello"))
	_ = zw.Close()

	_, err := ReadBytes(context.Background(), buf.Bytes(), ".docx")
	if err == nil || !strings.Contains(err.Error(), "document.xml") {
		t.Fatalf("expected document.xml error, got %v", err)
	}
}

func TestReadFile_PDFPagesInOrder(t *testing.T) {
	got, err := ReadFile(context.Background(), filepath.Join("testdata", "three_pages.pdf"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := strings.Join([]string{
		"Master Services Agreement",
		"1. Term: 12 months",
		"2. Termination: 30 days notice",
		"3. Governing law: New York",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected text:\n%q\nwant:\n%q", got, want)
	}
}

func TestReadBytes_PDFMatchesReadFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "three_pages.pdf"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	fromBytes, err := ReadBytes(context.Background(), data, ".PDF")
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	lines := strings.Split(fromBytes, "\n")
	if len(lines) != 4 || lines[0] != "Master Services Agreement" || lines[3] != "3. Governing law: New York" {
		t.Fatalf("unexpected page order %q", lines)
	}
}

func TestReadBytes_InvalidPDF(t *testing.T) {
	if _, err := ReadBytes(context.Background(), []byte("not a pdf"), ".pdf"); err == nil {
		t.Fatal("expected error for invalid pdf")
	}
	if _, err := ReadBytes(context.Background(), nil, ".pdf"); err == nil {
		t.Fatal("expected error for empty pdf")
	}
}

func TestReadFile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadFile(ctx, "contract.pdf"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
