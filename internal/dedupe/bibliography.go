package dedupe

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultCandidates are the bibliography file names tried, in order.
var DefaultCandidates = []string{"cv_draft.txt", "CV.txt", "vita.txt", "faculty_vita.txt"}

// LoadBibliography reads the first candidate that exists and returns its
// text and path. PDF files are converted to plain text. When no candidate
// exists, or the one found cannot be read, it returns empty text so that
// no title is ever flagged as a duplicate.
func LoadBibliography(candidates []string, logger *slog.Logger) (string, string) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		text, err := readDocument(path)
		if err != nil {
			logger.Warn("reading bibliography document", "path", path, "error", err)
			return "", ""
		}
		logger.Info("loaded bibliography document", "path", path, "bytes", len(text))
		return text, path
	}

	logger.Info("no bibliography document found; every publication will be kept", "candidates", candidates)
	return "", ""
}

func readDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDFText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readPDFText extracts the plain text of every page.
func readPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
