// Package loader obtains the raw result document, either from a file, a
// fetched URL, or an HTML report carrying the document inline, and populates
// the result store from it.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/net/html"

	"github.com/clusterview/server/internal/model"
)

// ErrLoadFailure marks a document that could not be obtained or parsed.
var ErrLoadFailure = errors.New("failed to load result document")

// EmbeddedElementID is the id of the script element holding an inline document.
const EmbeddedElementID = "data-json"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Loader reads result documents.
type Loader struct {
	Client *http.Client
}

// New creates a loader with a bounded HTTP client.
func New() *Loader {
	return &Loader{Client: &http.Client{Timeout: 60 * time.Second}}
}

// Load reads the document at source with a default loader.
func Load(ctx context.Context, source string) (*model.Document, error) {
	return New().Load(ctx, source)
}

// Load reads, decompresses, extracts and validates the document at source.
func (l *Loader) Load(ctx context.Context, source string) (*model.Document, error) {
	raw, err := l.read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailure, source, err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return doc, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.fetch(ctx, source)
	}
	return os.ReadFile(source)
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Parse decodes a document from raw bytes: plain JSON, gzip or zstd
// compressed JSON, or an HTML page with an embedded data element.
func Parse(raw []byte) (*model.Document, error) {
	data, err := decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("<")) {
		embedded, err := ExtractEmbedded(bytes.NewReader(trimmed))
		if err != nil {
			return nil, err
		}
		trimmed = embedded
	}

	var doc model.Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrLoadFailure, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}
	return &doc, nil
}

func decompress(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case bytes.HasPrefix(raw, zstdMagic):
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer decoder.Close()
		return decoder.DecodeAll(raw, nil)
	}
	return raw, nil
}

// ExtractEmbedded returns the text of the data script element of an HTML page.
func ExtractEmbedded(r io.Reader) ([]byte, error) {
	z := html.NewTokenizer(r)
	inData := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return nil, fmt.Errorf("%w: no #%s element found", ErrLoadFailure, EmbeddedElementID)
			}
			return nil, fmt.Errorf("%w: %v", ErrLoadFailure, z.Err())
		case html.StartTagToken:
			tok := z.Token()
			if tok.Data == "script" && attr(tok, "id") == EmbeddedElementID {
				inData = true
			}
		case html.TextToken:
			if inData {
				return append([]byte(nil), z.Text()...), nil
			}
		case html.EndTagToken:
			if inData {
				// Empty element.
				return nil, fmt.Errorf("%w: #%s element is empty", ErrLoadFailure, EmbeddedElementID)
			}
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// EmbedDocument writes page with doc inlined as a JSON script element right
// before </body>, producing a self-contained report.
func EmbedDocument(w io.Writer, page []byte, doc *model.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	element := fmt.Sprintf("<script type=\"application/json\" id=%q>%s</script>\n", EmbeddedElementID, payload)

	idx := bytes.LastIndex(page, []byte("</body>"))
	if idx < 0 {
		_, err := io.WriteString(w, string(page)+element)
		return err
	}
	if _, err := w.Write(page[:idx]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, element); err != nil {
		return err
	}
	_, err = w.Write(page[idx:])
	return err
}
