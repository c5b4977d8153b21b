package collection

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Tag names used by the tagged-collection format. Documents live in
// <P ID=n>...</P> blocks, queries in <Q ID=n>...</Q> blocks.
const (
	TagDocument = "p"
	TagQuery    = "q"
)

// Document is one tagged block from a collection or query file.
type Document struct {
	ID   int
	Text string
}

// Reader streams Documents out of a tagged file. It tokenises the input with
// an HTML tokenizer, so documents may span lines and attribute quoting is
// irrelevant.
type Reader struct {
	z   *html.Tokenizer
	tag string
}

// NewReader returns a Reader that yields blocks with the given tag name
// (TagDocument or TagQuery).
func NewReader(r io.Reader, tag string) *Reader {
	return &Reader{
		z:   html.NewTokenizer(r),
		tag: tag,
	}
}

// Next returns the next Document. It returns io.EOF once the input is
// exhausted and an error for structurally broken input: an unexpected tag,
// a block without a numeric ID attribute, or an unterminated block.
func (r *Reader) Next() (Document, error) {
	for {
		switch r.z.Next() {
		case html.ErrorToken:
			if err := r.z.Err(); err != io.EOF {
				return Document{}, fmt.Errorf("tokenizing collection: %w", err)
			}
			return Document{}, io.EOF
		case html.TextToken, html.CommentToken, html.DoctypeToken:
			// Whitespace and commentary between blocks.
			continue
		case html.StartTagToken:
			tok := r.z.Token()
			if tok.Data != r.tag {
				return Document{}, fmt.Errorf("unexpected <%s> tag, want <%s>", tok.Data, r.tag)
			}
			id, err := blockID(tok)
			if err != nil {
				return Document{}, err
			}
			text, err := r.readText(id)
			if err != nil {
				return Document{}, err
			}
			return Document{ID: id, Text: text}, nil
		default:
			tok := r.z.Token()
			return Document{}, fmt.Errorf("unexpected <%s> tag, want <%s>", tok.Data, r.tag)
		}
	}
}

// readText accumulates text tokens until the matching end tag.
func (r *Reader) readText(id int) (string, error) {
	var sb strings.Builder
	for {
		switch r.z.Next() {
		case html.ErrorToken:
			if err := r.z.Err(); err != io.EOF {
				return "", fmt.Errorf("tokenizing block %d: %w", id, err)
			}
			return "", fmt.Errorf("unterminated <%s> block %d", r.tag, id)
		case html.TextToken:
			sb.Write(r.z.Text())
		case html.CommentToken:
			continue
		case html.EndTagToken:
			tok := r.z.Token()
			if tok.Data != r.tag {
				return "", fmt.Errorf("unexpected </%s> inside block %d", tok.Data, id)
			}
			return strings.TrimSpace(sb.String()), nil
		default:
			tok := r.z.Token()
			return "", fmt.Errorf("unexpected <%s> inside block %d", tok.Data, id)
		}
	}
}

// ReadAll drains a tagged file into memory. Intended for query files, which
// are small; collections should be streamed with Next.
func ReadAll(rd io.Reader, tag string) ([]Document, error) {
	r := NewReader(rd, tag)
	var docs []Document
	for {
		doc, err := r.Next()
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// blockID extracts the numeric ID attribute from a start tag.
func blockID(tok html.Token) (int, error) {
	for _, attr := range tok.Attr {
		if attr.Key == "id" {
			id, err := strconv.Atoi(attr.Val)
			if err != nil {
				return 0, fmt.Errorf("block <%s> has non-numeric id %q", tok.Data, attr.Val)
			}
			return id, nil
		}
	}
	return 0, fmt.Errorf("block <%s> is missing an id attribute", tok.Data)
}
