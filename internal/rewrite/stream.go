package rewrite

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ChunkRewriter replaces every occurrence of one origin string with another
// across a sequence of byte chunks. Chunks are fed through a stateful
// decoder that carries any incomplete trailing multi-byte sequence into the
// next call, so a character split at a chunk boundary is never corrupted.
//
// Known limitation: an occurrence of the origin string itself split across
// two chunks is not matched. That is an accepted tradeoff of incremental
// processing.
type ChunkRewriter struct {
	from    []byte
	to      []byte
	dec     transform.Transformer
	pending []byte // undecoded trailing bytes carried to the next chunk
}

// NewChunkRewriter creates a ChunkRewriter substituting from with to.
func NewChunkRewriter(from, to string) *ChunkRewriter {
	return &ChunkRewriter{
		from: []byte(from),
		to:   []byte(to),
		dec:  unicode.UTF8.NewDecoder(),
	}
}

// WriteChunk decodes one chunk, prepending bytes held back from the
// previous call, and returns the chunk with all complete occurrences of the
// origin string replaced.
func (c *ChunkRewriter) WriteChunk(p []byte) ([]byte, error) {
	src := p
	if len(c.pending) > 0 {
		src = append(c.pending, p...)
		c.pending = nil
	}
	decoded, err := c.decode(src, false)
	if err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(decoded, c.from, c.to), nil
}

// Flush drains any held-back bytes, decoding them as a final fragment.
func (c *ChunkRewriter) Flush() ([]byte, error) {
	if len(c.pending) == 0 {
		return nil, nil
	}
	src := c.pending
	c.pending = nil
	decoded, err := c.decode(src, true)
	if err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(decoded, c.from, c.to), nil
}

// decode runs src through the stateful decoder. On ErrShortSrc the
// unconsumed tail is saved for the next chunk instead of being decoded
// independently.
func (c *ChunkRewriter) decode(src []byte, atEOF bool) ([]byte, error) {
	var out []byte
	buf := make([]byte, len(src)+utf8.UTFMax)

	for {
		nDst, nSrc, err := c.dec.Transform(buf, src, atEOF)
		out = append(out, buf[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			return out, nil
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			c.pending = append([]byte(nil), src...)
			return out, nil
		default:
			return nil, err
		}
	}
}
