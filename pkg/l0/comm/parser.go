package comm

// DefaultMaxLineLen bounds a line kept by LineParser.
const DefaultMaxLineLen = 256

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	// Line is valid when HasLine is set. It excludes the terminator.
	Line    string
	HasLine bool
	// Truncated is set on a line that exceeded the maximum length.
	Truncated bool
	// Control is Interrupt or Restart when such a byte was received.
	Control byte
}

// LineParser splits a byte stream into lines. "\r" is dropped and "\n"
// terminates a line. Control bytes discard the partial line.
type LineParser struct {
	MaxLen int

	buf       []byte
	truncated bool
}

// Reset discards the partial line.
func (p *LineParser) Reset() {
	p.buf = p.buf[:0]
	p.truncated = false
}

// Parse consumes one byte.
func (p *LineParser) Parse(b byte) ParseResult {
	switch b {
	case Interrupt, Restart:
		p.Reset()
		return ParseResult{Control: b}
	case '\r':
		return ParseResult{}
	case '\n':
		r := ParseResult{Line: string(p.buf), HasLine: true, Truncated: p.truncated}
		p.Reset()
		return r
	}
	max := p.MaxLen
	if max <= 0 {
		max = DefaultMaxLineLen
	}
	if len(p.buf) >= max {
		p.truncated = true
		return ParseResult{}
	}
	p.buf = append(p.buf, b)
	return ParseResult{}
}

// ParseAll feeds data and calls fn for every result carrying a line or
// a control byte.
func (p *LineParser) ParseAll(data []byte, fn func(ParseResult)) {
	for _, b := range data {
		if r := p.Parse(b); r.HasLine || r.Control != 0 {
			fn(r)
		}
	}
}
