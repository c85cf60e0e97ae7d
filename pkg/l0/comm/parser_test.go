package comm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type parserTestSequence struct {
	in     []byte
	expect []ParseResult
}

type parserTestSequenceBuilder struct {
	seq []parserTestSequence
}

func parserTestSequences() *parserTestSequenceBuilder {
	return &parserTestSequenceBuilder{}
}

func (b *parserTestSequenceBuilder) on(in string) *parserTestSequenceBuilder {
	b.seq = append(b.seq, parserTestSequence{in: []byte(in)})
	return b
}

func (b *parserTestSequenceBuilder) line(line string) *parserTestSequenceBuilder {
	s := &b.seq[len(b.seq)-1]
	s.expect = append(s.expect, ParseResult{Line: line, HasLine: true})
	return b
}

func (b *parserTestSequenceBuilder) truncated(line string) *parserTestSequenceBuilder {
	s := &b.seq[len(b.seq)-1]
	s.expect = append(s.expect, ParseResult{Line: line, HasLine: true, Truncated: true})
	return b
}

func (b *parserTestSequenceBuilder) control(c byte) *parserTestSequenceBuilder {
	s := &b.seq[len(b.seq)-1]
	s.expect = append(s.expect, ParseResult{Control: c})
	return b
}

func (b *parserTestSequenceBuilder) build() []parserTestSequence {
	return b.seq
}

func TestLineParser(t *testing.T) {
	testCases := []struct {
		name string
		seq  []parserTestSequence
	}{
		{
			name: "crlf lines",
			seq: parserTestSequences().
				on("$a\r\n0.05\r\n").line("$a").line("0.05").
				build(),
		},
		{
			name: "bare lf and empty line",
			seq: parserTestSequences().
				on("1\n\n2\n").line("1").line("").line("2").
				build(),
		},
		{
			name: "line split across reads",
			seq: parserTestSequences().
				on("160").
				on("00\r").
				on("\n").line("16000").
				build(),
		},
		{
			name: "interrupt discards partial line",
			seq: parserTestSequences().
				on("12\x03").control(Interrupt).
				on("34\r\n").line("34").
				build(),
		},
		{
			name: "restart",
			seq: parserTestSequences().
				on("\x03\x03\x04").control(Interrupt).control(Interrupt).control(Restart).
				build(),
		},
		{
			name: "overlong line",
			seq: parserTestSequences().
				on(strings.Repeat("x", 10) + "\n").truncated(strings.Repeat("x", 8)).
				on("ok\n").line("ok").
				build(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parser := LineParser{MaxLen: 8}
			for n, s := range tc.seq {
				var results []ParseResult
				parser.ParseAll(s.in, func(r ParseResult) {
					results = append(results, r)
				})
				require.Equalf(t, s.expect, results, "seq[%d] results mismatch", n)
			}
		})
	}
}

func TestLineParserReset(t *testing.T) {
	var parser LineParser
	parser.ParseAll([]byte("partial"), func(ParseResult) {})
	parser.Reset()
	r := parser.Parse('\n')
	require.True(t, r.HasLine)
	require.Empty(t, r.Line)
}
