package comm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Tokens of the handshake.
const (
	TokenGain0     = "$a"
	TokenGain1     = "$b"
	TokenSetpoint0 = "$c"
	TokenSetpoint1 = "$d"
	TokenPeriod    = "$e"
	TokenBegin0    = "$f"
	TokenEnd0      = "$g"
	TokenBegin1    = "$h"
	TokenEnd1      = "$i"
)

// Control bytes sent by the host.
const (
	Interrupt byte = 0x03
	Restart   byte = 0x04
)

// LineTerminator ends every line on the link.
const LineTerminator = "\r\n"

// MaxMotors is the number of motors a board drives at most.
const MaxMotors = 2

// Field identifies the parameter a prompt assigns.
type Field int

// Fields assigned by prompts.
const (
	FieldGain Field = iota
	FieldSetpoint
	FieldPeriod
)

func (f Field) String() string {
	switch f {
	case FieldGain:
		return "gain"
	case FieldSetpoint:
		return "setpoint"
	case FieldPeriod:
		return "period"
	}
	return "field(" + strconv.Itoa(int(f)) + ")"
}

// Prompt is a single "token then value" exchange.
type Prompt struct {
	Token string
	Field Field
	// Motor is the motor index for gains and setpoints, -1 for shared
	// fields.
	Motor int
}

// Block is a delimited telemetry block.
type Block struct {
	Begin string
	End   string
	Motor int
}

// Plan is the exchange sequence of one experiment cycle.
type Plan struct {
	MotorCount   int
	ResetBarrier bool
	Prompts      []Prompt
	Blocks       []Block
}

// NewPlan builds the exchange sequence for a board driving motorCount
// motors. Motor 1 prompts and its telemetry block are left out for a
// single motor board.
func NewPlan(motorCount int, resetBarrier bool) Plan {
	if motorCount < 1 {
		motorCount = 1
	} else if motorCount > MaxMotors {
		motorCount = MaxMotors
	}
	p := Plan{MotorCount: motorCount, ResetBarrier: resetBarrier}
	gains := []string{TokenGain0, TokenGain1}
	setpoints := []string{TokenSetpoint0, TokenSetpoint1}
	for m := 0; m < motorCount; m++ {
		p.Prompts = append(p.Prompts, Prompt{Token: gains[m], Field: FieldGain, Motor: m})
	}
	for m := 0; m < motorCount; m++ {
		p.Prompts = append(p.Prompts, Prompt{Token: setpoints[m], Field: FieldSetpoint, Motor: m})
	}
	p.Prompts = append(p.Prompts, Prompt{Token: TokenPeriod, Field: FieldPeriod, Motor: -1})
	p.Blocks = append(p.Blocks, Block{Begin: TokenBegin0, End: TokenEnd0, Motor: 0})
	if motorCount > 1 {
		p.Blocks = append(p.Blocks, Block{Begin: TokenBegin1, End: TokenEnd1, Motor: 1})
	}
	return p
}

// IsToken reports whether line starts with any handshake token.
func IsToken(line string) bool {
	return len(line) >= 2 && line[0] == '$' && line[1] >= 'a' && line[1] <= 'i'
}

// MatchToken reports whether line carries tok.
func MatchToken(line, tok string) bool {
	return strings.HasPrefix(line, tok)
}

// FormatGain renders a gain so that ParseGain returns the same float64.
func FormatGain(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseGain parses a gain line.
func ParseGain(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidValue, "gain %q", s)
	}
	return v, nil
}

// FormatInt renders an integer value line.
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// ParseInt parses a setpoint, period or sample line.
func ParseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidValue, "integer %q", s)
	}
	return v, nil
}
