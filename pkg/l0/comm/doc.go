// Package comm provides the line protocol spoken between a step
// response host and a board.
package comm

// Everything on the link is text. Each value or token is one line
// terminated by "\r\n". The board prompts for a value by printing a
// token line ($a..$e); the host answers with a single decimal line.
// Telemetry is returned as one sample per line between a begin and an
// end token ($f/$g for motor 0, $h/$i for motor 1). Lines are matched
// against tokens by prefix.
//
// Two control bytes are sent by the host outside of the line
// discipline: Interrupt halts whatever the board is running and
// Restart starts the resident program again.
//
// Producer of prompts and telemetry: board
// Consumer: host
