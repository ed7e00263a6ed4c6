package printer

import "unicode/utf8"

// Carriage control bytes written ahead of the line content.
const (
	LineFeed       byte = '\n'
	FormFeed       byte = '\f'
	CarriageReturn byte = '\r'
)

// Emulate applies the ANSI carriage control in the first column of line and
// returns the bytes to send to the renderer.
//
//	' '   single space, no extra byte
//	'0'   double space, one extra line feed
//	'1'   form feed, skipped while firstLine is set
//	'+'   overprint, carriage return without advance
//
// Any other control character prints the content without extra bytes. The
// control column itself is never printed. An empty line produces no output.
// The returned bool is the updated first-line flag: only a '1' line clears it.
func Emulate(line string, firstLine bool) ([]byte, bool) {
	if len(line) == 0 {
		return nil, firstLine
	}
	out := make([]byte, 0, len(line)+1)
	switch line[0] {
	case '1':
		if firstLine {
			firstLine = false
		} else {
			out = append(out, FormFeed)
		}
	case '0':
		out = append(out, LineFeed)
	case '+':
		out = append(out, CarriageReturn)
	}
	_, width := utf8.DecodeRuneInString(line)
	out = append(out, line[width:]...)
	out = append(out, LineFeed)
	return out, firstLine
}
