package status

import (
	"bufio"
	"io"
	"strings"
)

// maxFrameBytes bounds one stream line.
const maxFrameBytes = 1 << 20

// frame is one dispatched server-sent event.
type frame struct {
	event string
	data  string
	id    string
}

// frameReader splits a text/event-stream body into frames: field lines
// accumulate until a blank line, multiple data lines join with "\n",
// comment lines start with ':'.
type frameReader struct {
	sc *bufio.Scanner
}

func newFrameReader(r io.Reader) *frameReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	return &frameReader{sc: sc}
}

// Next returns the next complete frame, or io.EOF when the stream ends.
// A trailing frame without its blank line is discarded.
func (fr *frameReader) Next() (frame, error) {
	var f frame
	var data []string
	pending := false
	for fr.sc.Scan() {
		line := fr.sc.Text()
		if line == "" {
			if !pending {
				continue
			}
			f.data = strings.Join(data, "\n")
			return f, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
			pending = true
		case "event":
			f.event = value
			pending = true
		case "id":
			f.id = value
		}
	}
	if err := fr.sc.Err(); err != nil {
		return frame{}, err
	}
	return frame{}, io.EOF
}
