package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

var ErrMalformedMarker = errors.New("malformed SysCall marker")

const (
	markerToken = "SysCall"

	// valueField is the index of the memory value in a data line: <R|W> <addr> <size> <value>.
	valueField = 3

	// lineBufferSize bounds how much of a single line is kept. The rest of a longer line is discarded.
	lineBufferSize = 64 * 1024
)

// Event is one system call occurrence and the histogram of its memory value buckets.
//
// Histogram only holds buckets with a count > 0.
type Event struct {
	SyscallID int         `json:"syscall_id"`
	Histogram map[int]int `json:"histogram"`
}

// Result is everything gathered from a single trace.
//
// Events are in file order; Features holds each bucket once, in first-seen order.
type Result struct {
	Events   []Event `json:"events"`
	Features []int   `json:"features"`
	Stats    Stats   `json:"stats"`
}

type mode int

const (
	seeking mode = iota
	reading
)

type skipReason int

const (
	skipNone skipReason = iota
	skipTooFewFields
	skipNotHex
	skipNonPositive
)

func (s skipReason) String() string {
	switch s {
	case skipTooFewFields:
		return "too few fields"
	case skipNotHex:
		return "not hex"
	case skipNonPositive:
		return "non-positive"
	default:
		return "none"
	}
}

// Parser turns memory traces into per-syscall histograms.
//
// A Parser keeps no state between calls and is safe for concurrent use.
type Parser struct {
	logger *zap.SugaredLogger
}

func NewParser(logger *zap.SugaredLogger) *Parser {
	return &Parser{logger: logger}
}

// NewTestParser is configured with a Nop logger.
func NewTestParser() *Parser {
	return &Parser{logger: zap.NewNop().Sugar()}
}

// ParseFile will open, parse and close the trace at path.
//
// Compressed traces are decoded based on their extension, see Open.
func (p *Parser) ParseFile(path string) (*Result, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	p.logger.Infow("parsing trace", "path", path)

	res, err := p.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	p.logger.Infow(
		"parsed trace",
		"path", path,
		"events", len(res.Events),
		"features", len(res.Features),
		"counted", res.Stats.Counted,
		"skipped", res.Stats.Skipped(),
	)

	return res, nil
}

// Parse reads a trace line by line.
//
// Data lines are only considered once the first marker has been seen. Data lines that don't carry a
// positive hex value are skipped and counted in Stats; a marker without a decimal id is an error.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	var (
		res     = &Result{Events: []Event{}, Features: []int{}}
		seen    = make(map[int]struct{})
		current *Event
		m       = seeking
		lineNr  int
	)

	br := bufio.NewReaderSize(r, lineBufferSize)

	for {
		line, truncated, readErr := readLine(br)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("failed to read trace at line %d: %w", lineNr+1, readErr)
		}

		if len(line) == 0 && readErr != nil {
			break
		}

		lineNr++
		res.Stats.Lines++

		fields := strings.Fields(string(line))

		if truncated {
			res.Stats.Truncated++
			p.logger.Debugw("truncating long trace line", "line", lineNr, "kept_bytes", len(line))

			// the last kept field may have been cut in half
			if len(fields) > 0 && !endsInSpace(line) {
				fields = fields[:len(fields)-1]
			}
		}

		if len(fields) > 0 && fields[0] == markerToken {
			id, err := parseMarker(fields)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedMarker, lineNr, err)
			}

			if current != nil {
				res.Events = append(res.Events, *current)
			}

			current = &Event{SyscallID: id, Histogram: make(map[int]int)}
			m = reading
			res.Stats.Markers++
		} else if m == seeking {
			res.Stats.BeforeMarker++
		} else if bucket, value, reason := extract(fields); reason != skipNone {
			res.Stats.skip(reason)
			p.logger.Debugw("skipping trace line", "line", lineNr, "reason", reason.String())
		} else {
			if _, ok := seen[bucket]; !ok {
				seen[bucket] = struct{}{}
				res.Features = append(res.Features, bucket)
			}

			current.Histogram[bucket]++
			res.Stats.observe(value)
		}

		if readErr != nil {
			break
		}
	}

	if current != nil {
		res.Events = append(res.Events, *current)
	}

	return res, nil
}

// readLine returns the next line, terminator included. A line that doesn't fit into the reader's buffer is
// cut to the buffer's size and the remainder is discarded.
func readLine(br *bufio.Reader) ([]byte, bool, error) {
	line, err := br.ReadSlice('\n')
	if !errors.Is(err, bufio.ErrBufferFull) {
		return line, false, err
	}

	// ReadSlice's buffer is reused by the next read
	kept := bytes.Clone(line)

	for errors.Is(err, bufio.ErrBufferFull) {
		_, err = br.ReadSlice('\n')
	}

	return kept, true, err
}

func endsInSpace(line []byte) bool {
	r, _ := utf8.DecodeLastRune(line)
	return unicode.IsSpace(r)
}

func parseMarker(fields []string) (int, error) {
	if len(fields) < 2 {
		return 0, errors.New("missing syscall id")
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("failed to parse syscall id %q: %w", fields[1], err)
	}

	return id, nil
}

// Bucket returns the order of magnitude of a hex encoded value: floor(log10(value)).
//
// ok is false when token isn't hex or the value isn't positive.
func Bucket(token string) (int, bool) {
	bucket, _, reason := bucketOf(token)
	return bucket, reason == skipNone
}

func extract(fields []string) (int, uint64, skipReason) {
	if len(fields) <= valueField {
		return 0, 0, skipTooFewFields
	}

	return bucketOf(fields[valueField])
}

func bucketOf(token string) (int, uint64, skipReason) {
	negative := false

	switch {
	case strings.HasPrefix(token, "-"):
		negative = true
		token = token[1:]
	case strings.HasPrefix(token, "+"):
		token = token[1:]
	}

	if strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X") {
		token = token[2:]
	}

	v, err := strconv.ParseUint(token, 16, 64)
	if errors.Is(err, strconv.ErrRange) {
		return wideBucket(token, negative)
	} else if err != nil {
		return 0, 0, skipNotHex
	}

	if negative || v == 0 {
		return 0, 0, skipNonPositive
	}

	return magnitude(v), v, skipNone
}

// wideBucket handles values that don't fit into 64 bits, which the tracer emits for wide memory operands.
func wideBucket(token string, negative bool) (int, uint64, skipReason) {
	v, ok := new(big.Int).SetString(token, 16)
	if !ok {
		return 0, 0, skipNotHex
	}

	if negative {
		return 0, 0, skipNonPositive
	}

	return len(v.String()) - 1, math.MaxUint64, skipNone
}

// magnitude is floor(log10(v)) computed on integers, so powers of ten never round down.
func magnitude(v uint64) int {
	m := 0
	for v >= 10 {
		v /= 10
		m++
	}

	return m
}

func (s *Stats) skip(reason skipReason) {
	switch reason {
	case skipTooFewFields:
		s.TooFewFields++
	case skipNotHex:
		s.NotHex++
	case skipNonPositive:
		s.NonPositive++
	}
}
