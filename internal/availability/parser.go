package availability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"tutorbook/internal/metrics"
)

// Shape is the stored encoding of a weekly availability value.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeObject is {"monday": [...], "tuesday": [...]}.
	ShapeObject
	// ShapeLegacyArray is [{"monday": [...]}, {"tuesday": [...]}].
	ShapeLegacyArray
)

func (s Shape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeLegacyArray:
		return "legacy_array"
	default:
		return "unknown"
	}
}

var (
	ErrMalformedAvailability = errors.New("malformed availability")
	ErrUnexpectedShape       = errors.New("unexpected availability shape")
)

type dayEntry struct {
	day   string
	slots []string
}

// Decode decodes a stored availability value. Keys are lower-cased and, when a
// day appears more than once, the later entry wins. On error the returned
// Weekly is empty and the shape reports what was recognised.
func Decode(raw []byte) (Shape, Weekly, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return ShapeUnknown, Weekly{}, fmt.Errorf("%w: %v", ErrMalformedAvailability, err)
	}

	var (
		shape   Shape
		entries []dayEntry
	)
	switch tok {
	case json.Delim('{'):
		shape = ShapeObject
		entries, err = readObject(dec)
	case json.Delim('['):
		shape = ShapeLegacyArray
		entries, err = readArray(dec)
	default:
		// Primitives and null still have to be a single well-formed value.
		if err := expectEOF(dec); err != nil {
			return ShapeUnknown, Weekly{}, err
		}
		return ShapeUnknown, Weekly{}, fmt.Errorf("%w: top-level %T", ErrUnexpectedShape, tok)
	}
	if err != nil {
		return shape, Weekly{}, err
	}
	if err := expectEOF(dec); err != nil {
		return shape, Weekly{}, err
	}

	out := make(Weekly, len(entries))
	for _, e := range entries {
		out[strings.ToLower(e.day)] = e.slots
	}
	return shape, out, nil
}

// DetectShape reports the stored shape of raw without keeping the data.
func DetectShape(raw []byte) Shape {
	shape, _, err := Decode(raw)
	if err != nil {
		return ShapeUnknown
	}
	return shape
}

// readObject reads the members of an object whose '{' was already consumed.
func readObject(dec *json.Decoder) ([]dayEntry, error) {
	var entries []dayEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAvailability, err)
		}
		day, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string key", ErrMalformedAvailability)
		}

		var slots []string
		if err := dec.Decode(&slots); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return nil, fmt.Errorf("%w: slots for %q: %v", ErrUnexpectedShape, day, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedAvailability, err)
		}
		if slots == nil {
			slots = []string{}
		}
		entries = append(entries, dayEntry{day: day, slots: slots})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAvailability, err)
	}
	return entries, nil
}

// readArray reads a legacy array whose '[' was already consumed. Every element
// must be an object.
func readArray(dec *json.Decoder) ([]dayEntry, error) {
	var entries []dayEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAvailability, err)
		}
		if tok != json.Delim('{') {
			return nil, fmt.Errorf("%w: array element %v", ErrUnexpectedShape, tok)
		}
		elem, err := readObject(dec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, elem...)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAvailability, err)
	}
	return entries, nil
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrMalformedAvailability)
	}
	return nil
}

// Parser turns stored availability values into Weekly maps. It never fails:
// anything it cannot read becomes an empty map and is logged.
type Parser struct {
	logger *zerolog.Logger
}

// NewParser creates a parser logging to logger (nil disables logging).
func NewParser(logger *zerolog.Logger) *Parser {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Parser{logger: logger}
}

var defaultParser = NewParser(nil)

// Parse converts raw into a Weekly. A nil or empty raw yields an empty map.
func (p *Parser) Parse(raw *string) Weekly {
	if raw == nil || *raw == "" {
		return Weekly{}
	}

	shape, weekly, err := Decode([]byte(*raw))
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrUnexpectedShape) {
			reason = "shape"
		}
		metrics.IncAvailabilityParseFailure(reason)
		p.logger.Warn().Err(err).Str("shape", shape.String()).Msg("failed to parse availability")
		return Weekly{}
	}
	return weekly
}

// Parse converts raw into a Weekly using a parser that does not log.
func Parse(raw *string) Weekly {
	return defaultParser.Parse(raw)
}

// ParseString is Parse for a present value.
func ParseString(raw string) Weekly {
	return defaultParser.Parse(&raw)
}
