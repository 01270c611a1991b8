package transport

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedFrame is returned by [ParseFrame] for messages that are not of
// the form "<timestamp>:<base64>".
var ErrMalformedFrame = errors.New("transport: malformed video frame")

// ParseFrame decodes a video frame message of the form "<timestamp>:<base64>".
// The timestamp is in seconds. A "data:image/...;base64," prefix on the
// payload is stripped before decoding.
func ParseFrame(msg string) (timestamp float64, payload []byte, err error) {
	tsPart, data, ok := strings.Cut(msg, ":")
	if !ok {
		return 0, nil, fmt.Errorf("%w: missing separator", ErrMalformedFrame)
	}
	timestamp, err = strconv.ParseFloat(strings.TrimSpace(tsPart), 64)
	if err != nil || math.IsNaN(timestamp) || math.IsInf(timestamp, 0) {
		return 0, nil, fmt.Errorf("%w: bad timestamp %q", ErrMalformedFrame, tsPart)
	}

	if rest, found := strings.CutPrefix(data, "data:"); found {
		_, b64, ok := strings.Cut(rest, ";base64,")
		if !ok {
			return 0, nil, fmt.Errorf("%w: data url is not base64", ErrMalformedFrame)
		}
		data = b64
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return 0, nil, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}

	payload, err = base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return timestamp, payload, nil
}
