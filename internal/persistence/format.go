// SPDX-License-Identifier: MIT
package persistence

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"biosignal/internal/spectrum"
)

// Format selects the on-disk encoding of a spectrum.
type Format int

const (
	JSON Format = iota
	Binary
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Extension is the file suffix for f, without compression.
func (f Format) Extension() string {
	if f == Binary {
		return ".spectrum.bin"
	}
	return ".spectrum.json"
}

// ParseFormat converts a string (case-insensitive) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return JSON, nil
	case "bin", "binary":
		return Binary, nil
	default:
		return JSON, fmt.Errorf("unknown spectrum format: '%s'", s)
	}
}

// ErrBadEncoding is returned when a persisted spectrum cannot be decoded.
var ErrBadEncoding = errors.New("malformed spectrum encoding")

type document struct {
	Name           string    `json:"name"`
	Timestamp      time.Time `json:"timestamp"`
	FirstFrequency float64   `json:"first_frequency"`
	FrequencyStep  float64   `json:"frequency_step"`
	LastFrequency  float64   `json:"last_frequency"`
	FFTSize        int       `json:"fft_size"`
	Filters        []string  `json:"applied_filters"`
	Magnitude      []float64 `json:"magnitude"`
}

func encodeJSON(w io.Writer, s *spectrum.Spectrum) error {
	doc := document{
		Name:           s.Name,
		Timestamp:      s.Timestamp,
		FirstFrequency: s.FirstFrequency(),
		FrequencyStep:  s.FrequencyStep(),
		LastFrequency:  s.LastFrequency(),
		FFTSize:        s.FFTSize(),
		Filters:        s.AppliedFilters(),
		Magnitude:      s.Magnitude(),
	}
	if doc.Filters == nil {
		doc.Filters = []string{}
	}
	if doc.Magnitude == nil {
		doc.Magnitude = []float64{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func decodeJSON(r io.Reader) (*spectrum.Spectrum, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	if len(doc.Magnitude) != doc.FFTSize {
		return nil, fmt.Errorf("%w: fft_size %d does not match %d magnitudes", ErrBadEncoding, doc.FFTSize, len(doc.Magnitude))
	}
	s := spectrum.New(doc.Name, doc.FirstFrequency, doc.FrequencyStep, doc.Magnitude)
	s.Timestamp = doc.Timestamp
	for _, f := range doc.Filters {
		s.AppendFilter(f)
	}
	return s, nil
}

/*
Binary Spectrum Layout (BigEndian)

+--------------------------------------------------------------------------+
| Field           | Data Type  | Size (Bytes) | Description                 |
|-----------------|------------|--------------|-----------------------------|
| Magic           | [4]byte    | 4            | "BSPC"                      |
| Version         | uint8      | 1            | binaryVersion               |
| First Frequency | float64    | 8            | Hz                          |
| Frequency Step  | float64    | 8            | Hz                          |
| Timestamp       | int64      | 8            | Unix nanoseconds, 0 if unset|
| Name            | string16   | 2 + L        | uint16 length + UTF-8 bytes |
| Filter Count    | uint16     | 2            | F                           |
| Filters         | string16   | F * (2 + L)  | filter log entries          |
| Magnitude Count | uint32     | 4            | N                           |
| Magnitudes      | []float64  | N * 8        | magnitude values            |
+--------------------------------------------------------------------------+
*/

var binaryMagic = [4]byte{'B', 'S', 'P', 'C'}

const binaryVersion uint8 = 1

const (
	// maxMagnitudes bounds the bins of one spectrum (128 MiB of float64).
	maxMagnitudes  = 1 << 24
	magnitudeChunk = 4096
)

func encodeBinary(w io.Writer, s *spectrum.Spectrum) error {
	var buf bytes.Buffer
	buf.Write(binaryMagic[:])
	buf.WriteByte(binaryVersion)

	var ts int64
	if !s.Timestamp.IsZero() {
		ts = s.Timestamp.UnixNano()
	}
	header := []any{s.FirstFrequency(), s.FrequencyStep(), ts}
	for _, v := range header {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return err
		}
	}

	filters := s.AppliedFilters()
	if len(filters) > math.MaxUint16 {
		return fmt.Errorf("too many filters to encode: %d", len(filters))
	}
	if err := writeString16(&buf, s.Name); err != nil {
		return err
	}
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(filters)))
	for _, f := range filters {
		if err := writeString16(&buf, f); err != nil {
			return err
		}
	}

	mags := s.Magnitude()
	if len(mags) > maxMagnitudes {
		return fmt.Errorf("too many magnitudes to encode: %d", len(mags))
	}
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(mags)))
	if err := binary.Write(&buf, binary.BigEndian, mags); err != nil {
		return err
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func writeString16(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string too long to encode: %d bytes", len(s))
	}
	_ = binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
	return nil
}

func decodeBinary(r io.Reader) (*spectrum.Spectrum, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	if magic != binaryMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadEncoding, magic[:])
	}

	var hdr struct {
		Version uint8
		First   float64
		Step    float64
		Stamp   int64
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	if hdr.Version != binaryVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadEncoding, hdr.Version)
	}

	name, err := readString16(r)
	if err != nil {
		return nil, err
	}
	var nf uint16
	if err := binary.Read(r, binary.BigEndian, &nf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	filters := make([]string, 0, nf)
	for range nf {
		f, err := readString16(r)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	var nm uint32
	if err := binary.Read(r, binary.BigEndian, &nm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	mags, err := readMagnitudes(r, int(nm))
	if err != nil {
		return nil, err
	}

	s := spectrum.New(name, hdr.First, hdr.Step, mags)
	if hdr.Stamp != 0 {
		s.Timestamp = time.Unix(0, hdr.Stamp).UTC()
	}
	for _, f := range filters {
		s.AppendFilter(f)
	}
	return s, nil
}

// readMagnitudes reads n big-endian float64 values in fixed-size chunks, so
// a corrupt count fails on the missing data instead of allocating it up
// front.
func readMagnitudes(r io.Reader, n int) ([]float64, error) {
	if n > maxMagnitudes {
		return nil, fmt.Errorf("%w: %d magnitudes exceeds limit of %d", ErrBadEncoding, n, maxMagnitudes)
	}
	mags := make([]float64, 0, min(n, magnitudeChunk))
	chunk := make([]float64, magnitudeChunk)
	for len(mags) < n {
		c := chunk[:min(n-len(mags), magnitudeChunk)]
		if err := binary.Read(r, binary.BigEndian, c); err != nil {
			return nil, fmt.Errorf("%w: magnitude %d of %d: %v", ErrBadEncoding, len(mags), n, err)
		}
		mags = append(mags, c...)
	}
	return mags, nil
}

func readString16(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return string(b), nil
}
