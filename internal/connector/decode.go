package connector

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/crimson-sun/sectriage/internal/model"
)

// DecodeEvents reads a JSON array of records, or a stream of concatenated /
// newline-delimited records, calling fn for each one in input order.
// Elements that are not JSON objects are delivered with nil Fields so the
// engine can count them as skipped. Returning an error from fn stops decoding.
func DecodeEvents(r io.Reader, source string, fn func(model.RawEvent) error) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", source, err)
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	emit := func(v any) error {
		fields, _ := v.(map[string]any)
		return fn(model.RawEvent{Received: time.Now(), Source: source, Fields: fields})
	}

	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("decode %s: %w", source, err)
		}
		for dec.More() {
			var v any
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("decode %s: %w", source, err)
			}
			if err := emit(v); err != nil {
				return err
			}
		}
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("decode %s: %w", source, err)
		}
		return nil
	}

	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", source, err)
		}
		if err := emit(v); err != nil {
			return err
		}
	}
}

// DecodeLine parses one NDJSON line. Blank lines return ok=false.
func DecodeLine(line []byte, source string) (model.RawEvent, bool, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return model.RawEvent{}, false, nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return model.RawEvent{}, false, fmt.Errorf("decode %s: %w", source, err)
	}
	fields, _ := v.(map[string]any)
	return model.RawEvent{Received: time.Now(), Source: source, Fields: fields}, true, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF: // whitespace and UTF-8 BOM
			continue
		}
		return b, br.UnreadByte()
	}
}
