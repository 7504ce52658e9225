// Package parser reads uploaded data files into record sequences. Files
// named *.json must hold valid JSON; every other name is read as CSV.
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/KaramelBytes/chartloom-cli/internal/record"
)

var (
	// ErrInvalidJSON rejects a .json upload that does not parse.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrTooLarge rejects input above the configured size limit.
	ErrTooLarge = errors.New("input too large")
)

// FileError reports why an upload was rejected.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }

// Result is a parsed upload.
type Result struct {
	Records record.Sequence
	// Format is "json" or "csv".
	Format string
	// Skipped counts CSV rows dropped for having too few fields.
	Skipped int
}

// Parser defines an upload format.
type Parser interface {
	CanParse(filename string) bool
	Parse(content []byte) (Result, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

func forName(name string) Parser {
	for _, p := range registry {
		if p.CanParse(name) {
			return p
		}
	}
	return csvParser{}
}

// ParseFile reads path and parses it by extension. maxBytes <= 0 disables
// the size limit.
func ParseFile(path string, maxBytes int64) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, &FileError{Path: path, Err: fmt.Errorf("open: %w", err)}
	}
	defer f.Close()
	return ParseReader(path, f, maxBytes)
}

// ParseReader parses r as if it were the file called name.
func ParseReader(name string, r io.Reader, maxBytes int64) (Result, error) {
	data, err := readLimited(r, maxBytes)
	if err != nil {
		return Result{}, &FileError{Path: name, Err: err}
	}
	res, err := forName(name).Parse(data)
	if err != nil {
		return Result{}, &FileError{Path: name, Err: err}
	}
	return res, nil
}

// ReadText reads r as raw text from the source called name, with the same
// size limit and text decoding as uploads but without a format parser.
func ReadText(name string, r io.Reader, maxBytes int64) (string, error) {
	data, err := readLimited(r, maxBytes)
	if err == nil {
		data, err = decodeText(data)
	}
	if err != nil {
		return "", &FileError{Path: name, Err: err}
	}
	return string(data), nil
}

// ReadTextFile is ReadText on the file at path.
func ReadTextFile(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &FileError{Path: path, Err: fmt.Errorf("open: %w", err)}
	}
	defer f.Close()
	return ReadText(path, f, maxBytes)
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func init() {
	Register(jsonParser{})
	Register(csvParser{})
}
