package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MockFileName and MockText describe the canned submission used for dry runs.
const (
	MockFileName = "mock_submission.txt"
	MockText     = "This is a mock submission for testing purposes."
)

var (
	// ErrTooLarge indicates the file exceeded the configured limit.
	ErrTooLarge = errors.New("submission exceeds maximum allowed size")
	// ErrTypeNotAllowed indicates the detected type cannot be read as text.
	ErrTypeNotAllowed = errors.New("submission type not allowed")
	// ErrEmpty indicates no readable text was found.
	ErrEmpty = errors.New("submission is empty")
)

// Submission is a student file reduced to plain text.
type Submission struct {
	SourceFileName string `json:"source_file_name"`
	SizeBytes      int64  `json:"size_bytes"`
	MimeType       string `json:"mime_type"`
	Text           string `json:"text"`
}

// SizeKB renders the size the way the upload panel shows it.
func (s Submission) SizeKB() string {
	return fmt.Sprintf("%.2f KB", float64(s.SizeBytes)/1024)
}

// Mock returns the canned submission.
func Mock() Submission {
	return Submission{
		SourceFileName: MockFileName,
		SizeBytes:      int64(len(MockText)),
		MimeType:       "text/plain",
		Text:           MockText,
	}
}

// Reader turns uploaded files into Submissions.
type Reader struct {
	maxSize   int64
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewReader builds a reader accepting files up to maxSizeMB megabytes.
func NewReader(maxSizeMB int, logger zerolog.Logger) *Reader {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &Reader{
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		sanitizer: bluemonday.StrictPolicy(),
		tracer:    otel.Tracer("github.com/noah-isme/situated-learning/internal/submission"),
		logger:    logger.With().Str("component", "submission_reader").Logger(),
	}
}

// Read loads the whole file into memory and extracts its text.
func (r *Reader) Read(ctx context.Context, name string, src io.Reader) (Submission, error) {
	_, span := r.tracer.Start(ctx, "submission.read", trace.WithAttributes(
		attribute.String("submission.name", name),
	))
	defer span.End()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(src, r.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return Submission{}, fmt.Errorf("read submission: %w", err)
	}
	if int64(buf.Len()) > r.maxSize {
		span.SetStatus(codes.Error, "payload too large")
		return Submission{}, ErrTooLarge
	}

	data := buf.Bytes()
	detected := normalizeMime(mimetype.Detect(data).String())
	span.SetAttributes(attribute.String("submission.mime", detected))

	text, err := r.extract(detected, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Submission{}, err
	}
	if strings.TrimSpace(text) == "" {
		span.SetStatus(codes.Error, "empty")
		return Submission{}, ErrEmpty
	}

	r.logger.Debug().Str("file", name).Str("mime", detected).Int("bytes", len(data)).Msg("submission read")

	return Submission{
		SourceFileName: sanitizeFileName(name),
		SizeBytes:      int64(len(data)),
		MimeType:       detected,
		Text:           text,
	}, nil
}

func (r *Reader) extract(mime string, data []byte) (string, error) {
	switch {
	case mime == "text/html" || mime == "application/xhtml+xml":
		return strings.TrimSpace(r.sanitizer.Sanitize(string(data))), nil
	case strings.HasPrefix(mime, "text/"), mime == "application/json", mime == "application/xml":
		return toValidText(data), nil
	case isDocument(mime):
		// Document formats are read as text, matching the browser FileReader
		// behaviour; binary runs are dropped.
		return toValidText(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrTypeNotAllowed, mime)
	}
}

func isDocument(mime string) bool {
	switch mime {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/zip",
		"application/rtf":
		return true
	default:
		return false
	}
}

func toValidText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	var b strings.Builder
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size > 1 {
			if r == '\n' || r == '\t' || r >= ' ' {
				b.WriteRune(r)
			}
		}
		data = data[size:]
	}
	return b.String()
}

func normalizeMime(value string) string {
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func sanitizeFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == "" {
		return "submission.txt"
	}
	return base
}
