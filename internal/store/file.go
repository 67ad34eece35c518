package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/baxromumarov/job-harvester/internal/record"
)

// FileSink appends one JSON object per line. Safe for concurrent use.
type FileSink struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
	c   io.Closer
}

// OpenFile creates or truncates path. "-" writes to stdout.
func OpenFile(path string) (*FileSink, error) {
	if path == "-" {
		return NewFileSink(os.Stdout, nil), nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output failed: %w", err)
	}
	return NewFileSink(f, f), nil
}

func NewFileSink(w io.Writer, c io.Closer) *FileSink {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &FileSink{w: bw, enc: enc, c: c}
}

func (f *FileSink) SaveJob(ctx context.Context, rec record.JobRecord) error {
	return f.write(ctx, rec)
}

func (f *FileSink) SaveLink(ctx context.Context, link record.LinkRecord) error {
	return f.write(ctx, link)
}

func (f *FileSink) write(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enc.Encode(v); err != nil {
		return fmt.Errorf("write record failed: %w", err)
	}
	return nil
}

// Close flushes buffered lines and closes the underlying file.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.w.Flush()
	if f.c != nil {
		err = errors.Join(err, f.c.Close())
	}
	return err
}

// JobSink is the write side shared by every backend.
type JobSink interface {
	SaveJob(ctx context.Context, rec record.JobRecord) error
	SaveLink(ctx context.Context, link record.LinkRecord) error
}

// MultiSink writes to every sink in order and stops at the first error.
type MultiSink []JobSink

func (m MultiSink) SaveJob(ctx context.Context, rec record.JobRecord) error {
	for _, s := range m {
		if err := s.SaveJob(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) SaveLink(ctx context.Context, link record.LinkRecord) error {
	for _, s := range m {
		if err := s.SaveLink(ctx, link); err != nil {
			return err
		}
	}
	return nil
}
