// Package pipeline drives end-to-end conversion: discovered inputs are
// parsed concurrently by a bounded worker pool and emitted as
// newline-delimited JSON in a deterministic order.
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lbstream/elb2json/internal/input"
	"github.com/lbstream/elb2json/internal/lexer"
	"github.com/lbstream/elb2json/internal/logging"
	"github.com/lbstream/elb2json/internal/schema"
)

// ParseError reports a line that failed to tokenize or schema-match,
// with the input name and 1-based line number.
type ParseError struct {
	Input string
	Line  int
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Input, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures a run. Format selection and the error policy are
// passed explicitly; the pipeline reads no ambient state.
type Options struct {
	Format schema.Format

	// SkipParseErrors logs and drops unparsable lines instead of
	// aborting the whole run on the first one.
	SkipParseErrors bool

	// Workers bounds how many files are parsed concurrently.
	Workers int

	// QueueSize is the capacity of each per-file record channel; it
	// provides backpressure when the output sink is slow.
	QueueSize int

	Out    io.Writer
	Logger *logging.Logger
}

// Pipeline converts load-balancer logs to newline-delimited JSON.
type Pipeline struct {
	format    schema.Format
	skip      bool
	workers   int
	queueSize int
	out       io.Writer
	logger    *logging.Logger

	bufPool sync.Pool

	records uint64
	skipped uint64
}

// New creates a pipeline. Zero Workers/QueueSize fall back to 1.
func New(opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Pipeline{
		format:    opts.Format,
		skip:      opts.SkipParseErrors,
		workers:   opts.Workers,
		queueSize: opts.QueueSize,
		out:       opts.Out,
		logger:    logger.WithComponent("pipeline"),
		bufPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Run discovers the inputs under path and converts them. It returns on
// completion, on the first fatal error, or when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, path string) error {
	inputs, err := input.Discover(path)
	if err != nil {
		return err
	}
	return p.Convert(ctx, inputs)
}

// Convert processes the given inputs in order.
//
// Ordering: records from a given input appear in line order, and inputs
// appear in discovery order. Each input gets a bounded record channel;
// the single writer drains those channels strictly in input order, so a
// worker that finishes input N+1 early parks its output in the channel
// until input N is fully drained. Workers are started in input order,
// which keeps a producer running for the input currently being drained.
func (p *Pipeline) Convert(ctx context.Context, inputs []input.Input) error {
	atomic.StoreUint64(&p.records, 0)
	atomic.StoreUint64(&p.skipped, 0)

	p.logger.Debug().
		Int("inputs", len(inputs)).
		Stringer("format", p.format).
		Int("workers", p.workers).
		Msg("Starting conversion")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	streams := make([]*stream, len(inputs))
	for i := range streams {
		streams[i] = &stream{ch: make(chan []byte, p.queueSize)}
	}

	// The writer lives on the outer context so that it keeps draining
	// closed channels after the workers finish. A dead sink cancels the
	// run; without that, producers park forever on their full channels.
	writerErr := make(chan error, 1)
	go func() {
		err := p.writeLoop(ctx, streams)
		if err != nil {
			cancel()
		}
		writerErr <- err
	}()

	workers, wctx := errgroup.WithContext(ctx)
	workers.SetLimit(p.workers)

	for i := range inputs {
		if wctx.Err() != nil {
			// A fatal error already occurred; open no further files.
			close(streams[i].ch)
			continue
		}
		i := i
		workers.Go(func() error {
			s := streams[i]
			defer close(s.ch)
			if wctx.Err() != nil {
				// Cancelled while queued for a worker slot.
				return nil
			}
			if err := p.processInput(wctx, inputs[i], s.ch); err != nil {
				s.err = err
				return err
			}
			return nil
		})
	}

	err := workers.Wait()

	// Every channel is closed by now, so the writer finishes on its own
	// after draining up to the failure point. A sink failure is the
	// root cause of the cancellation the workers report, so it wins.
	if werr := <-writerErr; werr != nil {
		return werr
	}
	if err != nil {
		return err
	}

	p.logger.Debug().
		Uint64("records", atomic.LoadUint64(&p.records)).
		Uint64("skipped", atomic.LoadUint64(&p.skipped)).
		Msg("Conversion finished")

	return nil
}

// Records returns the number of records emitted by the last run.
func (p *Pipeline) Records() uint64 { return atomic.LoadUint64(&p.records) }

// Skipped returns the number of lines skipped by the last run.
func (p *Pipeline) Skipped() uint64 { return atomic.LoadUint64(&p.skipped) }

// stream carries one input's serialized records to the writer. err is
// set by the producing worker before ch is closed, so the writer can
// stop at a failed input instead of advancing to the ones behind it.
type stream struct {
	ch  chan []byte
	err error
}

// writeLoop is the single owner of the output sink. It drains the
// per-input streams strictly in discovery order.
func (p *Pipeline) writeLoop(ctx context.Context, streams []*stream) error {
	w := bufio.NewWriterSize(p.out, 64*1024)

	for _, s := range streams {
	drain:
		for {
			select {
			case rec, ok := <-s.ch:
				if !ok {
					break drain
				}
				if _, err := w.Write(rec); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			case <-ctx.Done():
				// Flush what was already accepted; partial output is
				// not rolled back on a fatal error.
				w.Flush()
				return ctx.Err()
			}
		}
		if s.err != nil {
			// No output past the failure point. The error itself is
			// reported by the worker pool.
			w.Flush()
			return nil
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// processInput parses one input line by line, sending serialized
// records to out. Tokenizer and schema errors follow the error policy;
// open and decompression errors are always fatal.
func (p *Pipeline) processInput(ctx context.Context, in input.Input, out chan<- []byte) error {
	rc, err := in.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	src, err := input.NewLineSource(rc)
	if err != nil {
		return fmt.Errorf("%s: %w", in.Name(), err)
	}

	for {
		line, lineno, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", in.Name(), err)
		}

		rec, err := p.parseLine(line)
		if err != nil {
			perr := &ParseError{Input: in.Name(), Line: lineno, Err: err}
			if p.skip {
				atomic.AddUint64(&p.skipped, 1)
				p.logger.Warn().
					Str("input", in.Name()).
					Int("line", lineno).
					Err(err).
					Msg("Skipping unparsable line")
				continue
			}
			return perr
		}

		// Prefer delivery while the channel has room so that in-flight
		// lines complete even when cancellation races the send.
		serialized := p.serialize(rec)
		select {
		case out <- serialized:
			atomic.AddUint64(&p.records, 1)
		default:
			select {
			case out <- serialized:
				atomic.AddUint64(&p.records, 1)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (p *Pipeline) parseLine(line string) (schema.Record, error) {
	tokens, err := lexer.Split(line)
	if err != nil {
		return schema.Record{}, err
	}
	return p.format.Record(tokens)
}

// serialize renders one record as a JSON object plus newline. The
// scratch buffer is pooled; the returned slice is owned by the caller.
func (p *Pipeline) serialize(rec schema.Record) []byte {
	buf := p.bufPool.Get().(*bytes.Buffer)
	buf.Reset()

	rec.AppendJSON(buf)
	buf.WriteByte('\n')

	line := make([]byte, buf.Len())
	copy(line, buf.Bytes())

	p.bufPool.Put(buf)
	return line
}
