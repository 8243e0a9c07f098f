package worker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
)

// Serve handles requests from in, one at a time and in arrival order, until
// in is closed or ctx is done. Responses are sent to out, which Serve closes
// on return. The State is left open; the caller owns it.
func Serve(ctx context.Context, state *State, in <-chan *Request, out chan<- *Response) error {
	defer close(out)
	emit := func(resp *Response) error {
		select {
		case out <- resp:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-in:
			if !ok {
				return nil
			}
			if err := state.Handle(req, emit); err != nil {
				return err
			}
		}
	}
}

// ServeStream runs Serve over newline-delimited JSON: requests are read
// from r and responses written to w, one object per line. It returns once r
// is exhausted and every response has been written, or on the first read or
// write error.
func ServeStream(ctx context.Context, state *State, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan *Request)
	out := make(chan *Response, 16)
	readErr := make(chan error, 1)
	writeErr := make(chan error, 1)
	go func() {
		defer close(in)
		readErr <- readRequests(ctx, r, in)
	}()
	go func() {
		writeErr <- writeResponses(w, out, cancel)
	}()

	err := Serve(ctx, state, in, out)
	if wErr := <-writeErr; wErr != nil {
		return wErr
	}
	if err != nil {
		return err
	}
	return <-readErr
}

func readRequests(ctx context.Context, r io.Reader, in chan<- *Request) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			select {
			case in <- DecodeRequest(line):
			case <-ctx.Done():
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// writeResponses drains out. After a write error it keeps draining so the
// sender never blocks, and cancels the serving context.
func writeResponses(w io.Writer, out <-chan *Response, cancel context.CancelFunc) error {
	bw := bufio.NewWriter(w)
	var werr error
	for resp := range out {
		if werr != nil {
			continue
		}
		line, err := EncodeResponse(resp)
		if err != nil {
			Logger().Error("failed to encode response", zap.ByteString("id", resp.ID), zap.Error(err))
			continue
		}
		if _, werr = bw.Write(line); werr == nil {
			werr = bw.Flush()
		}
		if werr != nil {
			cancel()
		}
	}
	return werr
}
