package worker

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/viant/sqlite-worker/engine"
	"github.com/viant/sqlite-worker/value"
)

// Emit delivers one response. A non-nil error aborts the request in
// progress and is returned from Handle.
type Emit func(*Response) error

// State owns the worker's single Database. It must only be used from one
// goroutine at a time; Serve guarantees that. A closed Database is kept, so
// requests after close fail with engine.ErrDatabaseClosed until the next
// open; only a State that was never opened opens one implicitly.
type State struct {
	db   *engine.Database
	opts []engine.Option
}

// NewState returns a State with nothing open. opts are applied on every
// open.
func NewState(opts ...engine.Option) *State {
	return &State{opts: opts}
}

// Database returns the current Database, which may be closed, or nil when
// nothing was ever opened.
func (s *State) Database() *engine.Database { return s.db }

// Open replaces the current Database, closing it first, with one loaded
// from data (nil for an empty database).
func (s *State) Open(data []byte) error {
	if err := s.Close(); err != nil {
		Logger().Warn("failed to close previous database", zap.Error(err))
	}
	db, err := engine.Open(data, s.opts...)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Close closes the current Database, if any. Closing twice is a no-op.
func (s *State) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *State) ensureOpen() (*engine.Database, error) {
	if s.db == nil {
		if err := s.Open(nil); err != nil {
			return nil, err
		}
	}
	return s.db, nil
}

// Handle processes req, emitting its responses in order. A failing request
// is answered with an error response; only a failure to emit is returned.
func (s *State) Handle(req *Request, emit Emit) error {
	Logger().Debug("request", zap.ByteString("id", req.ID), zap.String("action", string(req.Action)))
	err := s.dispatch(req, func(resp *Response) error {
		if err := emit(resp); err != nil {
			return &emitError{err: err}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var ee *emitError
	if errors.As(err, &ee) {
		return ee.err
	}
	msg := err.Error()
	if msg == "" {
		msg = "worker: unknown error"
	}
	Logger().Warn("request failed", zap.ByteString("id", req.ID), zap.String("action", string(req.Action)), zap.Error(err))
	return emit(&Response{ID: req.ID, Action: req.Action, Error: msg})
}

func (s *State) dispatch(req *Request, emit Emit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: panic: %v", r)
		}
	}()
	if req.err != nil {
		return req.err
	}
	reply := func(resp Response) error {
		resp.ID, resp.Action, resp.Config = req.ID, req.Action, req.Config
		return emit(&resp)
	}
	switch req.Action {
	case ActionOpen:
		if err := s.Open(req.Buffer); err != nil {
			return err
		}
		return reply(Response{})
	case ActionExec:
		if req.SQL == "" {
			return ErrMissingSQL
		}
		db, err := s.ensureOpen()
		if err != nil {
			return err
		}
		results, err := db.Exec(req.SQL, req.Params.Params)
		if err != nil {
			return err
		}
		return reply(Response{Results: results})
	case ActionEach:
		if req.SQL == "" {
			return ErrMissingSQL
		}
		db, err := s.ensureOpen()
		if err != nil {
			return err
		}
		return db.Each(req.SQL, req.Params.Params,
			func(row map[string]value.Value) error { return reply(Response{Row: row}) },
			func() error { return reply(Response{Finished: true}) })
	case ActionExport:
		if s.db == nil {
			return engine.ErrDatabaseClosed
		}
		data, err := s.db.Export()
		if err != nil {
			return err
		}
		return reply(Response{Buffer: data})
	case ActionClose:
		if err := s.Close(); err != nil {
			return err
		}
		return reply(Response{})
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
}
