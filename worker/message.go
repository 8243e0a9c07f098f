package worker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/viant/sqlite-worker/engine"
	"github.com/viant/sqlite-worker/value"
)

// Action names a request type.
type Action string

const (
	ActionOpen   Action = "open"
	ActionExec   Action = "exec"
	ActionEach   Action = "each"
	ActionExport Action = "export"
	ActionClose  Action = "close"
)

// Config holds per-request rendering options.
type Config struct {
	// UseBigInt renders integer results as decimal strings.
	UseBigInt bool `json:"useBigInt,omitempty"`
}

func (c Config) jsonOptions() value.JSONOptions {
	return value.JSONOptions{IntegersAsStrings: c.UseBigInt}
}

// Params is the wire form of bind parameters. A JSON array binds
// positionally, a JSON object binds by name and null binds nothing.
type Params struct {
	engine.Params
}

func (p *Params) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		p.Params = engine.Params{}
		return nil
	}
	switch data[0] {
	case '[':
		var values []value.Value
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = v
		}
		p.Params = engine.Args(args...)
	case '{':
		var values map[string]value.Value
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		names := make(map[string]any, len(values))
		for k, v := range values {
			names[k] = v
		}
		p.Params = engine.Named(names)
	default:
		return fmt.Errorf("worker: params must be an array or an object, got %s", data)
	}
	return nil
}

func (p Params) MarshalJSON() ([]byte, error) {
	switch {
	case p.Args != nil:
		values, err := value.FromAll(p.Args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(values)
	case p.Names != nil:
		values := make(map[string]value.Value, len(p.Names))
		for k, raw := range p.Names {
			v, err := value.From(raw)
			if err != nil {
				return nil, err
			}
			values[k] = v
		}
		return json.Marshal(values)
	}
	return []byte("null"), nil
}

// Request is one inbound message. ID is echoed verbatim on every response
// to the request.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Action Action          `json:"action"`
	Buffer []byte          `json:"buffer,omitempty"`
	SQL    string          `json:"sql,omitempty"`
	Params Params          `json:"params,omitempty"`
	Config Config          `json:"config,omitempty"`

	err error
}

// DecodeRequest parses one JSON request. It never fails: a malformed
// message yields a Request that is answered with an error response,
// carrying the id when one could be recovered.
func DecodeRequest(data []byte) *Request {
	req := &Request{}
	if err := json.Unmarshal(data, req); err != nil {
		var envelope struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.Unmarshal(data, &envelope)
		return &Request{ID: envelope.ID, err: fmt.Errorf("worker: invalid request: %w", err)}
	}
	return req
}

// Response is one outbound message. Which fields are rendered depends on
// the Action it answers; a non-empty Error always renders as {id, error}.
type Response struct {
	ID       json.RawMessage
	Action   Action
	Buffer   []byte
	Results  []engine.ResultSet
	Row      map[string]value.Value
	Finished bool
	Error    string
	Config   Config
}

type wireResultSet struct {
	Columns []string            `json:"columns"`
	Values  [][]json.RawMessage `json:"values"`
}

type wireResponse struct {
	ID       json.RawMessage            `json:"id,omitempty"`
	Ready    bool                       `json:"ready,omitempty"`
	Buffer   *[]byte                    `json:"buffer,omitempty"`
	Results  *[]wireResultSet           `json:"results,omitempty"`
	Row      map[string]json.RawMessage `json:"row,omitempty"`
	Finished *bool                      `json:"finished,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	out := wireResponse{ID: r.ID}
	if r.Error != "" {
		out.Error = r.Error
		return json.Marshal(out)
	}
	opts := r.Config.jsonOptions()
	switch r.Action {
	case ActionOpen:
		out.Ready = true
	case ActionExport:
		buf := r.Buffer
		if buf == nil {
			buf = []byte{}
		}
		out.Buffer = &buf
	case ActionExec:
		results := make([]wireResultSet, len(r.Results))
		for i, rs := range r.Results {
			values := make([][]json.RawMessage, len(rs.Values))
			for j, row := range rs.Values {
				cells, err := rawValues(row, opts)
				if err != nil {
					return nil, err
				}
				values[j] = cells
			}
			results[i] = wireResultSet{Columns: rs.Columns, Values: values}
		}
		out.Results = &results
	case ActionEach:
		finished := r.Finished
		out.Finished = &finished
		if !finished {
			out.Row = make(map[string]json.RawMessage, len(r.Row))
			for name, v := range r.Row {
				raw, err := v.AppendJSON(nil, opts)
				if err != nil {
					return nil, err
				}
				out.Row[name] = raw
			}
		}
	}
	return json.Marshal(out)
}

func rawValues(row []value.Value, opts value.JSONOptions) ([]json.RawMessage, error) {
	cells := make([]json.RawMessage, len(row))
	for i, v := range row {
		raw, err := v.AppendJSON(nil, opts)
		if err != nil {
			return nil, err
		}
		cells[i] = raw
	}
	return cells, nil
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
