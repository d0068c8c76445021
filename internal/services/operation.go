package services

import (
	"context"
	"encoding/json"
)

// Operation is one named request/response capability with a closed argument set.
type Operation struct {
	Name        string
	Description string
	// Schema is the JSON Schema of the arguments object.
	Schema json.RawMessage
	// Session marks operations that read or mutate session state.
	Session bool

	invoke func(ctx context.Context, s *DiagnosticsService, args json.RawMessage) (any, error)
}

// define binds a typed handler to strict decoding of Req.
func define[Req any](name, description, schema string, stateful bool, handle func(s *DiagnosticsService, ctx context.Context, req *Req) (any, error)) *Operation {
	return &Operation{
		Name:        name,
		Description: description,
		Schema:      json.RawMessage(schema),
		Session:     stateful,
		invoke: func(ctx context.Context, s *DiagnosticsService, args json.RawMessage) (any, error) {
			req := new(Req)
			if err := decodeRequest(name, args, req); err != nil {
				return nil, err
			}
			return handle(s, ctx, req)
		},
	}
}
