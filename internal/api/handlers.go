package api

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-yield/internal/utils"
)

// ErrorDomain tags ErrorInfo details attached to failed calls.
const ErrorDomain = "yield.mirador"

func invokeStruct(ctx context.Context, invoker Invoker, operation string, in *structpb.Struct) (*structpb.Struct, error) {
	args := []byte("{}")
	if in != nil {
		data, err := protojson.Marshal(in)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "encode arguments: %v", err)
		}
		args = data
	}

	result, err := invoker.Invoke(ctx, operation, args)
	if err != nil {
		return nil, ToStatus(err)
	}
	return toStruct(result)
}

func toStruct(result any) (*structpb.Struct, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "convert result: %v", err)
	}
	return out, nil
}

// CodeOf maps an error kind to a gRPC status code.
func CodeOf(err error) codes.Code {
	switch {
	case errors.Is(err, utils.ErrInvalidInput), errors.Is(err, utils.ErrDivisionUndefined):
		return codes.InvalidArgument
	case errors.Is(err, utils.ErrInsufficientData), errors.Is(err, utils.ErrInvalidState):
		return codes.FailedPrecondition
	case errors.Is(err, utils.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// ToStatus converts err into a gRPC status error. The error kind travels as the
// ErrorInfo reason so clients can tell InvalidInput from DivisionUndefined.
func ToStatus(err error) error {
	st := status.New(CodeOf(err), utils.Message(err))
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: utils.KindOf(err),
		Domain: ErrorDomain,
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// KindFromStatus recovers the error kind from a status produced by ToStatus.
func KindFromStatus(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return utils.KindInternal
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}
	return utils.KindInternal
}
