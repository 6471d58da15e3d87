package grpc

import (
	"context"
	"errors"
	"math"

	"connectrpc.com/connect"
	"github.com/astro-web3/codeveros-auth/internal/app/token"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	errInvalidRequestBody = errors.New("invalid request body")
	errMissingToken       = errors.New("missing token information")
	errSignFailed         = errors.New("failed to sign token")
)

// TokenServiceHandler exposes token signing and verification over Connect. Messages are
// google.protobuf.Struct so the JSON shapes match the HTTP endpoints.
type TokenServiceHandler struct {
	appService token.Service
}

func NewTokenServiceHandler(appService token.Service) *TokenServiceHandler {
	return &TokenServiceHandler{
		appService: appService,
	}
}

func (h *TokenServiceHandler) SignToken(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	ctx, span := tracer.Start(ctx, "transport.grpc.SignToken")
	defer span.End()

	payload, ok := req.Msg.GetFields()["payload"]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errInvalidRequestBody)
	}

	signed, err := h.appService.Sign(ctx, payload.AsInterface())
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "failed to sign token", logger.Error(err))
		return nil, connect.NewError(connect.CodeInternal, errSignFailed)
	}

	return newResponse(map[string]any{"token": signed})
}

func (h *TokenServiceHandler) VerifyToken(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	ctx, span := tracer.Start(ctx, "transport.grpc.VerifyToken")
	defer span.End()

	raw, ok := req.Msg.GetFields()["token"]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingToken)
	}

	if isFalsy(raw) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingToken)
	}
	tokenString, isString := raw.GetKind().(*structpb.Value_StringValue)
	if !isString {
		span.SetAttributes(attribute.Bool("token.valid", false))
		return newResponse(map[string]any{"valid": false})
	}

	claims, err := h.appService.Verify(ctx, tokenString.StringValue)
	span.SetAttributes(attribute.Bool("token.valid", err == nil))
	if err != nil {
		return newResponse(map[string]any{"valid": false})
	}

	return newResponse(map[string]any{"valid": true, "payload": map[string]any(claims)})
}

// isFalsy treats null, false, 0 and "" as an absent token, matching the HTTP endpoint.
func isFalsy(v *structpb.Value) bool {
	switch kind := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return true
	case *structpb.Value_BoolValue:
		return !kind.BoolValue
	case *structpb.Value_NumberValue:
		return kind.NumberValue == 0 || math.IsNaN(kind.NumberValue)
	case *structpb.Value_StringValue:
		return kind.StringValue == ""
	default:
		return false
	}
}

func newResponse(fields map[string]any) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}
