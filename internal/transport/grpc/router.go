package grpc

import (
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	TokenServiceName = "codeveros.auth.v1.TokenService"

	SignTokenProcedure   = "/" + TokenServiceName + "/SignToken"
	VerifyTokenProcedure = "/" + TokenServiceName + "/VerifyToken"
)

// NewRouter returns the path prefix to mount and the Connect handler serving both procedures.
func NewRouter(handler *TokenServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithInterceptors(
		recoveryInterceptor(),
		loggingInterceptor(),
	)}, opts...)

	mux := http.NewServeMux()
	mux.Handle(SignTokenProcedure, connect.NewUnaryHandler[structpb.Struct, structpb.Struct](
		SignTokenProcedure, handler.SignToken, opts...,
	))
	mux.Handle(VerifyTokenProcedure, connect.NewUnaryHandler[structpb.Struct, structpb.Struct](
		VerifyTokenProcedure, handler.VerifyToken, opts...,
	))

	return "/" + TokenServiceName + "/", mux
}
