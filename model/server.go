// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package model

import (
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
)

type ServerContext struct {
	// GRPC server handle, over which the grpc services are hosted,
	// the service providers plumb their handlers on it, every call
	// passes through the governance interceptor
	Server *grpc.Server

	// HTTP router, used to register the http routes served by the
	// process, each route is expected to be wrapped by the governor
	// before registration
	Router chi.Router
}
