// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package governor

const (
	// rate limit bookkeeping headers, reset is in epoch milliseconds
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"

	// seconds until the window resets, only on rejected requests
	HeaderRetryAfter = "Retry-After"

	HeaderRequestID = "X-Request-Id"

	// longest client supplied request id echoed back
	maxRequestIDLen = 128

	// grpc metadata keys are always lowercase
	grpcRateLimitLimit     = "x-ratelimit-limit"
	grpcRateLimitRemaining = "x-ratelimit-remaining"
	grpcRateLimitReset     = "x-ratelimit-reset"
	grpcRetryAfter         = "retry-after"
	grpcRequestID          = "x-request-id"

	// prefixes of rate limit identifiers for callers without tenant
	operatorPrefix  = "operator:"
	subjectPrefix   = "subject:"
	anonymousPrefix = "anon:"
)

// short messages carried by error responses, detail stays in the logs
const (
	msgUnauthenticated = "authentication required"
	msgTenantRequired  = "tenant context required"
	msgForbidden       = "access denied"
	msgRateLimited     = "rate limit exceeded"
	msgInternal        = "internal error"
)
