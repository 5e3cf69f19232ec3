/*
Package server is the HTTP surface of the gateway: bearer-token identity,
JSON request decoding, and error rendering around the orchestrator.

# Middleware

## Request ID (requestid.go)

RequestIDMiddleware keeps a well-formed X-Request-ID from the caller or
generates a UUID, and adds it to:
  - The request context (accessible via GetRequestID)
  - The X-Request-ID response header
  - The "request_id" field of error bodies

## Logging (logging.go)

LoggingMiddleware writes one structured line per request when it completes
(status, bytes, duration). Handlers attach fields with AddLogField and
AddError; the owner, modality and record id end up on the same line.

## Authentication (authmiddleware.go)

AuthMiddleware turns the bearer JWT into a domain.Identity:
  - Extracts the token from the Authorization header
  - Verifies it with an IdentityResolver (auth.Authenticator in production)
  - Stores the identity in the request context (GetIdentity)

## Timeout (timeout.go)

TimeoutMiddleware bounds the whole request. Provider attempts have their own
per-attempt deadlines inside the gateway.

# Middleware Chain Order

 1. RequestIDMiddleware
 2. LoggingMiddleware
 3. Recoverer
 4. OTel instrumentation
 5. AuthMiddleware and TimeoutMiddleware, on /v1 only

# Routes

	GET    /healthz
	GET    /artifacts/*                   signed link, bolt backend only
	GET    /v1/voices
	POST   /v1/chat | /v1/images | /v1/speech | /v1/music | /v1/ocr
	GET    /v1/history/{modality}
	DELETE /v1/history/{modality}/{id}
*/
package server
