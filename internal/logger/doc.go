// Package logger wraps zap with:
//   - a global sugared logger using a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and an atomic level shared by every logger,
//   - context-first convenience functions (Info, InfoKV, Warnf, ErrorKV, ...).
//
// Services receive a context and log through it, so names and fields
// attached upstream follow the call chain.
package logger
