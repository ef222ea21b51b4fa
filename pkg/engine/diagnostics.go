package engine

// DiagnosticKind classifies an out-of-band engine diagnostic (§9).
type DiagnosticKind int

const (
	// DiagResourceNotFound reports a resolver lookup that found no
	// provider or no generator for a URI (§7.1).
	DiagResourceNotFound DiagnosticKind = iota
	// DiagResolveFailure reports a provider returning an error during
	// resolution.
	DiagResolveFailure
	// DiagDecodeFailure reports a generator's asynchronous initialization
	// failing (§7.2).
	DiagDecodeFailure
	// DiagBackendError reports a non-fatal backend error encountered
	// during a tick (§7.3).
	DiagBackendError
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagResourceNotFound:
		return "resource-not-found"
	case DiagResolveFailure:
		return "resolve-failure"
	case DiagDecodeFailure:
		return "decode-failure"
	case DiagBackendError:
		return "backend-error"
	default:
		return "unknown"
	}
}

// Diagnostic is an out-of-band notification for failures that occur
// inside fire-and-forget paths, where there is no waiting caller to
// return an error to (§9: "surface via an out-of-band diagnostic
// channel", resolving the source's silent-swallow behavior).
type Diagnostic struct {
	Kind DiagnosticKind
	URI  string
	Err  error
}

// Diagnostics returns a channel of out-of-band failure notifications.
// The channel is buffered (Config.DiagnosticBuffer); when full, the
// oldest pending diagnostic is dropped to keep emission non-blocking from
// the tick.
func (e *Engine) Diagnostics() <-chan Diagnostic {
	return e.diagnostics
}

func (e *Engine) emitDiagnostic(d Diagnostic) {
	select {
	case e.diagnostics <- d:
	default:
		select {
		case <-e.diagnostics:
			e.logger.Debug("audio diagnostic dropped: channel full")
		default:
		}
		select {
		case e.diagnostics <- d:
		default:
		}
	}
	e.logger.Warn("audio diagnostic", "kind", d.Kind.String(), "uri", d.URI, "err", d.Err)
}
