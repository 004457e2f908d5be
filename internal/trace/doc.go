// Package trace records what weft is doing while it rewrites worlds.
//
// Events come in four scopes: the driver (a command or a stress run), passes
// and cleanup, fixpoint iterations, and single rewrites. The level decides
// how deep a tracer looks:
//
//	error   driver spans, whose end carries a failure
//	phase   plus pass spans
//	detail  plus iterations
//	debug   plus one point per rewrite
//
// Events are either streamed (text, NDJSON or a Chrome trace, chosen from
// the output extension unless set explicitly) or kept in a ring whose
// history the CLI prints when a stress run fails. A Heartbeat adds periodic
// liveness events carrying a progress report.
//
// The tracer travels in the context:
//
//	ctx = trace.WithTracer(ctx, tr)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "pipeline", trace.CurrentSpan(ctx).SpanID)
//	defer span.End("")
package trace
