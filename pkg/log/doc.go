// Package log provides the structured Logger used across filsign.
//
// Loggers are passed explicitly or through a context.Context:
//
//	lg := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelDebug})
//	ctx = log.SetContextLogger(ctx, lg.WithName("executor"))
//	log.FromContext(ctx).Info("message pushed", "cid", c)
//
// FromContext never returns nil. If the context carries an OpenTelemetry
// span, entries are also recorded as span events.
package log
