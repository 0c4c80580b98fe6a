// Package log provides a small structured logging facade used throughout
// mirage. The [Logger] interface decouples components from the concrete
// logging library; [ZerologAdapter] is the production implementation and
// [NoopLogger] is the silent default.
package log
