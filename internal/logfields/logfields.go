package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyBuildKind  = "build_kind"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyChange     = "change"
	KeyRemoved    = "removed"
	KeyDocuments  = "documents"
	KeyTemplate   = "template"
	KeyClients    = "clients"
	KeyURL        = "url"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func BuildKind(k string) slog.Attr    { return slog.String(KeyBuildKind, k) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Change(c string) slog.Attr       { return slog.String(KeyChange, c) }
func Removed(r bool) slog.Attr        { return slog.Bool(KeyRemoved, r) }
func Documents(n int) slog.Attr       { return slog.Int(KeyDocuments, n) }
func Template(name string) slog.Attr  { return slog.String(KeyTemplate, name) }
func Clients(n int) slog.Attr         { return slog.Int(KeyClients, n) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }

// Since reports the elapsed milliseconds from start.
func Since(start time.Time) slog.Attr {
	return DurationMS(float64(time.Since(start).Microseconds()) / 1000.0)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
