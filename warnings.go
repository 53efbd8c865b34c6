package cellar

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// warningHandler collects Warn and Error records as Warnings and passes
// every record on to the wrapped handler. Codecs may log from several
// goroutines, so the sink is shared and locked.
type warningHandler struct {
	next   slog.Handler
	attrs  []slog.Attr
	prefix string
	sink   *warningSink
}

type warningSink struct {
	mu   sync.Mutex
	list []Warning
}

func newWarningHandler(next slog.Handler) *warningHandler {
	return &warningHandler{next: next, sink: &warningSink{}}
}

func (h *warningHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn || h.next.Enabled(ctx, level)
}

func (h *warningHandler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= slog.LevelWarn {
		w := Warning{Message: rec.Message, Attrs: make(map[string]string)}
		for _, a := range h.attrs {
			w.Attrs[a.Key] = a.Value.String()
		}
		rec.Attrs(func(a slog.Attr) bool {
			w.Attrs[h.prefix+a.Key] = a.Value.String()
			return true
		})
		h.sink.mu.Lock()
		h.sink.list = append(h.sink.list, w)
		h.sink.mu.Unlock()
	}
	if !h.next.Enabled(ctx, rec.Level) {
		return nil
	}
	return h.next.Handle(ctx, rec)
}

func (h *warningHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := *h
	n.next = h.next.WithAttrs(attrs)
	n.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		n.attrs = append(n.attrs, a)
	}
	return &n
}

func (h *warningHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	n := *h
	n.next = h.next.WithGroup(name)
	n.prefix = h.prefix + name + "."
	return &n
}

func (h *warningHandler) warnings() []Warning {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return append([]Warning(nil), h.sink.list...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
