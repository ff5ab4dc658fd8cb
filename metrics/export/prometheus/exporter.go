package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/LeeSeungPhill/user-api-svc/metrics/export/internaldefs"
)

// MetricsSource is satisfied by *usersvc.Engine.
type MetricsSource interface {
	MetricsSnapshot() usersvc.MetricsSnapshot
}

// PrometheusExporter renders engine metrics in Prometheus text format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter that reads from source.
func NewPrometheusExporter(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the rendered metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. Disabled metrics render as "".
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096 + len(snapshot.Histograms)*1024)

	for _, def := range internaldefs.CounterDefs {
		writeHeader(&b, def.Name, def.Help, "counter")
		writeSample(&b, def.Name, "", strconv.FormatUint(snapshot.Counters[def.ID], 10))
	}

	for _, def := range internaldefs.HistogramDefs {
		h, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		writeHistogram(&b, def, h)
	}

	return b.String()
}

func writeHistogram(b *strings.Builder, def internaldefs.HistogramDef, h usersvc.HistogramSnapshot) {
	writeHeader(b, def.Name, def.Help, "histogram")

	cumulative := internaldefs.Cumulative(h.Buckets)
	for i, le := range internaldefs.HistogramBounds {
		writeSample(b, def.Name+"_bucket", `le="`+le+`"`, strconv.FormatUint(cumulative[i], 10))
	}
	writeSample(b, def.Name+"_sum", "", strconv.FormatFloat(h.Sum.Seconds(), 'g', -1, 64))
	writeSample(b, def.Name+"_count", "", strconv.FormatUint(h.Count, 10))
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, labels, value string) {
	b.WriteString(name)
	if labels != "" {
		b.WriteByte('{')
		b.WriteString(labels)
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
