package analysis

import (
	"fmt"
	"log"

	"gobiodiv/domain/stats"
)

type diagKey struct {
	category stats.DiagnosticCategory
	scale    stats.Scale
}

// diagnostics collects advisories for one run. Each category and scale is
// reported and logged once, however many rows it affects.
type diagnostics struct {
	items []stats.Diagnostic
	seen  map[diagKey]int
}

func newDiagnostics() *diagnostics {
	return &diagnostics{seen: make(map[diagKey]int)}
}

func (d *diagnostics) add(category stats.DiagnosticCategory, scale stats.Scale, count int, format string, args ...interface{}) {
	if count <= 0 {
		return
	}
	key := diagKey{category, scale}
	if i, ok := d.seen[key]; ok {
		d.items[i].Count += count
		return
	}

	msg := fmt.Sprintf(format, args...)
	log.Printf("[Engine] %s (%s scale): %s", category, scale, msg)
	d.seen[key] = len(d.items)
	d.items = append(d.items, stats.Diagnostic{
		Category: category,
		Scale:    scale,
		Count:    count,
		Message:  msg,
	})
}

func (d *diagnostics) list() []stats.Diagnostic {
	return append([]stats.Diagnostic(nil), d.items...)
}
