package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/neilotoole/jsoncolor"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/briangreenhill/alertsua/location"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(f string) error {
	switch f {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q, want text, json or yaml", f)
}

// render writes v in the requested format. JSON uses jsonV so collections
// keep their API shape; YAML uses the plain value.
func render(w io.Writer, format string, v, jsonV any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := jsoncolor.NewEncoder(w)
		enc.SetIndent("", "  ")
		if isTerminal(w) {
			enc.SetColors(jsoncolor.DefaultColors())
		}
		return enc.Encode(jsonV)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	st, err := f.Stat()
	return err == nil && st.Mode()&os.ModeCharDevice != 0
}

func locationTable(r location.Resolver) []location.Location {
	if l, ok := r.(interface{ All() []location.Location }); ok {
		return l.All()
	}
	return nil
}

// printStats writes the cache counters gathered from reg, one line per series
func printStats(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
