package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/metrics"
)

const (
	BLACK = 30 + iota
	RED
	GREEN
	YELLOW
	BLUE
	MAGENTA
	CYAN
	WHITE
	DEFAULT = "00"
)

const (
	RESET_SEQ      = "\033[0m"
	COLOR_SEQ      = "\033[1;" // %dm
	COLOR_DARK_SEQ = "\033[0;" // %dm
	UNDERLINE_SEQ  = "\033[4m"
)

const statsSchema = "uhog"

type statsWatcher struct {
	out      io.Writer
	colorful bool
	interval uint
	header   string
	sections []*section
}

func newStatsWatcher(out *os.File, schema string) (*statsWatcher, error) {
	w := &statsWatcher{
		out:      out,
		colorful: SupportANSIColor(out.Fd()),
		interval: 1,
	}
	if err := w.buildSchema(schema); err != nil {
		return nil, err
	}
	w.formatHeader()
	return w, nil
}

func (w *statsWatcher) colorize(msg string, color int, dark bool, underline bool) string {
	if !w.colorful || msg == "" || msg == " " {
		return msg
	}
	var cseq, useq string
	if dark {
		cseq = COLOR_DARK_SEQ
	} else {
		cseq = COLOR_SEQ
	}
	if underline {
		useq = UNDERLINE_SEQ
	}
	return fmt.Sprintf("%s%s%dm%s%s", useq, cseq, color, msg, RESET_SEQ)
}

const (
	metricByte = 1 << iota
	metricCount
	metricTime
	metricCPU
	metricGauge
	metricCounter
	metricHist
)

type item struct {
	nick string // must be size <= 9
	name string
	typ  uint8
}

type section struct {
	name  string
	items []*item
}

func (w *statsWatcher) buildSchema(schema string) error {
	for _, r := range schema {
		var s section
		switch r {
		case 'u':
			s.name = "process"
			s.items = append(s.items, &item{"cpu", "formstream_cpu_usage", metricCPU | metricCounter})
			s.items = append(s.items, &item{"mem", "formstream_memory", metricGauge})
		case 'h':
			s.name = "http"
			s.items = append(s.items, &item{"sent", "formstream_http_request_data_bytes_POST", metricByte | metricCounter})
			s.items = append(s.items, &item{"post", "formstream_http_request_durations_histogram_seconds_POST", metricTime | metricHist})
			s.items = append(s.items, &item{"put", "formstream_http_request_durations_histogram_seconds_PUT", metricTime | metricHist})
		case 'o':
			s.name = "object storage"
			s.items = append(s.items, &item{"write", "formstream_object_request_data_bytes_WRITE", metricByte | metricCounter})
			s.items = append(s.items, &item{"write_req", "formstream_object_request_durations_histogram_seconds_WRITE", metricTime | metricHist})
			s.items = append(s.items, &item{"head_req", "formstream_object_request_durations_histogram_seconds_HEAD", metricTime | metricHist})
		case 'g':
			s.name = "go"
			s.items = append(s.items, &item{"alloc", "formstream_go_memstats_alloc_bytes", metricGauge})
			s.items = append(s.items, &item{"sys", "formstream_go_memstats_sys_bytes", metricGauge})
		default:
			fmt.Fprintf(w.out, "Warning: no item defined for %c\n", r)
			continue
		}
		w.sections = append(w.sections, &s)
	}
	if len(w.sections) == 0 {
		return errors.Errorf("no section to watch in schema %q", schema)
	}
	return nil
}

func padding(name string, width int, char byte) string {
	pad := width - len(name)
	if pad < 0 {
		pad = 0
		name = name[0:width]
	}
	prefix := (pad + 1) / 2
	buf := make([]byte, width)
	for i := 0; i < prefix; i++ {
		buf[i] = char
	}
	copy(buf[prefix:], name)
	for i := prefix + len(name); i < width; i++ {
		buf[i] = char
	}
	return string(buf)
}

func (w *statsWatcher) formatHeader() {
	headers := make([]string, len(w.sections))
	subHeaders := make([]string, len(w.sections))
	for i, s := range w.sections {
		subs := make([]string, 0, len(s.items))
		for _, it := range s.items {
			subs = append(subs, w.colorize(padding(it.nick, 9, ' '), BLUE, false, true))

			if it.typ&metricHist != 0 {
				if it.typ&metricTime != 0 {
					subs = append(subs, w.colorize("  lat_ms ", BLUE, false, true))
				} else {
					subs = append(subs, w.colorize("    avg  ", BLUE, false, true))
				}
			}
		}
		width := 10*len(subs) - 1
		subHeaders[i] = strings.Join(subs, " ")
		headers[i] = w.colorize(padding(s.name, width, '-'), BLUE, false, false)
	}

	blueLine := w.colorize("|", BLUE, false, false)
	w.header = fmt.Sprintf("%s\n%s", strings.Join(headers, blueLine),
		strings.Join(subHeaders, blueLine))
}

func (w *statsWatcher) formatU64(v float64, dark, isByte bool) string {
	if v <= 0.0 {
		return w.colorize("       0 ", BLACK, false, false)
	}
	var vi uint64
	var unit string
	var color int
	switch vi = uint64(v); {
	case vi < 10000:
		if isByte {
			unit = "B"
		} else {
			unit = " "
		}
		color = RED
	case vi>>10 < 10000:
		vi, unit, color = vi>>10, "K", YELLOW
	case vi>>20 < 10000:
		vi, unit, color = vi>>20, "M", GREEN
	case vi>>30 < 10000:
		vi, unit, color = vi>>30, "G", BLUE
	case vi>>40 < 10000:
		vi, unit, color = vi>>40, "T", MAGENTA
	default:
		vi, unit, color = vi>>50, "P", CYAN
	}
	return w.colorize(fmt.Sprintf("%8d", vi), color, dark, false) +
		w.colorize(unit, BLACK, false, false)
}

func (w *statsWatcher) formatTime(v float64, dark bool) string {
	var ret string
	var color int
	switch {
	case v <= 0.0:
		ret, color, dark = "       0 ", BLACK, false
	case v < 10.0:
		ret, color = fmt.Sprintf("%8.2f ", v), GREEN
	case v < 100.0:
		ret, color = fmt.Sprintf("%8.1f ", v), YELLOW
	case v < 10000.0:
		ret, color = fmt.Sprintf("%8.f ", v), RED
	default:
		ret, color = fmt.Sprintf("%8.e", v), MAGENTA
	}
	return w.colorize(ret, color, dark, false)
}

func (w *statsWatcher) formatCPU(v float64, dark bool) string {
	var ret string
	var color int
	switch v = v * 100.0; {
	case v <= 0.0:
		ret, color = "     0.0", WHITE
	case v < 30.0:
		ret, color = fmt.Sprintf("%8.1f", v), GREEN
	case v < 100.0:
		ret, color = fmt.Sprintf("%8.1f", v), YELLOW
	default:
		ret, color = fmt.Sprintf("%8.f", v), RED
	}
	return w.colorize(ret, color, dark, false) +
		w.colorize("%", BLACK, false, false)
}

// formatDiff renders one line. Counters and histograms show the change
// between left and right, divided by the interval unless dark.
func (w *statsWatcher) formatDiff(left, right map[string]float64, dark bool) string {
	values := make([]string, len(w.sections))
	for i, s := range w.sections {
		vals := make([]string, 0, len(s.items))
		for _, it := range s.items {
			switch it.typ & 0xF0 {
			case metricGauge:
				vals = append(vals, w.formatU64(right[it.name], dark, true))
			case metricCounter:
				v := (right[it.name] - left[it.name])
				if !dark {
					v /= float64(w.interval)
				}
				if it.typ&metricByte != 0 {
					vals = append(vals, w.formatU64(v, dark, true))
				} else if it.typ&metricCPU != 0 {
					vals = append(vals, w.formatCPU(v, dark))
				} else {
					vals = append(vals, w.formatU64(v, dark, false))
				}
			case metricHist:
				count := right[it.name+"_total"] - left[it.name+"_total"]
				var avg float64
				if count > 0.0 {
					cost := right[it.name+"_sum"] - left[it.name+"_sum"]
					if it.typ&metricTime != 0 {
						cost *= 1000 // s -> ms
					}
					avg = cost / count
				}
				if !dark {
					count /= float64(w.interval)
				}
				vals = append(vals, w.formatU64(count, dark, false), w.formatTime(avg, dark))
			}
		}
		values[i] = strings.Join(vals, " ")
	}
	return strings.Join(values, w.colorize("|", BLUE, false, false))
}

func (w *statsWatcher) printDiff(left, right map[string]float64, dark bool) {
	if !w.colorful && dark {
		return
	}
	line := w.formatDiff(left, right, dark)
	if w.colorful && dark {
		fmt.Fprintf(w.out, "%s\r", line)
	} else {
		fmt.Fprintf(w.out, "%s\n", line)
	}
}

func readStats(path string) (map[string]float64, error) {
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return metrics.Parse(d), nil
}

// ShowStats prints the stats file once a second until it goes away.
func ShowStats(path string) error {
	watcher, err := newStatsWatcher(os.Stdout, statsSchema)
	if err != nil {
		return err
	}

	var tick uint
	var start, last, current map[string]float64
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	current, err = readStats(path)
	if err != nil {
		return err
	}
	start = current
	last = current

	for {
		if tick%(watcher.interval*30) == 0 {
			fmt.Fprintln(watcher.out, watcher.header)
		}
		if tick%watcher.interval == 0 {
			watcher.printDiff(start, current, false)
			start = current
		} else {
			watcher.printDiff(last, current, true)
		}
		last = current
		tick++
		<-ticker.C
		current, err = readStats(path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// PrintSnapshot prints the totals collected so far to stderr.
func PrintSnapshot(registry *prometheus.Registry) {
	watcher, err := newStatsWatcher(os.Stderr, statsSchema)
	if err != nil {
		logg.Dlog.Warnf("print stats: %v", err)
		return
	}
	fmt.Fprintln(watcher.out, watcher.header)
	watcher.printDiff(nil, metrics.Parse(metrics.Collect(registry)), false)
}

// startStatsWriter rewrites path every second until the returned func is
// called, which also writes a last snapshot.
func startStatsWriter(ctx context.Context, registry *prometheus.Registry, path string) func() {
	if path == "" {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			if err := metrics.WriteStatsFile(registry, path); err != nil {
				logg.Dlog.Warnf("write stats file %s: %v", path, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		cancel()
		<-done
		if err := metrics.WriteStatsFile(registry, path); err != nil {
			logg.Dlog.Warnf("write stats file %s: %v", path, err)
		}
	}
}

func SupportANSIColor(fd uintptr) bool {
	return isatty.IsTerminal(fd) && runtime.GOOS != "windows"
}
