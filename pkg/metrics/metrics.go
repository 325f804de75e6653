package metrics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/types"
	"github.com/lambertxiao/go-formstream/pkg/utils"
)

// label names carried by every metric, left out of the flattened names
const (
	LabelCommand = "command"
	LabelTarget  = "target"
)

var (
	start = time.Now()
	cpu   = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cpu_usage",
		Help: "Accumulated CPU usage in seconds.",
	}, func() float64 {
		return utils.GetProcessUsage().CPUSeconds
	})

	memory = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "memory",
		Help: "Used memory in bytes.",
	}, func() float64 {
		return float64(utils.GetProcessUsage().RSS)
	})

	uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "uptime",
		Help: "Total running time in seconds.",
	}, func() float64 {
		return time.Since(start).Seconds()
	})
)

func InitMetricRegistry(command, target string) (*prometheus.Registry, prometheus.Registerer) {
	registry := prometheus.NewRegistry()
	registerer := prometheus.WrapRegistererWithPrefix(
		types.DEFAULT_STATS_PREFIX,
		prometheus.WrapRegistererWith(prometheus.Labels{LabelCommand: command, LabelTarget: target}, registry))

	registerer.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registerer.MustRegister(collectors.NewGoCollector())
	return registry, registerer
}

func RegistMetrics(registerer prometheus.Registerer) {
	if registerer == nil {
		return
	}
	registerer.MustRegister(cpu)
	registerer.MustRegister(memory)
	registerer.MustRegister(uptime)
}

// Collect flattens the registry into "name value" lines. Label values other
// than command and target are appended to the name, histograms become
// name_total and name_sum.
func Collect(registry *prometheus.Registry) []byte {
	if registry == nil {
		return []byte("")
	}
	mfs, err := registry.Gather()
	if err != nil {
		logg.Dlog.Errorf("collect metrics: %s", err)
		return nil
	}
	w := bytes.NewBuffer(nil)
	format := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	for _, mf := range mfs {
		for _, m := range mf.Metric {
			name := mf.GetName()
			for _, l := range m.Label {
				if l.GetName() != LabelCommand && l.GetName() != LabelTarget {
					name += "_" + l.GetValue()
				}
			}
			switch mf.GetType() {
			case io_prometheus_client.MetricType_GAUGE:
				_, _ = fmt.Fprintf(w, "%s %s\n", name, format(m.GetGauge().GetValue()))
			case io_prometheus_client.MetricType_COUNTER:
				_, _ = fmt.Fprintf(w, "%s %s\n", name, format(m.GetCounter().GetValue()))
			case io_prometheus_client.MetricType_HISTOGRAM:
				_, _ = fmt.Fprintf(w, "%s_total %d\n", name, m.GetHistogram().GetSampleCount())
				_, _ = fmt.Fprintf(w, "%s_sum %s\n", name, format(m.GetHistogram().GetSampleSum()))
			case io_prometheus_client.MetricType_SUMMARY:
			}
		}
	}
	return w.Bytes()
}

// WriteStatsFile replaces path with a fresh Collect snapshot.
func WriteStatsFile(registry *prometheus.Registry, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(Collect(registry)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Parse reads Collect output back into a map.
func Parse(data []byte) map[string]float64 {
	stats := make(map[string]float64)
	for _, line := range bytes.Split(data, []byte("\n")) {
		fields := bytes.Fields(line)
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(string(fields[1]), 64)
		if err != nil {
			logg.Dlog.Warnf("parse %s: %s", fields[1], err)
			continue
		}
		stats[string(fields[0])] = v
	}
	return stats
}
