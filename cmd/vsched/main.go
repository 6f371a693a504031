package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Navidtor/vsched/pkg/report"
	"github.com/Navidtor/vsched/pkg/sched"
	"github.com/Navidtor/vsched/pkg/system/util"
	"github.com/Navidtor/vsched/pkg/transport"
	"github.com/Navidtor/vsched/pkg/wire"
)

type opts struct {
	cpus     int
	quantum  int64
	metadata bool
	endpoint string
	ticks    int
	pretty   bool
	ema      float64

	csvPath  string
	jsonPath string
	htmlPath string
}

type row struct {
	VTime       uint64   `json:"vtime"`
	Schedule    []string `json:"schedule"`
	Preemptions int      `json:"preemptions"`
	Migrations  int      `json:"migrations"`
	Utilization float64  `json:"utilization"`
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "vsched",
		Short: "A virtual-time fair-share CPU scheduler core",
		Long: `vsched drives a CFS-style fair-share scheduling engine over a stream of
event batches read from a duplex transport (stdio or a Unix domain socket) and
emits one scheduling decision per virtual-time tick.

Fairness is accounted through vruntime weighted by niceness; control groups
add relative shares, bandwidth quotas, and CPU masks on top.

* GitHub: https://github.com/Navidtor/vsched`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o)
		},
	}

	root.Flags().IntVar(&o.cpus, "cpus", 0, "number of logical CPUs (1..128, required)")
	root.Flags().Int64Var(&o.quantum, "quantum", 1, "ticks' worth of ms accounted per tick")
	root.Flags().BoolVar(&o.metadata, "metadata", true, "include preemption/migration/task-list metadata in each decision")
	root.Flags().StringVar(&o.endpoint, "endpoint", "-", "transport endpoint: '-' for stdio, else a unix socket path")
	root.Flags().IntVar(&o.ticks, "ticks", 0, "stop after this many ticks (0 = run until the transport closes)")
	root.Flags().BoolVar(&o.pretty, "pretty", true, "print a table of each tick's decision (suppressed in stdio mode)")
	root.Flags().Float64Var(&o.ema, "ema", 0.5, "EMA alpha for cgroup quota-pressure smoothing [0..1]")
	root.Flags().StringVar(&o.csvPath, "csv", "", "write per-tick rows to a CSV file")
	root.Flags().StringVar(&o.jsonPath, "json", "", "write per-tick rows to a JSON file")
	root.Flags().StringVar(&o.htmlPath, "html", "", "write a per-tick and summary report to an HTML file")

	if err := root.MarkFlagRequired("cpus"); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	if o.cpus < 1 || o.cpus > 128 {
		return fmt.Errorf("--cpus must be in [1,128], got %d", o.cpus)
	}
	if o.quantum <= 0 {
		return fmt.Errorf("--quantum must be > 0")
	}
	if o.ema < 0 || o.ema > 1 {
		return fmt.Errorf("--ema must be in [0,1]")
	}

	s, err := sched.NewFromConfig(sched.Config{CPUs: o.cpus, Quantum: o.quantum, Metadata: o.metadata})
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	duplex, err := transport.Open(o.endpoint)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer duplex.Close()

	reader := wire.NewReader(duplex)
	writer := wire.NewWriter(duplex)
	acc := report.New(o.cpus, o.ema)

	// stdio is also the wire channel: never print a pretty table over it.
	pretty := o.pretty && o.endpoint != "" && o.endpoint != "-"

	var tw *tabwriter.Writer
	if pretty {
		tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "VTIME\tSCHEDULE\tPREEMPT\tMIGRATE\tUTIL")
		fmt.Fprintln(tw, "-----\t--------\t-------\t-------\t----")
		tw.Flush()
	}

	csvW, csvF, err := openCSV(o.csvPath)
	if err != nil {
		return err
	}
	defer closeCSV(csvW, csvF)

	jsonF, err := openJSON(o.jsonPath)
	if err != nil {
		return err
	}
	defer closeJSON(jsonF)

	var rows []row

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticks := 0
	jsonWritten := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown requested")
			goto END
		default:
		}

		batch, err := reader.ReadBatch()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			slog.Warn("read batch", "err", err)
			break
		}

		events, decodeErrs := batch.Decode()
		for _, derr := range decodeErrs {
			if derr != nil {
				slog.Warn("decode event", "err", derr)
			}
		}

		dec, dispatchErrs := s.Tick(batch.VTime, events)
		for _, derr := range dispatchErrs {
			if derr != nil {
				slog.Warn("apply event", "err", derr)
			}
		}

		if err := writer.WriteDecision(wire.ToWire(dec, o.metadata)); err != nil {
			return fmt.Errorf("write decision: %w", err)
		}

		res := acc.Apply(dec, quotaPressures(s))
		ticks++

		if pretty {
			printTableRow(tw, dec, res)
		}

		r := row{VTime: dec.VTime, Schedule: dec.Schedule, Preemptions: dec.Preemptions, Migrations: dec.Migrations, Utilization: res.Utilization}
		rows = append(rows, r)

		if csvW != nil {
			_ = csvW.Write([]string{
				strconv.FormatUint(r.VTime, 10),
				strings.Join(r.Schedule, "|"),
				strconv.Itoa(r.Preemptions),
				strconv.Itoa(r.Migrations),
				util.FmtFloat(r.Utilization),
			})
			csvW.Flush()
		}

		if jsonF != nil {
			b, _ := json.MarshalIndent(r, "  ", "  ")
			if jsonWritten > 0 {
				_, _ = jsonF.WriteString(",\n")
			}
			_, _ = jsonF.Write(b)
			jsonWritten++
		}

		if o.ticks > 0 && ticks >= o.ticks {
			break
		}
	}

END:
	if pretty {
		tw.Flush()
	}

	if jsonF != nil {
		_, _ = jsonF.WriteString("\n]\n")
	}

	if o.htmlPath != "" {
		if err := writeHTMLReport(o.htmlPath, rows, acc.Averages()); err != nil {
			slog.Error("write html report", "err", err)
		}
	}

	tot := acc.Averages()
	fmt.Println()
	fmt.Printf("vsched run over %d ticks:\n", tot.Ticks)
	fmt.Printf("- avg utilization: %.3f\n", tot.AverageUtilization)
	fmt.Printf("- total preemptions: %d\n", tot.TotalPreemptions)
	fmt.Printf("- total migrations:  %d\n", tot.TotalMigrations)

	return nil
}

// quotaPressures snapshots UsedUs/QuotaUs for every quota-bearing
// cgroup, for the run reporter's smoothed pressure signal.
func quotaPressures(s *sched.Scheduler) []report.CgroupPressure {
	var out []report.CgroupPressure
	for _, cg := range s.Cgroups() {
		if cg.QuotaUs.IsUnlimited() {
			continue
		}
		out = append(out, report.CgroupPressure{
			ID:       cg.ID,
			Fraction: util.Clamp01(util.SafeDiv(float64(cg.UsedUs), float64(cg.QuotaUs))),
		})
	}
	return out
}

func printTableRow(tw *tabwriter.Writer, dec sched.Decision, res report.Result) {
	fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n",
		dec.VTime, strings.Join(dec.Schedule, ","), dec.Preemptions, dec.Migrations, util.FmtFloat(res.Utilization))
	tw.Flush()
}

func openCSV(path string) (*csv.Writer, *os.File, error) {
	if path == "" {
		return nil, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("csv: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csv: %w", err)
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"vtime", "schedule", "preemptions", "migrations", "utilization"})
	w.Flush()
	return w, f, nil
}

func closeCSV(w *csv.Writer, f *os.File) {
	if w != nil {
		w.Flush()
	}
	if f != nil {
		_ = f.Close()
	}
}

func openJSON(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	_, _ = f.WriteString("[\n")
	return f, nil
}

func closeJSON(f *os.File) {
	if f != nil {
		_ = f.Close()
	}
}

func writeHTMLReport(path string, rows []row, tot report.Totals) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	data := struct {
		Rows   []row
		Totals report.Totals
	}{Rows: rows, Totals: tot}
	if err := htmlTpl.Execute(&buf, data); err != nil {
		return err
	}
	_, err = f.Write(buf.Bytes())
	return err
}

var htmlTpl = template.Must(template.New("report").Parse(`<!doctype html>
<html lang="en"><meta charset="utf-8">
<title>vsched Report</title>
<style>
body{font-family:system-ui,Segoe UI,Roboto,Helvetica,Arial,sans-serif;margin:20px}
h1,h2{margin:0 0 8px}
table{border-collapse:collapse;width:100%;font-size:14px}
th,td{border:1px solid #ddd;padding:6px 8px;text-align:right}
th:first-child,td:first-child{text-align:left}
ul{margin:6px 0 14px;padding-left:20px}
.small{color:#555}
</style>

<h1><a href="https://github.com/Navidtor/vsched" target="_blank" rel="noopener noreferrer" style="color:inherit;text-decoration:none;">vsched Report</a></h1>

<p class="small">Ticks: {{.Totals.Ticks}} &nbsp;|&nbsp; Avg utilization: {{printf "%.3f" .Totals.AverageUtilization}}</p>

<h2>Summary</h2>
<ul>
<li>Total preemptions: {{.Totals.TotalPreemptions}}</li>
<li>Total migrations: {{.Totals.TotalMigrations}}</li>
</ul>

<h2>Per-tick</h2>
<table>
<thead><tr><th>vtime</th><th>schedule</th><th>preemptions</th><th>migrations</th><th>utilization</th></tr></thead>
<tbody>
{{range .Rows}}
<tr>
<td style="text-align:left">{{.VTime}}</td>
<td style="text-align:left">{{range $i, $s := .Schedule}}{{if $i}}, {{end}}{{$s}}{{end}}</td>
<td>{{.Preemptions}}</td>
<td>{{.Migrations}}</td>
<td>{{printf "%.3f" .Utilization}}</td>
</tr>
{{end}}
</tbody>
</table>
</html>`))
