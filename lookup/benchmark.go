package lookup

import (
	"fmt"
	"io"
	"strings"
	"time"

	"momo/models"
)

// Timing 单个策略的耗时
type Timing struct {
	Strategy   string        `json:"strategy"`
	Complexity string        `json:"complexity"`
	Build      time.Duration `json:"build"`
	Total      time.Duration `json:"total"`
	PerLookup  time.Duration `json:"per_lookup"`
	Hits       int           `json:"hits"`
}

// Report 基准测试报告，仅用于展示，不影响查找结果
type Report struct {
	Size       int      `json:"size"`
	Targets    []Key    `json:"-"`
	Iterations int      `json:"iterations"`
	Timings    []Timing `json:"timings"`
	Agree      bool     `json:"agree"`
	Mismatches []string `json:"mismatches,omitempty"`
	Fastest    string   `json:"fastest"`
}

// Benchmark 在同一序列、同一组目标上依次运行全部策略
// 每个目标先做一次查找用于一致性比对，再重复 iterations 轮计时
func Benchmark(seq []models.Transaction, targets []Key, iterations int) Report {
	if iterations <= 0 {
		iterations = 1
	}
	report := Report{Size: len(seq), Targets: targets, Iterations: iterations, Agree: true}

	strategies := Strategies()
	positions := make([][]int, len(strategies))

	for si, s := range strategies {
		start := time.Now()
		idx := s.Prepare(seq)
		build := time.Since(start)

		positions[si] = make([]int, len(targets))
		hits := 0
		for ti, key := range targets {
			pos, ok := idx.Find(key)
			if !ok {
				pos = -1
			} else {
				hits++
			}
			positions[si][ti] = pos
		}

		start = time.Now()
		for it := 0; it < iterations; it++ {
			for _, key := range targets {
				idx.Find(key)
			}
		}
		total := time.Since(start)

		lookups := iterations * len(targets)
		var per time.Duration
		if lookups > 0 {
			per = total / time.Duration(lookups)
		}
		report.Timings = append(report.Timings, Timing{
			Strategy:   s.Name(),
			Complexity: s.Complexity(),
			Build:      build,
			Total:      total,
			PerLookup:  per,
			Hits:       hits,
		})
	}

	for ti, key := range targets {
		for si := 1; si < len(strategies); si++ {
			if positions[si][ti] != positions[0][ti] {
				report.Agree = false
				report.Mismatches = append(report.Mismatches, key.String())
				break
			}
		}
	}

	fastest := -1
	for i, t := range report.Timings {
		if fastest < 0 || t.Total < report.Timings[fastest].Total {
			fastest = i
		}
	}
	if fastest >= 0 {
		report.Fastest = report.Timings[fastest].Strategy
	}
	return report
}

// DefaultTargets 默认目标：末尾、开头、中间的流水号，外加一个不存在的流水号
func DefaultTargets(seq []models.Transaction) []Key {
	if len(seq) == 0 {
		return []Key{ByRef("__missing__")}
	}
	return []Key{
		ByRef(seq[len(seq)-1].TxRef),
		ByRef(seq[0].TxRef),
		ByRef(seq[len(seq)/2].TxRef),
		ByRef("__missing__"),
	}
}

// WriteTable 以表格形式输出报告
func (r Report) WriteTable(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "  Lookup strategy comparison")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "  %d transactions, %d targets, %d iterations\n\n", r.Size, len(r.Targets), r.Iterations)
	fmt.Fprintf(w, "  %-10s %-10s %-14s %-14s %-14s %s\n", "Strategy", "Cost", "Build", "Total", "Per lookup", "Hits")
	fmt.Fprintf(w, "  %-10s %-10s %-14s %-14s %-14s %s\n",
		strings.Repeat("-", 10), strings.Repeat("-", 10), strings.Repeat("-", 14),
		strings.Repeat("-", 14), strings.Repeat("-", 14), strings.Repeat("-", 4))
	for _, t := range r.Timings {
		fmt.Fprintf(w, "  %-10s %-10s %-14s %-14s %-14s %d\n",
			t.Strategy, t.Complexity, t.Build, t.Total, t.PerLookup, t.Hits)
	}
	fmt.Fprintln(w)
	if r.Agree {
		fmt.Fprintln(w, "  All strategies returned identical results.")
	} else {
		fmt.Fprintf(w, "  MISMATCH on: %s\n", strings.Join(r.Mismatches, ", "))
	}
	fmt.Fprintf(w, "  Fastest: %s\n", r.Fastest)
	fmt.Fprintln(w, line)
}
