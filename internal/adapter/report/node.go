package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"rpc-scanner/internal/domain/entity"
)

const isoLayout = "2006-01-02T15:04:05"

// NodeReport is the structured single-endpoint report.
type NodeReport struct {
	Node            string            `json:"node" yaml:"node"`
	Status          entity.Status     `json:"status" yaml:"status"`
	Score           int               `json:"score" yaml:"score"`
	MaxScore        int               `json:"max_score" yaml:"max_score"`
	ServerType      entity.ServerType `json:"server_type" yaml:"server_type"`
	Network         entity.Network    `json:"network" yaml:"network"`
	Version         string            `json:"version" yaml:"version"`
	Block           int64             `json:"block" yaml:"block"`
	Time            string            `json:"time" yaml:"time"`
	TimeBehind      string            `json:"time_behind" yaml:"time_behind"`
	PluginsTested   bool              `json:"plugins_tested" yaml:"plugins_tested"`
	PluginsPassed   int               `json:"plugins_passed" yaml:"plugins_passed"`
	PluginsTotal    int               `json:"plugins_total" yaml:"plugins_total"`
	PluginList      []string          `json:"plugin_list" yaml:"plugin_list"`
	BrokenAPIs      []string          `json:"broken_apis" yaml:"broken_apis"`
	PassedStages    int               `json:"passed_stages" yaml:"passed_stages"`
	TotalStages     int               `json:"total_stages" yaml:"total_stages"`
	Retries         int               `json:"retries" yaml:"retries"`
	AvgResponseTime string            `json:"avg_response_time" yaml:"avg_response_time"`
	ErrReason       string            `json:"err_reason,omitempty" yaml:"err_reason,omitempty"`
}

// NewNodeReport flattens a classified result for output.
func NewNodeReport(r entity.ClassifiedResult, maxScore int) NodeReport {
	rep := NodeReport{
		Node:            r.Endpoint.String(),
		Status:          r.Status,
		Score:           r.Score,
		MaxScore:        maxScore,
		ServerType:      r.ServerType,
		Network:         r.Network,
		Version:         r.Version,
		Block:           r.HeadBlock,
		Time:            "Unknown",
		TimeBehind:      "N/A",
		PluginsTested:   r.PluginsTested,
		PluginsPassed:   r.PluginsPassed(),
		PluginsTotal:    r.PluginsTotal,
		PluginList:      r.PassedPlugins(),
		BrokenAPIs:      r.BrokenPlugins(),
		PassedStages:    r.StagesPassed(),
		TotalStages:     r.StagesTotal,
		Retries:         r.Retries(),
		AvgResponseTime: r.AvgResponseTime().Round(time.Millisecond).String(),
		ErrReason:       r.ErrReason,
	}
	if !r.BlockTime.IsZero() {
		rep.Time = r.BlockTime.UTC().Format(isoLayout)
		rep.TimeBehind = r.TimeBehind().Truncate(time.Second).String()
	}
	return rep
}

// WriteNode writes the single-endpoint report.
func WriteNode(w io.Writer, r entity.ClassifiedResult, maxScore int, f Format) error {
	rep := NewNodeReport(r, maxScore)
	if f != FormatText {
		return encode(w, f, rep)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Node: %s\n", rep.Node)
	if rep.Status == entity.StatusDead {
		fmt.Fprintf(&b, "Status: %s\n", StatusColor(rep.Status).Sprint(rep.Status))
		if rep.ErrReason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", rep.ErrReason)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "Status: %s\n", StatusColor(rep.Status).Sprint(rep.Status))
	fmt.Fprintf(&b, "Network: %s\n", rep.Network)
	fmt.Fprintf(&b, "Version: %s\n", rep.Version)
	fmt.Fprintf(&b, "Block: %d\n", rep.Block)
	fmt.Fprintf(&b, "Time: %s (%s ago)\n", rep.Time, rep.TimeBehind)
	if rep.PluginsTested {
		fmt.Fprintf(&b, "Plugins: %d / %d\n", rep.PluginsPassed, rep.PluginsTotal)
		fmt.Fprintf(&b, "PluginList: %s\n", strings.Join(rep.PluginList, ", "))
		fmt.Fprintf(&b, "BrokenAPIs: %s\n", strings.Join(rep.BrokenAPIs, ", "))
	}
	fmt.Fprintf(&b, "PassedStages: %d / %d\n", rep.PassedStages, rep.TotalStages)
	fmt.Fprintf(&b, "Retries: %d\n", rep.Retries)
	fmt.Fprintf(&b, "Score: %d (out of %d)\n", rep.Score, rep.MaxScore)
	if rep.ErrReason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", rep.ErrReason)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteNodeList writes the nodes that passed the health filter. In detailed text mode the
// header goes to hdr so stdout stays one row per node.
func WriteNodeList(w, hdr io.Writer, results []entity.ClassifiedResult, maxScore int, detailed bool, f Format) error {
	if f != FormatText {
		reports := make([]NodeReport, len(results))
		for i, r := range results {
			reports[i] = NewNodeReport(r, maxScore)
		}
		return encode(w, f, reports)
	}

	if detailed {
		fmt.Fprintln(hdr, "(Detailed Mode. This msg and row header are sent to stderr for easy removal)")
		fmt.Fprintf(hdr, "%-40s %-10s %-6s %-10s %-12s %-20s %s\n",
			"Node", "Status", "Score", "Version", "Block", "Time", "Plugins")
	}

	var b strings.Builder
	for _, r := range results {
		if !detailed {
			b.WriteString(r.Endpoint.String())
			b.WriteString("\n")
			continue
		}
		rep := NewNodeReport(r, maxScore)
		fmt.Fprintf(&b, "%-40s %-10s %-6d %-10s %-12d %-20s %d/%d\n",
			rep.Node, rep.Status, rep.Score, rep.Version, rep.Block, rep.Time, rep.PluginsPassed, rep.PluginsTotal)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// MethodsReport summarises an ad-hoc method test against one endpoint.
type MethodsReport struct {
	Node       string                `json:"node" yaml:"node"`
	Methods    []entity.PluginResult `json:"methods" yaml:"methods"`
	Working    int                   `json:"working" yaml:"working"`
	Broken     int                   `json:"broken" yaml:"broken"`
	Total      int                   `json:"total" yaml:"total"`
	MinWorking int                   `json:"min_working" yaml:"min_working"`
	Status     entity.Status         `json:"status" yaml:"status"`
}

// NewMethodsReport counts results and derives GOOD or BAD against minWorking.
func NewMethodsReport(endpoint entity.Endpoint, plugins []entity.PluginResult, minWorking int) MethodsReport {
	rep := MethodsReport{
		Node:       endpoint.String(),
		Methods:    plugins,
		Total:      len(plugins),
		MinWorking: minWorking,
		Status:     entity.StatusBad,
	}
	for _, p := range plugins {
		if p.Passed {
			rep.Working++
		}
	}
	rep.Broken = rep.Total - rep.Working
	if rep.Total > 0 && rep.Working >= minWorking {
		rep.Status = entity.StatusGood
	}
	return rep
}

// WriteMethods writes a method test report.
func WriteMethods(w io.Writer, rep MethodsReport, f Format) error {
	if f != FormatText {
		return encode(w, f, rep)
	}

	working := color.New(color.FgGreen).Sprint("WORKING")
	broken := color.New(color.FgRed).Sprint("BROKEN")

	var b strings.Builder
	fmt.Fprintf(&b, "# Testing Node: %s\n", rep.Node)
	for _, m := range rep.Methods {
		state := working
		if !m.Passed {
			state = broken
		}
		fmt.Fprintf(&b, "%-50s %s\n", m.Method, state)
	}
	fmt.Fprintf(&b, "# WORKING | BROKEN | TOTAL: %d | %d | %d\n", rep.Working, rep.Broken, rep.Total)
	fmt.Fprintf(&b, "# Overall status: %s\n", StatusColor(rep.Status).Sprint(rep.Status))
	fmt.Fprintf(&b, "# Min working methods for GOOD status: %d\n", rep.MinWorking)

	_, err := io.WriteString(w, b.String())
	return err
}

// DefaultMinMethods is 75% of total, at least one.
func DefaultMinMethods(total int) int {
	need := total * 3 / 4
	if need < 1 {
		return 1
	}
	return need
}
