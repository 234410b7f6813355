package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"rpc-scanner/internal/domain/entity"
)

const (
	blockTimeLayout = "2006-01-02 15:04:05"
	notAvailable    = "error"
)

var (
	headerColor  = color.New(color.FgBlue, color.Bold)
	legendColor  = color.New(color.FgBlue)
	jussiColor   = color.New(color.FgGreen)
	appbaseColor = color.New(color.FgBlue)
	unknownColor = color.New(color.FgRed)
)

// column is a fixed-width table column. Cells are padded before colouring so escapes do not shift alignment.
type column struct {
	title string
	width int
}

var tableColumns = []column{
	{"Server", 50},
	{"Status", 12},
	{"Score", 8},
	{"Head Block", 13},
	{"Block Time", 22},
	{"Version", 10},
	{"Network", 13},
	{"Res Time", 10},
	{"Avg Retries", 13},
	{"API Tests", 10},
}

// StatusColor returns the colour a status is printed in.
func StatusColor(s entity.Status) *color.Color {
	switch s {
	case entity.StatusPerfect:
		return color.New(color.FgGreen, color.Bold)
	case entity.StatusGood:
		return color.New(color.FgGreen)
	case entity.StatusUnstable:
		return color.New(color.FgYellow)
	case entity.StatusBad:
		return color.New(color.FgRed)
	case entity.StatusError:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// WriteTable renders the batch ranked table. showPlugins adds the API Tests column.
func WriteTable(w io.Writer, results []entity.ClassifiedResult, showPlugins bool) error {
	cols := tableColumns
	if !showPlugins {
		cols = cols[:len(cols)-1]
	}

	var b strings.Builder
	b.WriteString(legendColor.Sprint("(S) - SSL, (H) - HTTP : (A) - appbase (J) - jussi (L) - legacy"))
	b.WriteString("\n")

	var header strings.Builder
	for _, c := range cols {
		header.WriteString(pad(c.title, c.width))
	}
	b.WriteString(headerColor.Sprint(strings.TrimRight(header.String(), " ")))
	b.WriteString("\n")

	for _, r := range results {
		cells := tableRow(r)
		for i, c := range cols {
			b.WriteString(cells[i].render(c.width))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type cell struct {
	text  string
	color *color.Color
}

func (c cell) render(width int) string {
	s := pad(c.text, width)
	if c.color == nil {
		return s
	}
	return c.color.Sprint(s)
}

func tableRow(r entity.ClassifiedResult) []cell {
	status := cell{string(r.Status), StatusColor(r.Status)}
	if r.ErrReason == entity.ErrReasonWebsocketOnly {
		status = cell{r.ErrReason, color.New(color.FgYellow)}
	}

	server := cell{serverTag(r.ServerType) + " " + r.Endpoint.Short(), serverColor(r.ServerType)}

	head, blockTime := notAvailable, notAvailable
	if r.HeadBlock > 0 {
		head = fmt.Sprintf("%d", r.HeadBlock)
	}
	if !r.BlockTime.IsZero() {
		blockTime = r.BlockTime.UTC().Format(blockTimeLayout)
	}

	resTime, retries := notAvailable, notAvailable
	if r.Connected {
		if avg := r.AvgResponseTime(); avg > 0 {
			resTime = fmt.Sprintf("%.2f", avg.Seconds())
		}
		retries = fmt.Sprintf("%.2f", r.AvgRetries())
	}

	return []cell{
		server,
		status,
		{fmt.Sprintf("%d", r.Score), StatusColor(r.Status)},
		{head, nil},
		{blockTime, lagColor(r.TimeBehind(), r.BlockTime.IsZero())},
		{r.Version, nil},
		{string(r.Network), nil},
		{resTime, nil},
		{retries, nil},
		pluginCell(r.ScanResult),
	}
}

func pluginCell(r entity.ScanResult) cell {
	if !r.PluginsTested {
		return cell{"N/A", nil}
	}
	passed, total := r.PluginsPassed(), r.PluginsTotal
	text := fmt.Sprintf("%d / %d", passed, total)
	switch {
	case passed < total/2:
		return cell{text, color.New(color.FgRed)}
	case passed < total:
		return cell{text, color.New(color.FgYellow)}
	default:
		return cell{text, color.New(color.FgGreen)}
	}
}

func lagColor(lag time.Duration, unknown bool) *color.Color {
	switch {
	case unknown:
		return nil
	case lag > time.Hour:
		return color.New(color.FgRed)
	case lag > time.Minute:
		return color.New(color.FgYellow)
	default:
		return nil
	}
}

func serverTag(t entity.ServerType) string {
	switch t {
	case entity.ServerJussi:
		return "(J)"
	case entity.ServerAppbase:
		return "(A)"
	case entity.ServerLegacy:
		return "(L)"
	default:
		return "(?)"
	}
}

func serverColor(t entity.ServerType) *color.Color {
	switch t {
	case entity.ServerJussi:
		return jussiColor
	case entity.ServerAppbase:
		return appbaseColor
	case entity.ServerLegacy:
		return nil
	default:
		return unknownColor
	}
}

// pad left-aligns s in width columns, always leaving at least one trailing space.
func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s + " "
}
