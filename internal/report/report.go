// Package report renders client state and stored history as plain-text
// tables for headless output and the history subcommand.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/zsprackett/streamsim/internal/history"
	"github.com/zsprackett/streamsim/internal/telemetry"
	"github.com/zsprackett/streamsim/internal/view"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// Records writes the counter line followed by the records table.
func Records(w io.Writer, t view.Table) {
	fmt.Fprintf(w, "counter: %d  records: %d\n", t.Counter, len(t.Rows))
	table := newTable(w, t.Header)
	table.AppendBulk(t.Rows)
	table.Render()
}

// Batch writes the stored records of b in the same layout as Records,
// preceded by the batch id and receive time.
func Batch(w io.Writer, b history.Batch, records []telemetry.Record) {
	fmt.Fprintf(w, "batch: %s  received: %s\n", b.ID, b.ReceivedAt.Format(time.RFC3339))
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Row()
	}
	Records(w, view.Table{
		Counter: b.Counter,
		Header:  telemetry.Columns,
		Rows:    rows,
	})
}

// Batches writes one line per stored batch, newest first as given.
func Batches(w io.Writer, batches []history.Batch, now time.Time) {
	if len(batches) == 0 {
		fmt.Fprintln(w, "no batches recorded")
		return
	}
	table := newTable(w, []string{"id", "received", "counter", "records"})
	for _, b := range batches {
		table.Append([]string{
			b.ID,
			humanize.RelTime(b.ReceivedAt, now, "ago", "from now"),
			strconv.Itoa(b.Counter),
			strconv.Itoa(b.Size),
		})
	}
	table.Render()
}
