package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/webmirror/internal/database"
)

// WriteHistory prints stored runs as an aligned table.
func WriteHistory(output io.Writer, runs []database.RunMetadata) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(output, "no mirror runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATE\tDOWNLOADED\tSKIPPED\tFAILED\tSIZE\tURL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID,
			humanize.Time(r.StartedAt),
			strings.ToLower(r.State),
			r.Downloaded,
			r.Skipped,
			r.Failed,
			humanize.Bytes(uint64(max(r.Bytes, 0))),
			r.URL,
		)
	}
	return tw.Flush()
}
