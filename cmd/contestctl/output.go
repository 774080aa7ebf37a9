package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"contesttracker/internal/source"
)

func write(cmd *cobra.Command, v any) error {
	return writeTo(cmd.OutOrStdout(), outFormat, v)
}

func writeTo(w io.Writer, format string, v any) error {
	if strings.EqualFold(format, "text") {
		if items, ok := v.([]source.Candidate); ok {
			return writeCandidateTable(w, items)
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func writeCandidateTable(w io.Writer, items []source.Candidate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tSTATUS\tSTART (UTC)\tMIN\tNAME")
	for _, c := range items {
		minutes := fmt.Sprint(c.DurationMinutes)
		if c.IsDurationEstimated {
			minutes += "~"
		}
		start := c.StartTime.UTC().Format(time.DateTime)
		if c.IsPlaceholderTiming {
			start += "?"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Platform, c.Status, start, minutes, c.Name)
	}
	return tw.Flush()
}

func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, 4<<20))
}
