package app

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{"name", "score", "max"}

// ExportRows is the per-person score view reduced to display names.
func ExportRows(stats Statistics) [][]string {
	rows := make([][]string, 0, len(stats.Scores)+1)
	rows = append(rows, csvHeader)
	for _, s := range stats.Scores {
		rows = append(rows, []string{
			s.Name,
			strconv.FormatFloat(s.Value, 'f', 2, 64),
			strconv.FormatFloat(s.Max, 'f', 0, 64),
		})
	}
	return rows
}

// WriteCSV writes ExportRows as CSV.
func WriteCSV(w io.Writer, stats Statistics) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(ExportRows(stats)); err != nil {
		return err
	}
	return cw.Error()
}
