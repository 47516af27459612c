package main

import (
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	okStyle    = color.New(color.FgGreen)
	warnStyle  = color.New(color.FgYellow)
	errStyle   = color.New(color.FgRed, color.Bold)
	mutedStyle = color.New(color.FgHiBlack)
	nameStyle  = color.New(color.FgCyan, color.Bold)
)

func printTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewTable(w)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Header.Alignment.Global = tw.AlignLeft
		cfg.Row.Alignment.Global = tw.AlignLeft
		cfg.Header.Padding.Global = tw.Padding{Left: " ", Right: " "}
		cfg.Row.Padding.Global = tw.Padding{Left: " ", Right: " "}
	})
	table.Header(headers)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func yesNo(b bool) string {
	if b {
		return okStyle.Sprint("yes")
	}
	return mutedStyle.Sprint("no")
}
