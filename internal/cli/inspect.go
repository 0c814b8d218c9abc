package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sasbridge/internal/dataset"
	"github.com/JonMunkholm/sasbridge/internal/encode"
	"github.com/JonMunkholm/sasbridge/internal/sas7bdat"
)

func (a *app) inspectCommand() *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show metadata and columns of a SAS7BDAT or converted Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var tbl *dataset.Table
			if strings.EqualFold(filepath.Ext(args[0]), ".parquet") {
				tbl, err = encode.ReadParquet(cmd.Context(), data)
			} else {
				decode := a.decoder
				if decode == nil {
					decode = sas7bdat.Decode
				}
				tbl, err = decode(data)
			}
			if err != nil {
				return err
			}

			a.printMeta(filepath.Base(args[0]), tbl)
			if err := a.printColumns(tbl); err != nil {
				return err
			}
			if rows > 0 {
				return a.printRows(tbl, rows)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "also print the first n rows")
	return cmd
}

func (a *app) printMeta(name string, tbl *dataset.Table) {
	m := tbl.Meta
	lines := []string{
		fmt.Sprintf("Dataset:     %s", m.Name),
		fmt.Sprintf("Rows:        %d", tbl.Rows),
		fmt.Sprintf("Columns:     %d", len(tbl.Columns)),
	}
	for _, kv := range [][2]string{
		{"Created", formatTime(m.Created)},
		{"Modified", formatTime(m.Modified)},
		{"Encoding", m.Encoding},
		{"Compression", m.Compression},
		{"Release", m.Release},
		{"Platform", m.Platform},
	} {
		if kv[1] != "" {
			lines = append(lines, fmt.Sprintf("%-12s %s", kv[0]+":", kv[1]))
		}
	}

	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(name)).
		WithPadding(1).
		WithWriter(a.out).
		Println(strings.Join(lines, "\n"))
}

func (a *app) printColumns(tbl *dataset.Table) error {
	data := pterm.TableData{{"#", "Name", "Type", "Label", "Format", "Width"}}
	for i, c := range tbl.Columns {
		data = append(data, []string{
			strconv.Itoa(i + 1), c.Name, c.Type.String(), c.Label, c.Format, strconv.Itoa(c.Width),
		})
	}
	return a.table(data)
}

func (a *app) printRows(tbl *dataset.Table, n int) error {
	n = min(n, tbl.Rows)
	data := pterm.TableData{tbl.Names()}
	for r := range n {
		row := make([]string, len(tbl.Columns))
		for i, c := range tbl.Columns {
			row[i] = cellString(c.Values[r])
		}
		data = append(data, row)
	}
	return a.table(data)
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return "."
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case time.Time:
		return formatTime(x)
	case time.Duration:
		return x.String()
	}
	return fmt.Sprint(v)
}
