package cli

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sasbridge/internal/convert"
	"github.com/JonMunkholm/sasbridge/internal/encode"
	"github.com/JonMunkholm/sasbridge/internal/staging"
)

func (a *app) convertCommand() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "convert <file.sas7bdat>",
		Short: "Convert a SAS7BDAT dataset to Parquet or pipe-delimited text",
		Long: `The convert command decodes a local SAS7BDAT dataset and writes it as
Parquet (--format parquet) or pipe-delimited text (--format pdsas).

The output lands next to the input with the matching extension unless
--output is given; "-" writes to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := encode.ParseFormat(format)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			res, err := a.convert(cmd, args[0], data, f)
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := a.out.Write(res.Data)
				return err
			}
			if output == "" {
				output = filepath.Join(filepath.Dir(args[0]), res.FileName)
			}
			if err := os.WriteFile(output, res.Data, 0o644); err != nil {
				return err
			}
			a.success("Wrote %s (%d rows, %d columns, %s)",
				output, res.Rows, res.Columns, datasize.ByteSize(len(res.Data)).HumanReadable())
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(encode.FormatParquet), "output format: parquet or pdsas")
	cmd.Flags().StringVarP(&output, "output", "o", "", `output path, "-" for stdout (default: next to the input)`)
	return cmd
}

// convert runs data through the conversion service with an in-memory
// staging area, so local runs follow the same pipeline as uploads.
func (a *app) convert(cmd *cobra.Command, name string, data []byte, f encode.Format) (*convert.Result, error) {
	svc := convert.NewService(staging.NewMemoryStore("local/"), convert.Options{Decoder: a.decoder})

	t := a.start(fmt.Sprintf("Converting %s", filepath.Base(name)))
	defer t.done()

	return svc.Convert(cmd.Context(), convert.Request{
		FileName: name,
		Data:     data,
		Format:   f,
		Subject:  currentUser(),
	})
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
