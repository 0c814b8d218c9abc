// Package cli implements sasctl, a command-line front end to the same
// conversion, inspection and remote transfer code the server uses.
package cli

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/JonMunkholm/sasbridge/internal/dataset"
	"github.com/JonMunkholm/sasbridge/internal/logging"
)

// app carries the command's I/O and test seams.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// readPassword is a test seam for term.ReadPassword.
	readPassword func(fd int) ([]byte, error)
	// decoder overrides sas7bdat.Decode; nil keeps the default.
	decoder func([]byte) (*dataset.Table, error)
	// interactive enables spinners and prompts.
	interactive bool

	envFile  string
	logLevel string
}

// New returns the sasctl root command wired to the process's stdio.
func New() *cobra.Command {
	return newRoot(&app{
		in:           os.Stdin,
		out:          os.Stdout,
		errOut:       os.Stderr,
		readPassword: term.ReadPassword,
		interactive:  term.IsTerminal(int(os.Stderr.Fd())),
	})
}

func newRoot(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sasctl",
		Short: "Convert SAS7BDAT datasets and fetch them over SFTP",
		Long: `sasctl converts SAS7BDAT datasets to Parquet or pipe-delimited text,
inspects dataset metadata, and browses or downloads files on a remote SAS
server over SFTP.

Settings such as SFTP timeouts and JWT_SECRET are read from the environment
and from an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load if present")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		a.convertCommand(),
		a.inspectCommand(),
		a.sftpCommand(),
		a.tokenCommand(),
	)
	return root
}

// setup loads the env file without overriding variables already set and
// routes logs to stderr so they never mix with command output.
func (a *app) setup() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	slog.SetDefault(logging.New(a.errOut, a.logLevel, "text"))
	return nil
}
