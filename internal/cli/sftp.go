package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sasbridge/internal/config"
	"github.com/JonMunkholm/sasbridge/internal/encode"
	"github.com/JonMunkholm/sasbridge/internal/transfer"
)

// passwordEnv supplies the SFTP password non-interactively.
const passwordEnv = "SFTP_PASSWORD"

// remote holds the connection flags shared by the sftp subcommands.
type remote struct {
	host          string
	port          int
	user          string
	passwordStdin bool
	knownHosts    string
	timeout       time.Duration
}

func (a *app) sftpCommand() *cobra.Command {
	r := &remote{}

	cmd := &cobra.Command{
		Use:   "sftp",
		Short: "Browse and download files on a remote SAS server",
		Long: `The sftp commands open one SSH/SFTP session per invocation.

The password is taken from $SFTP_PASSWORD, from stdin with
--password-stdin, or prompted for on the terminal. It is never stored.`,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&r.host, "host", "H", "", "remote host (required)")
	flags.IntVarP(&r.port, "port", "p", transfer.DefaultPort, "remote SSH port")
	flags.StringVarP(&r.user, "user", "u", "", "remote username (required)")
	flags.BoolVar(&r.passwordStdin, "password-stdin", false, "read the password from stdin")
	flags.StringVar(&r.knownHosts, "known-hosts", "", "known_hosts file for host key verification (default: $SFTP_KNOWN_HOSTS)")
	flags.DurationVar(&r.timeout, "timeout", 0, "per-operation timeout (default: $SFTP_OPERATION_TIMEOUT)")

	cmd.AddCommand(
		a.sftpTestCommand(r),
		a.sftpListCommand(r),
		a.sftpGetCommand(r),
	)
	return cmd
}

func (a *app) sftpTestCommand(r *remote) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the credentials can open a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, creds, err := a.connect(r)
			if err != nil {
				return err
			}

			t := a.start("Connecting to " + creds.Addr())
			err = client.TestConnection(cmd.Context(), creds)
			t.done()
			if err != nil {
				return err
			}
			a.success("Connected to %s as %s", creds.Addr(), creds.Username)
			return nil
		},
	}
}

func (a *app) sftpListCommand(r *remote) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote directory (default: $SFTP_DEFAULT_PATH)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, creds, err := a.connect(r)
			if err != nil {
				return err
			}
			dir := r.defaultPath()
			if len(args) == 1 {
				dir = args[0]
			}

			t := a.start("Listing " + dir)
			entries, err := client.List(cmd.Context(), creds, dir)
			t.done()
			if err != nil {
				return err
			}

			data := pterm.TableData{{"Name", "Type", "Size", "Modified"}}
			for _, e := range entries {
				kind, size := "file", datasize.ByteSize(e.Size).HumanReadable()
				if e.IsDir {
					kind, size = "dir", ""
				}
				data = append(data, []string{e.Name, kind, size, formatTime(e.Modified)})
			}
			return a.table(data)
		},
	}
}

func (a *app) sftpGetCommand(r *remote) *cobra.Command {
	var output, convertTo string

	cmd := &cobra.Command{
		Use:   "get <remote-path>",
		Short: "Download a remote file, optionally converting it",
		Long: `The get command downloads one remote file. With --convert the download is
decoded as SAS7BDAT and written in the requested format instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var format encode.Format
			if convertTo != "" {
				f, err := encode.ParseFormat(convertTo)
				if err != nil {
					return err
				}
				format = f
			}

			client, creds, err := a.connect(r)
			if err != nil {
				return err
			}

			t := a.start("Downloading " + args[0])
			data, err := client.ReadFile(cmd.Context(), creds, args[0])
			t.done()
			if err != nil {
				return err
			}

			name := path.Base(args[0])
			if format != "" {
				res, err := a.convert(cmd, name, data, format)
				if err != nil {
					return err
				}
				name, data = res.FileName, res.Data
			}

			if output == "" {
				output = name
			} else if fi, err := os.Stat(output); err == nil && fi.IsDir() {
				output = filepath.Join(output, name)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			a.success("Saved %s (%s)", output, datasize.ByteSize(len(data)).HumanReadable())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "local file or directory (default: remote base name)")
	cmd.Flags().StringVar(&convertTo, "convert", "", "convert the download: parquet or pdsas")
	return cmd
}

// connect builds a client from the environment overlaid with flags and
// resolves the password.
func (a *app) connect(r *remote) (*transfer.Client, transfer.Credentials, error) {
	creds := transfer.Credentials{Host: r.host, Port: r.port, Username: r.user}
	if err := creds.Validate(); err != nil {
		return nil, creds, err
	}

	var cfg config.SFTPConfig
	if err := config.LoadSection(&cfg); err != nil {
		return nil, creds, err
	}
	if r.knownHosts != "" {
		cfg.KnownHostsFile = r.knownHosts
	}
	if r.timeout > 0 {
		cfg.OperationTimeout = r.timeout
	}
	client, err := transfer.NewClientFromConfig(cfg)
	if err != nil {
		return nil, creds, err
	}

	pw, err := a.password(r)
	if err != nil {
		return nil, creds, err
	}
	creds.Password = pw
	return client, creds, nil
}

func (a *app) password(r *remote) (string, error) {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return pw, nil
	}
	if r.passwordStdin {
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if !a.interactive {
		return "", fmt.Errorf("no password: set %s or use --password-stdin", passwordEnv)
	}

	fmt.Fprintf(a.errOut, "Password for %s@%s: ", r.user, r.host)
	pw, err := a.readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.errOut)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func (r *remote) defaultPath() string {
	var cfg config.SFTPConfig
	if err := config.LoadSection(&cfg); err != nil || cfg.DefaultPath == "" {
		return "/sasdata"
	}
	return cfg.DefaultPath
}
