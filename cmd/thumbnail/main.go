package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"native-thumbnail/internal/bootstrap"
	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/media"
	"native-thumbnail/internal/sandbox"
	"native-thumbnail/internal/startup"
	"native-thumbnail/internal/thumbnail"
	"native-thumbnail/internal/writer"
)

// errReported means the command already printed its failure.
var errReported = errors.New("failure reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	// libvips cannot be restarted after shutdown, so it lives for the whole process.
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable: %v", err)
	}
	err := newRootCmd(os.Getenv).ExecuteContext(ctx)
	media.ShutdownVips()
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

type rootOptions struct {
	getenv     func(string) string
	configFile string
	jsonOutput bool
	logLevel   string
}

// env layers command-line settings over the process environment.
func (o *rootOptions) env(key string) string {
	if key == "CONFIG_FILE" && o.configFile != "" {
		return o.configFile
	}
	return o.getenv(key)
}

func (o *rootOptions) loadConfig() (*startup.Config, error) {
	if o.logLevel != "" {
		logging.SetLevel(logging.ParseLevel(o.logLevel))
	}
	return startup.Load(o.env)
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	opts := &rootOptions{getenv: getenv}

	root := &cobra.Command{
		Use:           "thumbnail",
		Short:         "Extract thumbnails for sandboxed file paths",
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "always print JSON")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(newExtractCmd(opts), newResolveCmd(opts))
	return root
}

// useJSON reports whether output to w should be JSON: when forced, or when w
// is not a terminal.
func useJSON(w io.Writer, forced bool) bool {
	if forced {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

type extractResult struct {
	Success     bool   `json:"success"`
	RequestID   string `json:"requestId"`
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	Category    string `json:"category,omitempty"`
	Message     string `json:"message,omitempty"`
	Diagnostic  string `json:"diagnostic,omitempty"`
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var (
		req          thumbnail.Request
		format, mode string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract one thumbnail",
		Long: "Extract a thumbnail of --src into --dest. Both paths may be logical\n" +
			"(as seen by a sandboxed app) or physical. Exits 1 on failure; content\n" +
			"that cannot be thumbnailed is not a failure.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if req.Format, err = writer.ParseFormat(format); err != nil {
				return err
			}
			if req.Mode, err = thumbnail.ParseMode(mode); err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			app, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					logging.Warn("%v", err)
				}
			}()

			out := app.Service.ExtractThumbnail(cmd.Context(), req)
			printOutcome(cmd.OutOrStdout(), useJSON(cmd.OutOrStdout(), opts.jsonOutput), out)
			if out.Failure != nil {
				return errReported
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Source, "src", "", "source file path")
	f.StringVar(&req.Destination, "dest", "", "destination file path")
	f.IntVar(&req.Size, "size", 0, "edge length of the thumbnail")
	f.IntVar(&req.Width, "width", 0, "requested width (used when --size is not set)")
	f.IntVar(&req.Height, "height", 0, "requested height (used when --size is not set)")
	f.StringVar(&format, "format", "png", "output format: png or jpeg")
	f.StringVar(&mode, "mode", "", "extraction mode: default or live")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("dest")
	return cmd
}

func printOutcome(w io.Writer, asJSON bool, out thumbnail.Outcome) {
	res := extractResult{
		Success:     out.Produced,
		RequestID:   out.RequestID,
		Source:      out.Source,
		Destination: out.Destination,
	}
	if out.Failure != nil {
		res.Category = string(out.Failure.Category)
		res.Message = out.Failure.Detail
		res.Diagnostic = out.Failure.Code
	}

	if asJSON {
		_ = json.NewEncoder(w).Encode(res)
		return
	}

	switch {
	case out.Failure != nil:
		_, _ = fmt.Fprintf(w, "failed: %s: %s\n", res.Category, res.Message)
		if res.Diagnostic != "" {
			_, _ = fmt.Fprintf(w, "  code: %s\n", res.Diagnostic)
		}
	case out.Produced:
		_, _ = fmt.Fprintf(w, "thumbnail written to %s\n", out.Destination)
	default:
		_, _ = fmt.Fprintf(w, "no thumbnail: %s is not supported\n", out.Source)
	}
	_, _ = fmt.Fprintf(w, "  request: %s\n", out.RequestID)
}

type resolveResult struct {
	Logical  string `json:"logical"`
	Physical string `json:"physical"`
	Method   string `json:"method"`
	Root     string `json:"root,omitempty"`
	Rule     string `json:"rule,omitempty"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var destination bool

	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Print the physical path behind a logical path",
		Long: "Resolve a logical path the way extract does. Source semantics (the\n" +
			"file must exist) are the default; --dest resolves a destination.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			resolver := sandbox.New(cfg.RootsProvider())

			resolve := resolver.Source
			if destination {
				resolve = resolver.Destination
			}
			res, err := resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := resolveResult{
				Logical:  args[0],
				Physical: res.Path.String(),
				Method:   string(res.Method),
			}
			if res.Candidate != nil {
				out.Root = string(res.Candidate.Root)
				out.Rule = string(res.Candidate.Rule)
			}

			w := cmd.OutOrStdout()
			if useJSON(w, opts.jsonOutput) {
				return json.NewEncoder(w).Encode(out)
			}
			_, _ = fmt.Fprintf(w, "%s\n  method: %s\n", out.Physical, out.Method)
			if out.Root != "" {
				_, _ = fmt.Fprintf(w, "  root:   %s (%s)\n", out.Root, out.Rule)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&destination, "dest", false, "resolve as a destination path")
	return cmd
}
