package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ownding/headscale-console/internal/version"
	"github.com/spf13/cobra"
)

// OutputFormatter handles output in JSON or human-readable format
type OutputFormatter struct {
	jsonMode bool
	out      io.Writer
	errOut   io.Writer
}

// newOutputFormatter creates a new formatter based on the command's --json flag
func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
}

// JSON writes data as indented JSON.
func (f *OutputFormatter) JSON(data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(f.out, string(b))
	return err
}

// Print writes data as JSON in JSON mode, otherwise the text rendering.
func (f *OutputFormatter) Print(data any, text string) error {
	if f.jsonMode {
		return f.JSON(data)
	}
	_, err := fmt.Fprint(f.out, text)
	return err
}

// Success outputs a success message
func (f *OutputFormatter) Success(message string, data map[string]any) error {
	if f.jsonMode {
		output := map[string]any{
			"success": true,
			"message": message,
		}
		for k, v := range data {
			output[k] = v
		}
		return f.JSON(output)
	}
	_, err := fmt.Fprintln(f.out, message)
	return err
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "headscale-console",
		Short: "Admin console for a headscale control plane",
		Long: `headscale-console manages users, nodes, pre-auth keys and ACL policy on a
headscale server. It talks to the REST API and, when available, to the gRPC
API for operations REST cannot express.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version.String()
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to config file")
	pf.Bool("json", false, "Output in JSON format")
	pf.String("rest.url", "", "headscale REST base URL")
	pf.String("rest.api-key", "", "headscale API key")
	pf.Bool("rpc.enabled", true, "Use the gRPC transport")
	pf.String("rpc.host", "", "headscale gRPC host")
	pf.Int("rpc.port", 0, "headscale gRPC port")
	pf.Bool("rpc.tls", false, "Use TLS for gRPC")
	pf.String("log.level", "", "Log level (debug|info|warn|error)")
	pf.Bool("log.json", false, "Log as JSON")

	root.AddCommand(
		newServeCommand(),
		newStatusCommand(),
		newDiagnoseCommand(),
		newProbeCommand(),
		newUsersCommand(),
		newNamespacesCommand(),
		newNodesCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
