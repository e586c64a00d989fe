package main

import (
	"github.com/ownding/headscale-console/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := newOutputFormatter(cmd)
			v := version.FormatVersion(version.String())
			return out.Print(map[string]string{"version": v, "userAgent": version.UserAgent()}, v+"\n")
		},
	}
}
