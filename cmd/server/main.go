package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd(viper.New(), os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskload",
		Short: "Track concurrent operations behind a single loading flag",
		Long: `taskload runs simulated jobs as tracked operations and reports
whether any of them is still in flight, over HTTP and a websocket stream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().String("config", "", "path to a config file (yaml, json or toml)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(
		serveCmd(v),
		versionCmd(),
	)
	return root
}
