package cmd

import (
	"fmt"
	"os"

	"github.com/example/badgerwatch/internal/config"
	"github.com/example/badgerwatch/internal/web"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "badgerwatch",
		Short:         "Watch course enrollment and get notified when seats open up",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newCourseCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newSettingsCmd())
	root.AddCommand(newTestMessageCmd())
	root.AddCommand(newGradesCmd())
	root.AddCommand(newStatusCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// apiClient talks to the control API of a running `badgerwatch serve`.
func apiClient() (*web.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return web.NewClient(cfg.APIBaseURL), nil
}
