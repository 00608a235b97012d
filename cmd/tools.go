package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog in the configured term",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			hits, err := client.Search(context.Background(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no results")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTERM\tSUBJECT\tCOURSE\tTITLE")
			for _, h := range hits {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.CourseID, h.TermCode, h.SubjectCode, h.Designation, h.Title)
			}
			return tw.Flush()
		},
	}
}

func newTestMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-message <phone-or-address>",
		Short: "Send a test text through the message relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			if err := client.TestMessage(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "test message sent to %s\n", args[0])
			return nil
		},
	}
}

func newGradesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "grades <designation>",
		Short:   "Show the historical grade distribution of a course",
		Example: `  badgerwatch grades COMP SCI 640`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			rep, err := client.Grades(context.Background(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			t := rep.Cumulative
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d grades over %d offerings, GPA %.2f\n", strings.Join(args, " "), t.Total, rep.Offerings, t.GPA())
			fmt.Fprintf(out, "A %d  AB %d  B %d  BC %d  C %d  D %d  F %d\n", t.A, t.AB, t.B, t.BC, t.C, t.D, t.F)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the catalog API is answering",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			st, err := client.Status(context.Background())
			if err != nil {
				return err
			}
			state := "down"
			if st.IsLive {
				state = "live"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog API %s (as of %s)\n", state, st.LastUpdate.Local().Format("15:04:05"))
			return nil
		},
	}
}
