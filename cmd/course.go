package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/example/badgerwatch/internal/scheduler"
	"github.com/example/badgerwatch/internal/web"
	"github.com/spf13/cobra"
)

func newCourseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Manage watched courses",
	}
	cmd.AddCommand(newCourseAddCmd())
	cmd.AddCommand(newCourseListCmd())
	cmd.AddCommand(newCourseRemoveCmd())
	cmd.AddCommand(newCourseSyllabusCmd())
	cmd.AddCommand(newCourseSimilarCmd())
	return cmd
}

func newCourseAddCmd() *cobra.Command {
	var (
		req    web.AddCourseRequest
		search string
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Start watching a course",
		Example: `  badgerwatch course add --search "COMP SCI 640"
  badgerwatch course add --course-id 024798 --subject 266 --designation "COMP SCI 640"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			ctx := context.Background()

			if search != "" {
				hits, err := client.Search(ctx, search)
				if err != nil {
					return err
				}
				if len(hits) == 0 {
					return fmt.Errorf("no courses match %q", search)
				}
				h := hits[0]
				req = web.AddCourseRequest{
					CourseID:    h.CourseID,
					TermCode:    h.TermCode,
					SubjectCode: h.SubjectCode,
					Designation: h.Designation,
					Title:       h.Title,
				}
			} else if req.CourseID == "" || req.SubjectCode == "" {
				return fmt.Errorf("either --search or both --course-id and --subject are required")
			}

			res, err := client.AddCourse(ctx, req)
			if err != nil {
				return err
			}
			v := res.Course
			if res.AlreadyWatched {
				fmt.Fprintf(cmd.OutOrStdout(), "already watching %s (%s)\n", label(v), v.CourseID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (%s): %d open seats\n", label(v), v.CourseID, v.OpenSeats)
			return nil
		},
	}

	c.Flags().StringVar(&search, "search", "", "add the first catalog hit for this query")
	c.Flags().StringVar(&req.CourseID, "course-id", "", "catalog course id, e.g. 024798")
	c.Flags().StringVar(&req.TermCode, "term", "", "term code (default: configured term)")
	c.Flags().StringVar(&req.SubjectCode, "subject", "", "subject code, e.g. 266")
	c.Flags().StringVar(&req.Designation, "designation", "", "course designation, e.g. \"COMP SCI 640\"")
	c.Flags().StringVar(&req.Title, "title", "", "course title")
	return c
}

func newCourseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List watched courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			vs, err := client.Courses(context.Background())
			if err != nil {
				return err
			}
			printCourses(cmd.OutOrStdout(), vs)
			return nil
		},
	}
}

func newCourseRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <course-id>",
		Short: "Stop watching a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			if err := client.RemoveCourse(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func newCourseSyllabusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "syllabus <course-id>",
		Short: "Show the instructor-provided description of a watched course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			syl, err := client.Syllabus(context.Background(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range []struct{ name, value string }{
				{"Description", syl.Description},
				{"Format", syl.Format},
				{"Topics", syl.Topics},
				{"Learning outcomes", syl.LearningOutcomes},
			} {
				if f.value != "" {
					fmt.Fprintf(out, "%s:\n  %s\n", f.name, strings.TrimSpace(f.value))
				}
			}
			return nil
		},
	}
}

func newCourseSimilarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "similar <course-id>",
		Short: "List same-level courses in the subject of a watched course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			found, err := client.SimilarCourses(context.Background(), args[0])
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no similar courses")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCOURSE\tSTATUS\tOPEN\tWAITLIST\tMEETS\tINSTRUCTOR")
			for _, c := range found {
				fmt.Fprintf(tw, "%s\t%s %s %s\t%s\t%d\t%d\t%s\t%s\n",
					c.CourseID, c.Subject, c.CatalogNumber, c.Title, c.Status, c.OpenSeats, c.Waitlist, c.MeetingTimes, c.Instructor)
			}
			return tw.Flush()
		},
	}
}

func printCourses(out io.Writer, vs []scheduler.View) {
	if len(vs) == 0 {
		fmt.Fprintln(out, "no courses watched")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOURSE\tSTATUS\tOPEN\tLAST POLLED")
	for _, v := range vs {
		status := make([]string, 0, len(v.Sections))
		for _, s := range v.Sections {
			status = append(status, string(s.Status))
		}
		polled := "-"
		if !v.LastPolledAt.IsZero() {
			polled = v.LastPolledAt.Local().Format(time.Kitchen)
		}
		if v.Stale {
			polled += " (stale)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", v.CourseID, label(v), strings.Join(status, ","), v.OpenSeats, polled)
	}
	tw.Flush()
}

func label(v scheduler.View) string {
	if v.Designation == "" {
		return v.Title
	}
	if v.Title == "" {
		return v.Designation
	}
	return v.Designation + " " + v.Title
}
