package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/mychat/chatlink/pkg/chatlink/api"
	"github.com/spf13/cobra"
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List your chat sessions",
	Long: `List the chat sessions of the authenticated user or counselor, newest first.

Examples:
  chatlink sessions
  chatlink sessions --page 2 --page-size 10`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

var (
	sessionsPage     int
	sessionsPageSize int
)

func init() {
	rootCmd.AddCommand(sessionsCmd)

	sessionsCmd.Flags().IntVar(&sessionsPage, "page", 1, "page number (1-based)")
	sessionsCmd.Flags().IntVar(&sessionsPageSize, "page-size", 20, "page size")
}

func runSessions(cmd *cobra.Command, args []string) error {
	s, err := loadSettings("")
	if err != nil {
		return err
	}
	defer s.logger.Sync()

	client, err := s.apiClient()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	page, err := client.ListSessions(ctx, api.Page{Page: sessionsPage, PageSize: sessionsPageSize})
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	return writeSessions(cmd.OutOrStdout(), page)
}

func writeSessions(out io.Writer, page *api.SessionPage) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORDER\tSTATUS\tSTARTED\tDURATION")
	for _, sess := range page.Sessions {
		started := "-"
		if sess.StartTime != nil {
			started = sess.StartTime.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
			sess.ID,
			sess.OrderID,
			sess.StatusText(),
			started,
			time.Duration(sess.Duration)*time.Second,
		)
	}
	fmt.Fprintf(w, "\n%d of %d sessions\n", len(page.Sessions), page.Total)
	return w.Flush()
}
