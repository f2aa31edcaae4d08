package cmd

import (
	"fmt"

	"github.com/mychat/chatlink/pkg/chatlink/api"
	"github.com/mychat/chatlink/pkg/chatlink/filter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print the stored messages of a chat session",
	Long: `Print the stored messages of a chat session, oldest first, as JSON lines.

Without --page every page is fetched. The --filter query sees each message in
its wire form, the same as chatlink connect.

Examples:
  chatlink history 42
  chatlink history 42 --page 2 --page-size 50
  chatlink history 42 --filter '.payload.content'`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var (
	historyFilter   string
	historyPage     int
	historyPageSize int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyFilter, "filter", "f", "", "jq query applied to every printed message")
	historyCmd.Flags().IntVar(&historyPage, "page", 0, "fetch a single page (1-based)")
	historyCmd.Flags().IntVar(&historyPageSize, "page-size", 20, "page size used with --page")
}

func runHistory(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	s, err := loadSettings(sessionID)
	if err != nil {
		return err
	}
	logger := s.logger
	defer logger.Sync()

	query := s.cfg.Filter
	if cmd.Flags().Changed("filter") {
		query = historyFilter
	}
	messageFilter, err := filter.Compile(query, logger)
	if err != nil {
		return err
	}

	client, err := s.apiClient()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	printer := newEventPrinter(cmd.OutOrStdout(), messageFilter, sessionID, logger)

	if historyPage > 0 {
		page, err := client.GetMessages(ctx, sessionID, api.Page{Page: historyPage, PageSize: historyPageSize})
		if err != nil {
			return fmt.Errorf("failed to get messages: %w", err)
		}
		for _, msg := range page.Messages {
			printer.PrintMessage(ctx, msg)
		}
		logger.Info("Fetched message page",
			zap.Int("page", historyPage),
			zap.Int("messages", len(page.Messages)),
			zap.Int64("total", page.Total),
		)
		return nil
	}

	messages, err := client.History(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}
	for _, msg := range messages {
		printer.PrintMessage(ctx, msg)
	}
	logger.Info("Fetched history", zap.Int("messages", len(messages)))

	return nil
}
