package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// endCmd represents the end command
var endCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End a chat session",
	Long: `End a chat session and print its billed duration.

The other participant receives a session_end event.

Examples:
  chatlink end 42`,
	Args: cobra.ExactArgs(1),
	RunE: runEnd,
}

func init() {
	rootCmd.AddCommand(endCmd)
}

func runEnd(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	s, err := loadSettings(sessionID)
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

	d, err := client.EndSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	s.logger.Info("Session ended", zap.String("session_id", sessionID), zap.Duration("duration", d))
	fmt.Fprintln(cmd.OutOrStdout(), d)
	return nil
}
