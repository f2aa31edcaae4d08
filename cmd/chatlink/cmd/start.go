package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mychat/chatlink/pkg/chatlink/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start <order-id>",
	Short: "Start the chat session of a paid order",
	Long: `Start the chat session of a paid order and print its session ID.

If the order already has a session its ID is printed and a warning is logged.

Examples:
  chatlink start 1001
  chatlink connect $(chatlink start 1001)`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	orderID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order ID %q: %w", args[0], err)
	}

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

	sessionID, err := client.StartSession(ctx, orderID)
	if err != nil {
		var apiErr *api.Error
		if !errors.As(err, &apiErr) || sessionID == 0 {
			return fmt.Errorf("failed to start session: %w", err)
		}
		s.logger.Warn("Order already has a session",
			zap.Uint64("order_id", orderID),
			zap.Uint64("session_id", sessionID),
			zap.String("msg", apiErr.Msg),
		)
	}

	fmt.Fprintln(cmd.OutOrStdout(), sessionID)
	return nil
}
