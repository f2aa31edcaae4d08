package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is reported to the OpenTelemetry instrumentation scope.
var Version = "dev"

var (
	verbose     bool
	debug       bool
	logLevel    string
	configPaths []string
	envFile     string
	originFlag  string
	tokenFlag   string
	apiURLFlag  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatlink",
	Short: "Counseling chat session client",
	Long: `chatlink connects to counseling chat sessions over WebSocket and talks
to the chat REST API.

Connection settings are taken from flags, then from the CHATLINK_ORIGIN and
CHATLINK_TOKEN environment variables (a .env file is loaded first), then from
HCL configuration files given with --config.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringArrayVarP(&configPaths, "config", "c", nil, "configuration file or directory (repeatable)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load")
	rootCmd.PersistentFlags().StringVar(&originFlag, "origin", "", "chat server origin, e.g. https://chat.example.com")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "REST API base URL (default: <origin>/api)")
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetDebug returns the debug flag value
func GetDebug() bool {
	return debug
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("failed to load env file %s: %w", path, err)
}
