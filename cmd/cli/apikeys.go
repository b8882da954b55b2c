package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/auth"
)

// apiKeysCmd represents the apikey command group.
var apiKeysCmd = &cobra.Command{
	Use:     "apikey",
	Aliases: []string{"apikeys", "key"},
	Short:   "Create API keys for the HTTP API",
	Long: `The API server accepts keys whose bcrypt hashes are listed under
api.api_keys in the configuration. Keys themselves are never stored.

Examples:
  # Create a key and the hash to put in the configuration
  netsweep apikey generate

  # Hash an existing key
  netsweep apikey hash ns_abcdefghijklmnop`,
}

var apiKeysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new API key",
	Long: `Generate a random API key and its bcrypt hash. The key is shown once;
add the hash to api.api_keys and restart the server.`,
	Args: cobra.NoArgs,
	RunE: runAPIKeysGenerate,
}

var apiKeysHashCmd = &cobra.Command{
	Use:   "hash [key]",
	Short: "Hash an API key for the configuration",
	Long:  `Print the bcrypt hash of a key. Without an argument the key is read from stdin.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAPIKeysHash,
}

func init() {
	rootCmd.AddCommand(apiKeysCmd)
	apiKeysCmd.AddCommand(apiKeysGenerateCmd)
	apiKeysCmd.AddCommand(apiKeysHashCmd)
}

func runAPIKeysGenerate(cmd *cobra.Command, _ []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}

	key, err := auth.GenerateAPIKey()
	if err != nil {
		return fmt.Errorf("failed to generate API key: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputFormat == formatJSON {
		return printJSON(out, key)
	}

	fmt.Fprintf(out, "API key:  %s\n", key.Key)
	fmt.Fprintf(out, "Prefix:   %s\n", key.KeyPrefix)
	fmt.Fprintf(out, "Hash:     %s\n\n", key.Hash)
	fmt.Fprintln(out, "The key is not shown again. Add the hash to your configuration:")
	fmt.Fprintln(out, "  api:")
	fmt.Fprintln(out, "    api_keys:")
	_, err = fmt.Fprintf(out, "      - %q\n", key.Hash)
	return err
}

func runAPIKeysHash(cmd *cobra.Command, args []string) error {
	key, err := readKey(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if !auth.IsValidAPIKeyFormat(key) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: key does not have the %s_ format of generated keys\n", auth.APIKeyPrefix)
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return err
}

func readKey(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("no API key given")
	}
	return key, nil
}
