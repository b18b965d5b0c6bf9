package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/sshproxy/internal/artifact"
)

var checkCmd = &cobra.Command{
	Use:   "check-response <file>",
	Short: "Split a saved sshproxy response and report what it contains",
	Long: `Run the response splitter against a saved body, using the markers from
the config file. Use it to confirm the configured markers match what the
service actually sends. Nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", args[0], err)
	}

	pair, err := artifact.Split(body, cfg.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s  %s\n", errorStyle.Render("FAIL"), args[0])
		return err
	}

	fmt.Printf("%s    %s\n", successStyle.Render("OK"), args[0])
	fmt.Printf("%s %d bytes\n", labelStyle.Render("Private key:"), len(pair.PrivateKey))
	fmt.Printf("%s %d bytes\n", labelStyle.Render("Certificate:"), len(pair.Certificate))

	summary, err := artifact.Inspect(pair)
	if err != nil {
		fmt.Println(warningStyle.Render("Not inspectable as OpenSSH key material:"), err)
		return nil
	}
	fmt.Print(summary)
	if !summary.MatchesKey {
		fmt.Println(warningStyle.Render("Certificate does not match the private key"))
	}
	return nil
}
