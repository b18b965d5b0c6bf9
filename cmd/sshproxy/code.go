package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/sshproxy/internal/credential"
)

var codeCmd = &cobra.Command{
	Use:   "code [user]",
	Short: "Print the current one-time code",
	Long:  "Compute the current TOTP code from the stored OTP secret. The code is never stored.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCode,
}

func init() {
	rootCmd.AddCommand(codeCmd)
}

func runCode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	user, err := userFor(args, cfg)
	if err != nil {
		return err
	}
	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	creds, err := credential.Load(sess.store, namesFor(cfg), user)
	if err != nil {
		return err
	}
	code, err := creds.Code(time.Now())
	if err != nil {
		return err
	}
	fmt.Println(code)
	return nil
}
