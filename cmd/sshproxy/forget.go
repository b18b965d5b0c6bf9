package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:     "forget [user]",
	Short:   "Delete the stored password and OTP secret",
	Aliases: []string{"rm"},
	Args:    cobra.MaximumNArgs(1),
	RunE:    runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}

func runForget(cmd *cobra.Command, args []string) error {
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

	names := namesFor(cfg)
	for _, service := range []string{names.PasswordService, names.SeedService} {
		if err := sess.store.Delete(service, user); err != nil {
			return err
		}
	}
	fmt.Println(successStyle.Render("Stored secrets removed"), "for", user)
	return nil
}
