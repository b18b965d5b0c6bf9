package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/sshproxy/internal/issuer"
	"github.com/benaskins/sshproxy/internal/keychain"
	"github.com/benaskins/sshproxy/internal/keytool"
)

var statusCmd = &cobra.Command{
	Use:   "status [user]",
	Short: "Show stored secrets and the current certificate",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("%s %s\n", labelStyle.Render("User:   "), user)
	fmt.Printf("%s %s\n", labelStyle.Render("Backend:"), sess.system.Backend())
	fmt.Printf("%s %s (scope %s)\n\n", labelStyle.Render("Service:"), cfg.URL, cfg.Scope)

	names := namesFor(cfg)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SECRET\tSTORED\tUPDATED\tSOURCE")
	for _, row := range []struct{ label, service string }{
		{"password", names.PasswordService},
		{"otp secret", names.SeedService},
	} {
		stored, err := present(sess.system, row.service, user)
		if err != nil {
			w.Flush()
			return err
		}
		updated, source := "-", "-"
		if meta := sess.store.Metadata(); meta != nil {
			if m := meta.Get(keychain.MetadataKey(row.service, user)); m != nil {
				updated = m.UpdatedAt.Local().Format(time.DateTime)
				source = m.Source
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.label, yesNo(stored), updated, source)
	}
	w.Flush()
	fmt.Println()

	keyPath, err := keyPathFor(cfg)
	if err != nil {
		return err
	}
	paths := issuer.PathsFor(keyPath)
	if _, err := os.Stat(paths.Certificate); err != nil {
		fmt.Printf("%s %s\n", labelStyle.Render("Certificate:"), warningStyle.Render("none at "+paths.Certificate))
		return nil
	}

	tool, err := keytool.New(cfg.KeyTool)
	if err != nil {
		return err
	}
	v, err := tool.InspectValidity(context.Background(), paths.Certificate)
	if err != nil {
		fmt.Printf("%s %s (%v)\n", labelStyle.Render("Certificate:"), warningStyle.Render("validity unknown"), err)
		return nil
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Certificate:"), paths.Certificate)
	fmt.Printf("%s %s\n", labelStyle.Render("Validity:   "), describeValidity(v, time.Now()))
	return nil
}

// present reports whether a secret exists without recording a read.
func present(store keychain.Store, service, account string) (bool, error) {
	_, err := store.Get(service, account)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, keychain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func describeValidity(v keytool.Validity, now time.Time) string {
	switch {
	case v.Forever():
		return v.String()
	case v.Remaining(now) == 0:
		return expiredStyle.Render(v.String()) + " " + errorStyle.Render("expired")
	default:
		left := v.Remaining(now).Round(time.Minute)
		return fmt.Sprintf("%s (%s left)", v.String(), left)
	}
}
