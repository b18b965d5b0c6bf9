package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benaskins/sshproxy/internal/issuer"
	"github.com/benaskins/sshproxy/internal/keytool"
	"github.com/benaskins/sshproxy/internal/sshproxy"
)

func runIssue(cmd *cobra.Command, args []string) error {
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

	if updatePassword || updateSecret {
		return runUpdate(sess, cfg, user)
	}

	keyPath, err := keyPathFor(cfg)
	if err != nil {
		return err
	}
	tool, err := keytool.New(cfg.KeyTool)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	iss := &issuer.Issuer{
		Store:   sess.store,
		Names:   namesFor(cfg),
		Signer:  sshproxy.New(cfg.URL, sshproxy.WithTimeout(cfg.Timeout.Duration)),
		KeyTool: tool,
		Format:  cfg.Format,
		Scope:   cfg.Scope,
		Audit:   sess.recorder,
		Logger:  slog.Default(),
	}

	fmt.Printf("Requesting SSH key for user: %s\n", user)
	result, err := iss.Run(ctx, user, keyPath)
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Successfully obtained ssh key:"), result.Paths.PrivateKey)
	if result.ValidityErr != nil {
		fmt.Println(warningStyle.Render("Key validity unknown"))
		return nil
	}
	fmt.Printf("Key is %s\n", result.Validity)
	return nil
}
