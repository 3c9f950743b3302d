// Command setadmin grants or revokes the admin custom claim on a Firebase user.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"feedra/internal/identity"
	"feedra/internal/platform/config"
	"feedra/internal/platform/firebase"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var revoke bool
	var credentials string

	cmd := &cobra.Command{
		Use:   "setadmin <uid>",
		Short: "Grant the admin role to a Firebase user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if credentials != "" {
				cfg.Firestore.CredentialsFile = credentials
			}
			return setAdmin(cmd.Context(), cfg.Firestore, args[0], !revoke, cmd)
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the admin role instead of granting it")
	cmd.Flags().StringVar(&credentials, "credentials", "", "service account key file (defaults to GOOGLE_APPLICATION_CREDENTIALS)")
	return cmd
}

func setAdmin(ctx context.Context, cfg config.FirestoreConfig, uid string, admin bool, cmd *cobra.Command) error {
	app, err := firebase.New(ctx, cfg)
	if err != nil {
		return err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return err
	}

	user, err := client.GetUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("look up user %s: %w", uid, err)
	}
	claims := user.CustomClaims
	if claims == nil {
		claims = map[string]any{}
	}
	if admin {
		claims[identity.AdminClaim] = true
	} else {
		delete(claims, identity.AdminClaim)
	}
	if err := client.SetCustomUserClaims(ctx, uid, claims); err != nil {
		return fmt.Errorf("set claims for %s: %w", uid, err)
	}

	verb := "granted to"
	if !admin {
		verb = "revoked from"
	}
	cmd.Printf("admin role %s %s\n", verb, uid)
	return nil
}
