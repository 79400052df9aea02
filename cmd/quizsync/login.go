package main

import (
	"fmt"
	"time"

	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/remote"
	"github.com/smith3v/quizsync/pkg/store"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <account-id>",
	Short: "Sign in and move this device's data to the account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		accountID := args[0]
		ctx := cmd.Context()

		if token == "" && config.AppConfig.Server.JWTSecret != "" {
			auth, err := remote.NewAuthenticator(config.AppConfig.Server.JWTSecret)
			if err != nil {
				return err
			}
			if token, err = auth.IssueToken(accountID, ttl); err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
		}

		a, err := openApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		if token != "" {
			if err := a.store.SetKV(ctx, store.KeyRemoteToken, token); err != nil {
				return err
			}
		}
		if err := a.resolver.SignIn(ctx, accountID, a.engine); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", accountID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out; the device keeps syncing under its anonymous id",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.resolver.SignOut(ctx); err != nil {
			return err
		}
		if err := a.store.DeleteKV(ctx, store.KeyRemoteToken); err != nil {
			return err
		}
		anonID, err := a.resolver.AnonymousID(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed out, syncing as %s.\n", anonID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)
	loginCmd.Flags().String("token", "", "bearer token for the remote store; issued from server.jwt_secret when empty")
	loginCmd.Flags().Duration("ttl", 30*24*time.Hour, "lifetime of an issued token")
}
