package cli

import (
	"fmt"
	"os"

	"github.com/pquerna/otp/totp"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the administrator account",
		Long:  "Produce the password hash and TOTP secret that the dashboard login checks against.",
	}

	cmd.AddCommand(newAdminHashPasswordCmd())
	cmd.AddCommand(newAdminTOTPSetupCmd())

	return cmd
}

// ---------- admin hash-password ----------

func newAdminHashPasswordCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash an admin password for the config file",
		Long:  "Generate a bcrypt hash to set as auth.admin_password_hash (or ACP_AUTH_ADMIN_PASSWORD_HASH).",
		Example: `  acp admin hash-password               # prompts for the password
  acp admin hash-password --password s3cret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminHashPassword(password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password to hash (prompted if omitted)")

	return cmd
}

func runAdminHashPassword(password string) error {
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	fmt.Println("Set this in acp.yaml under auth.admin_password_hash:")
	fmt.Println()
	fmt.Printf("  %s\n", string(hash))
	return nil
}

// ---------- admin totp-setup ----------

func newAdminTOTPSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totp-setup",
		Short: "Generate a TOTP secret for two-factor login",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := totp.Generate(totp.GenerateOpts{
				Issuer:      "AcademicChain",
				AccountName: "admin",
			})
			if err != nil {
				return fmt.Errorf("generate totp secret: %w", err)
			}

			fmt.Println("Set this in acp.yaml under auth.totp_secret:")
			fmt.Println()
			fmt.Printf("  %s\n", key.Secret())
			fmt.Println()
			fmt.Println("Enrollment URL for an authenticator app:")
			fmt.Println()
			fmt.Printf("  %s\n", key.URL())
			return nil
		},
	}

	return cmd
}
