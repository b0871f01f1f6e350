package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/academicchain/platform/internal/model"
	"github.com/academicchain/platform/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke the API keys institutions use against the issuance services.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		institutionID string
		name          string
		role          string
		expiresIn     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key for an institution. The raw key is shown once and cannot be retrieved again.",
		Example: `  acp key create --institution 4f7c... --name "Registrar integration"
  acp key create --name "Platform admin key" --role admin --expires-in 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(institutionID, name, role, expiresIn)
		},
	}

	cmd.Flags().StringVar(&institutionID, "institution", "", "Institution ID to bind the key to (omit for a platform admin key)")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable label for the key (required)")
	cmd.Flags().StringVar(&role, "role", service.DefaultKeyRole, "Role recorded on the key")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Lifetime of the key (0 means no expiry)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runKeyCreate(institutionID, name, role string, expiresIn time.Duration) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keySvc := service.NewKeyService(st)

	owner := institutionID
	if owner == "" {
		owner = model.AdminOwner
	}

	var expiresAt *time.Time
	if expiresIn > 0 {
		t := time.Now().UTC().Add(expiresIn)
		expiresAt = &t
	}

	record, rawKey, err := keySvc.Generate(context.Background(), owner, name, role, expiresAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:   %s\n", rawKey)
	fmt.Printf("  Name:  %s\n", record.Name)
	fmt.Printf("  Role:  %s\n", record.Role)
	if record.ExpiresAt != nil {
		fmt.Printf("  Expires: %s\n", record.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keySvc := service.NewKeyService(st)

	keys, err := keySvc.List(context.Background())
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(keys)
	}

	if len(keys) == 0 {
		fmt.Println("No API keys configured. Use 'acp key create' to create one.")
		return nil
	}

	fmt.Printf("%-38s %-18s %-24s %-24s %-8s\n", "ID", "PREFIX", "NAME", "INSTITUTION", "ACTIVE")
	fmt.Printf("%-38s %-18s %-24s %-24s %-8s\n", "--", "------", "----", "-----------", "------")
	for _, k := range keys {
		active := "yes"
		if !k.IsActive {
			active = "no"
		}
		fmt.Printf("%-38s %-18s %-24s %-24s %-8s\n", k.ID, k.KeyPrefix, k.Name, k.InstitutionName, active)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key by its ID",
		Long:  "Delete an API key, invalidating it for all further validation calls.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(id string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keySvc := service.NewKeyService(st)

	if err := keySvc.Revoke(context.Background(), id); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key %q\n", id)
	return nil
}
