package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/academicchain/platform/internal/model"
	"github.com/academicchain/platform/internal/store"
)

func newInstitutionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "institution",
		Aliases: []string{"inst"},
		Short:   "Manage partner institutions",
		Long:    "Create and inspect partner institutions and adjust their credit balances.",
	}

	cmd.AddCommand(newInstitutionCreateCmd())
	cmd.AddCommand(newInstitutionListCmd())
	cmd.AddCommand(newInstitutionCreditsCmd())

	return cmd
}

// ---------- institution create ----------

func newInstitutionCreateCmd() *cobra.Command {
	var (
		name    string
		plan    string
		credits int64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new partner institution",
		Example: `  acp institution create --name "MIT" --plan Enterprise --credits 500
  acp institution create --name "Springfield Community College"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstitutionCreate(name, plan, credits)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Institution name (required)")
	cmd.Flags().StringVar(&plan, "plan", "Startup", "Billing plan label")
	cmd.Flags().Int64Var(&credits, "credits", 0, "Initial credit balance")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runInstitutionCreate(name, plan string, credits int64) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	inst := &model.Institution{
		Name:    name,
		Plan:    plan,
		Credits: credits,
	}
	if err := st.CreateInstitution(context.Background(), inst); err != nil {
		return fmt.Errorf("create institution: %w", err)
	}

	fmt.Println("Institution created:")
	fmt.Println()
	fmt.Printf("  ID:      %s\n", inst.ID)
	fmt.Printf("  Name:    %s\n", inst.Name)
	fmt.Printf("  Slug:    %s\n", inst.Slug)
	fmt.Printf("  Plan:    %s\n", inst.Plan)
	fmt.Printf("  Credits: %d\n", inst.Credits)
	return nil
}

// ---------- institution list ----------

func newInstitutionListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all partner institutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstitutionList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runInstitutionList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	institutions, err := st.ListInstitutions(context.Background())
	if err != nil {
		return fmt.Errorf("list institutions: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(institutions)
	}

	if len(institutions) == 0 {
		fmt.Println("No institutions configured. Use 'acp institution create' to create one.")
		return nil
	}

	fmt.Printf("%-38s %-28s %-10s %-12s %-8s\n", "ID", "NAME", "STATUS", "PLAN", "CREDITS")
	fmt.Printf("%-38s %-28s %-10s %-12s %-8s\n", "--", "----", "------", "----", "-------")
	for _, inst := range institutions {
		fmt.Printf("%-38s %-28s %-10s %-12s %-8d\n", inst.ID, inst.Name, inst.Status, inst.Plan, inst.Credits)
	}

	return nil
}

// ---------- institution credits ----------

func newInstitutionCreditsCmd() *cobra.Command {
	var (
		amount  int64
		setMode bool
	)

	cmd := &cobra.Command{
		Use:   "credits <institution-id>",
		Short: "Add to or set an institution's credit balance",
		Example: `  acp institution credits 4f7c... --amount 100
  acp institution credits 4f7c... --amount 0 --set   # panic button`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstitutionCredits(args[0], amount, setMode)
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "Credit amount (required)")
	cmd.Flags().BoolVar(&setMode, "set", false, "Set the balance to the amount instead of adding")
	cmd.MarkFlagRequired("amount")

	return cmd
}

func runInstitutionCredits(id string, amount int64, setMode bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	mode := store.CreditAdd
	if setMode {
		mode = store.CreditSet
	}

	balance, err := st.AdjustCredits(context.Background(), id, amount, mode)
	if err != nil {
		return fmt.Errorf("adjust credits: %w", err)
	}

	fmt.Printf("Credit balance is now %d\n", balance)
	return nil
}
