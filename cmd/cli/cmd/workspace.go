package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dockforge/dockforge/pkg/client"
	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage prep workspaces",
	Long:    `Create and list docking-preparation workspaces.`,
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")

		c := client.NewClient(baseURL, apiKey)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		ws, err := c.CreateWorkspace(ctx, owner)
		if err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}

		fmt.Printf("✓ Workspace created: %s\n", ws.ID)
		fmt.Printf("  Owner: %s\n", ws.Owner)
		return nil
	},
}

var workspaceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, apiKey)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		workspaces, err := c.ListWorkspaces(ctx)
		if err != nil {
			return fmt.Errorf("failed to list workspaces: %w", err)
		}

		if len(workspaces) == 0 {
			fmt.Println("No workspaces found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tOWNER\tCREATED")
		for _, ws := range workspaces {
			created := ""
			if !ws.CreatedAt.IsZero() {
				created = ws.CreatedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", ws.ID, ws.Owner, created)
		}
		w.Flush()

		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <workspace-id> <file>",
	Short: "Stage a receptor, ligand, or zip archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := args[0]
		path := args[1]
		role, _ := cmd.Flags().GetString("role")

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		c := client.NewClient(baseURL, apiKey)
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		staged, err := c.UploadFile(ctx, workspaceID, role, filepath.Base(path), f)
		if err != nil {
			return fmt.Errorf("failed to upload: %w", err)
		}

		fmt.Printf("✓ Staged %d file(s)\n", len(staged))
		for _, s := range staged {
			fmt.Printf("  %s (%s)\n", s.StoredPath, s.Kind)
		}
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <workspace-id> <pdb-code>",
	Short: "Fetch a receptor structure from RCSB",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := args[0]
		code := args[1]
		chains, _ := cmd.Flags().GetString("chains")

		c := client.NewClient(baseURL, apiKey)
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		staged, err := c.FetchStructure(ctx, workspaceID, code, chains)
		if err != nil {
			return fmt.Errorf("failed to fetch structure: %w", err)
		}

		for _, s := range staged {
			fmt.Printf("✓ Fetched %s -> %s\n", code, s.StoredPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(fetchCmd)

	workspaceCmd.AddCommand(workspaceCreateCmd)
	workspaceCmd.AddCommand(workspaceListCmd)

	workspaceCreateCmd.Flags().String("owner", "", "Owner identity (email or username)")

	uploadCmd.Flags().String("role", "receptors", "Staging role (receptors, ligands, centers)")

	fetchCmd.Flags().String("chains", "", "Comma-separated chain IDs to keep (empty keeps all)")
}
