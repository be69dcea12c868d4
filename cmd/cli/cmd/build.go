package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dockforge/dockforge/pkg/client"
	"github.com/dockforge/dockforge/pkg/types"
	"github.com/spf13/cobra"
)

var centerCmd = &cobra.Command{
	Use:   "center <workspace-id> <receptor-tag>",
	Short: "Record a docking-box center for a receptor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, _ := cmd.Flags().GetFloat64("x")
		y, _ := cmd.Flags().GetFloat64("y")
		z, _ := cmd.Flags().GetFloat64("z")
		size, _ := cmd.Flags().GetFloat64("size")

		c := client.NewClient(baseURL, apiKey)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req := types.CenterRequest{Tag: args[1], X: x, Y: y, Z: z, Size: size}
		if err := c.SaveCenter(ctx, args[0], req); err != nil {
			return fmt.Errorf("failed to save center: %w", err)
		}

		fmt.Printf("✓ Center saved for %s\n", args[1])
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <workspace-id>",
	Short: "Assemble the job bundle for a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := types.JobParameters{}
		params.Queue, _ = cmd.Flags().GetString("queue")
		params.Project, _ = cmd.Flags().GetString("project")
		params.Walltime, _ = cmd.Flags().GetString("walltime")
		params.Cores, _ = cmd.Flags().GetInt("cores")
		params.MemPerCoreMB, _ = cmd.Flags().GetInt("mem-per-core")
		params.NumConformers, _ = cmd.Flags().GetInt("conformers")
		params.NumPoses, _ = cmd.Flags().GetInt("poses")
		params.ExecutablePath, _ = cmd.Flags().GetString("executable")

		c := client.NewClient(baseURL, apiKey)
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		archive, manifest, err := c.Build(ctx, args[0], params)
		if err != nil {
			return fmt.Errorf("failed to build bundle: %w", err)
		}

		fmt.Printf("✓ Bundle built: %s\n", archive)
		for _, entry := range manifest {
			fmt.Printf("  %s\n", entry)
		}
		return nil
	},
}

var bundleCmd = &cobra.Command{
	Use:   "bundle <workspace-id>",
	Short: "Download the newest job bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = args[0] + ".zip"
		}

		out, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer out.Close()

		c := client.NewClient(baseURL, apiKey)
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		if err := c.DownloadBundle(ctx, args[0], out); err != nil {
			os.Remove(output)
			return fmt.Errorf("failed to download bundle: %w", err)
		}

		fmt.Printf("✓ Bundle saved to %s\n", output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(centerCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(bundleCmd)

	centerCmd.Flags().Float64("x", 0, "Box center X coordinate")
	centerCmd.Flags().Float64("y", 0, "Box center Y coordinate")
	centerCmd.Flags().Float64("z", 0, "Box center Z coordinate")
	centerCmd.Flags().Float64("size", 0, "Box edge length in angstroms (0 uses the default)")

	buildCmd.Flags().String("queue", "", "Cluster queue (server default when empty)")
	buildCmd.Flags().String("project", "", "Accounting project (server default when empty)")
	buildCmd.Flags().String("walltime", "", "Walltime limit, HH:MM (server default when empty)")
	buildCmd.Flags().Int("cores", 0, "Cores per job (server default when 0)")
	buildCmd.Flags().Int("mem-per-core", 0, "Memory per core in MB (server default when 0)")
	buildCmd.Flags().Int("conformers", 0, "Conformers per ligand (0 skips conformer generation)")
	buildCmd.Flags().Int("poses", 0, "Poses per docking run (server default when 0)")
	buildCmd.Flags().String("executable", "", "Docking executable path inside the job")

	bundleCmd.Flags().String("output", "", "Output path (defaults to <workspace-id>.zip)")
}
