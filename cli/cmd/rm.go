package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmKey string

var rmCmd = &cobra.Command{
	Use:   "rm <DATABASE>",
	Short: "Deletes a key-value pair by key",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().StringVarP(&rmKey, "key", "k", "", "entry key")
	_ = rmCmd.MarkFlagRequired("key")
}

func runRm(cmd *cobra.Command, args []string) error {
	store, err := openDatabase(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Namespace(nsTag).Delete(rmKey); err != nil {
		return err
	}
	if err := store.Commit(); err != nil {
		return err
	}
	fmt.Printf("Removed entry by key `%s`\n", rmKey)
	return nil
}
