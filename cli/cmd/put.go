package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	putKey   string
	putValue string
)

var putCmd = &cobra.Command{
	Use:   "put <DATABASE>",
	Short: "Adds a new key and value, encrypts and adds to storage",
	Args:  cobra.ExactArgs(1),
	RunE:  runPut,
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringVarP(&putKey, "key", "k", "", "entry key")
	putCmd.Flags().StringVarP(&putValue, "value", "v", "", "entry value")
	_ = putCmd.MarkFlagRequired("key")
	_ = putCmd.MarkFlagRequired("value")
}

func runPut(cmd *cobra.Command, args []string) error {
	database := args[0]
	store, err := openDatabase(database)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Namespace(nsTag).Put(putKey, putValue); err != nil {
		return err
	}
	if err := store.Commit(); err != nil {
		return err
	}
	fmt.Printf("Inserting key-value entry into database `%s`\n", database)
	return nil
}
