package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var getKey string

var getCmd = &cobra.Command{
	Use:   "get <DATABASE>",
	Short: "Retrieves and decrypts value in storage by key",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVarP(&getKey, "key", "k", "", "entry key")
	_ = getCmd.MarkFlagRequired("key")
}

func runGet(cmd *cobra.Command, args []string) error {
	store, err := openDatabase(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	var value interface{}
	if err := store.Namespace(nsTag).Get(getKey, &value); err != nil {
		return err
	}
	fmt.Println(renderValue(value))
	return nil
}

// renderValue prints strings verbatim and everything else as JSON.
func renderValue(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	out, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(out)
}
