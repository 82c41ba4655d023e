package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listSorted bool
	listValues bool
)

var listCmd = &cobra.Command{
	Use:   "list <DATABASE>",
	Short: "List out keys existing in the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVarP(&listSorted, "sorted", "s", false, "print out keys in sorted order")
	listCmd.Flags().BoolVarP(&listValues, "values", "v", false, "include values when printing")
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openDatabase(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	ns := store.Namespace(nsTag)
	var keys []string
	if listSorted {
		keys, err = ns.SortedKeys()
	} else {
		keys, err = ns.Keys()
	}
	if err != nil {
		return err
	}

	fmt.Println("Keys Present in Database:")
	for _, key := range keys {
		if !listValues {
			fmt.Println(key)
			continue
		}
		var value interface{}
		if err := store.Get(key, &value); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", key, renderValue(value))
	}
	return nil
}
