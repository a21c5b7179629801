package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Browse stored items",
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored items, newest first",
	Args:  cobra.NoArgs,
	RunE:  runItemsList,
}

var itemsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Print one item as JSON",
	Long:  `Print one item as JSON. The id may be any alias the item was merged under.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsGet,
}

var itemsSimilarCmd = &cobra.Command{
	Use:   "similar [id]",
	Short: "List items similar to the given item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsSimilar,
}

func init() {
	itemsListCmd.Flags().StringP("type", "t", "", "filter by type (tool, model, paper, article)")
	itemsListCmd.Flags().Int("page", 1, "page number")
	itemsListCmd.Flags().Int("page-size", 20, "items per page")
	itemsListCmd.Flags().Bool("json", false, "print the page as JSON")
	itemsSimilarCmd.Flags().IntP("limit", "n", 10, "maximum number of items")
	itemsSimilarCmd.Flags().Bool("json", false, "print the results as JSON")

	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsGetCmd)
	itemsCmd.AddCommand(itemsSimilarCmd)
	rootCmd.AddCommand(itemsCmd)
}

func runItemsList(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	itemType, _ := cmd.Flags().GetString("type")  //nolint:errcheck // flag registered in init
	page, _ := cmd.Flags().GetInt("page")          //nolint:errcheck // flag registered in init
	pageSize, _ := cmd.Flags().GetInt("page-size") //nolint:errcheck // flag registered in init

	result, err := a.Items.List(cmd.Context(), domain.ItemType(strings.ToLower(itemType)), page, pageSize)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON { //nolint:errcheck // flag registered in init
		return printJSON(cmd, result)
	}

	if len(result.Items) == 0 {
		cmd.Println("No items found.")
		return nil
	}
	for _, item := range result.Items {
		printItemLine(cmd, item)
	}
	cmd.Println(styles.Muted.Render(fmt.Sprintf("Page %d of %d (%d items)", result.Page, result.TotalPages(), result.Total)))
	return nil
}

func runItemsGet(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	item, err := a.Items.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	return printJSON(cmd, item)
}

func runItemsSimilar(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	limit, _ := cmd.Flags().GetInt("limit") //nolint:errcheck // flag registered in init
	scored, err := a.Items.Similar(cmd.Context(), args[0], limit)
	if err != nil {
		return fmt.Errorf("similar items: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON { //nolint:errcheck // flag registered in init
		return printJSON(cmd, scored)
	}
	if len(scored) == 0 {
		cmd.Println("No similar items found.")
		return nil
	}
	for _, s := range scored {
		cmd.Printf("%s ", styles.Muted.Render(fmt.Sprintf("%.2f", s.Score)))
		printItemLine(cmd, s.Item)
	}
	return nil
}

func printItemLine(cmd *cobra.Command, item *domain.Item) {
	cmd.Printf("%-8s %s\n", item.Metadata.Type, styles.Title.Render(item.Metadata.Title))
	cmd.Printf("         %s %s\n", styles.Muted.Render(item.ID), styles.Muted.Render(item.Source.URL))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
