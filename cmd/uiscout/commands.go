package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uiscout/uiscout/internal/config"
)

type wireResult struct {
	Component struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		FilePath    string   `json:"file_path"`
		Category    string   `json:"category"`
		Tags        []string `json:"tags"`
	} `json:"component"`
	Score         float64  `json:"score"`
	MatchedFields []string `json:"matched_fields"`
}

func printResults(results []wireResult) {
	for i, r := range results {
		fmt.Printf("\n%s [score: %.3f]\n", colorize(ansiBold, fmt.Sprintf("%d. %s", i+1, r.Component.Name)), r.Score)
		if r.Component.Category != "" {
			fmt.Printf("  Category: %s\n", r.Component.Category)
		}
		if len(r.Component.Tags) > 0 {
			fmt.Printf("  Tags: %s\n", strings.Join(r.Component.Tags, ", "))
		}
		if len(r.MatchedFields) > 0 {
			fmt.Printf("  Matched: %s\n", strings.Join(r.MatchedFields, ", "))
		}
		desc := r.Component.Description
		if len(desc) > 200 {
			desc = desc[:200] + "..."
		}
		if desc != "" {
			fmt.Printf("  %s\n", desc)
		}
		fmt.Printf("  %s\n", colorize(ansiCyan, r.Component.FilePath))
	}
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over indexed components",
	Long: `Semantic search over indexed components.

Examples:
  uiscout search "button with loading state"
  uiscout search --limit 3 --category forms "date picker"
  uiscout search --tags interactive,input "text field"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")
		category, _ := cmd.Flags().GetString("category")
		tagsStr, _ := cmd.Flags().GetString("tags")
		propsStr, _ := cmd.Flags().GetString("props")

		req := map[string]any{"query": query}
		if limit > 0 {
			req["limit"] = limit
		}
		filters := map[string]any{}
		if category != "" {
			filters["category"] = category
		}
		if tagsStr != "" {
			filters["tags"] = splitCSV(tagsStr)
		}
		if propsStr != "" {
			filters["required_props"] = splitCSV(propsStr)
		}
		if len(filters) > 0 {
			req["filters"] = filters
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/search", req)
		if err != nil {
			return err
		}

		var result struct {
			Results []wireResult `json:"results"`
			Total   int          `json:"total"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Total == 0 {
			fmt.Println("No components found.")
			return nil
		}
		printResults(result.Results)
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 0, "maximum number of results")
	searchCmd.Flags().String("category", "", "restrict to a category")
	searchCmd.Flags().String("tags", "", "comma-separated tags a component must carry")
	searchCmd.Flags().String("props", "", "comma-separated prop names a component must declare")
}

// --- suggest ---

var suggestCmd = &cobra.Command{
	Use:   "suggest <description>",
	Short: "Suggest components for a use-case description",
	Long: `Suggest components for a use-case description. Unlike search, low
confidence matches are dropped rather than padding the list.

Example:
  uiscout suggest "user needs to pick a date range for a report"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		req := map[string]any{"query": query}
		if limit > 0 {
			req["limit"] = limit
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/search/suggest", req)
		if err != nil {
			return err
		}

		var result struct {
			Results []wireResult `json:"results"`
			Total   int          `json:"total"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Total == 0 {
			fmt.Println("No confident suggestions.")
			return nil
		}
		printResults(result.Results)
		return nil
	},
}

func init() {
	suggestCmd.Flags().Int("limit", 0, "maximum number of suggestions")
}

// --- scan ---

var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Scan a folder for component descriptors and index them",
	Long: `Scan a folder for component descriptor files (*.component.json and
*.stories.json) and index everything found.

Example:
  uiscout scan ./src/components`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		noStorybooks, _ := cmd.Flags().GetBool("no-storybooks")
		includeTests, _ := cmd.Flags().GetBool("include-tests")
		noRecurse, _ := cmd.Flags().GetBool("no-recurse")

		req := map[string]any{
			"folder_path":        folder,
			"include_storybooks": !noStorybooks,
			"include_tests":      includeTests,
			"recursive":          !noRecurse,
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Scanning %s...", folder)
		resp, err := client.post(cmd.Context(), "/scan", req)
		if err != nil {
			return err
		}

		var result struct {
			ComponentsFound int `json:"components_found"`
			Components      []struct {
				Name     string `json:"name"`
				FilePath string `json:"file_path"`
			} `json:"components"`
			Errors []string `json:"errors"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for _, c := range result.Components {
			fmt.Printf("  %s  %s\n", colorize(ansiGreen, c.Name), c.FilePath)
		}
		for _, e := range result.Errors {
			printError("%s", e)
		}

		if len(result.Errors) > 0 {
			printWarning("Indexed %d components, %d errors", result.ComponentsFound, len(result.Errors))
		} else {
			printSuccess("Indexed %d components", result.ComponentsFound)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().Bool("no-storybooks", false, "skip *.stories.json descriptors")
	scanCmd.Flags().Bool("include-tests", false, "include descriptors under test paths")
	scanCmd.Flags().Bool("no-recurse", false, "scan only the top-level folder")
}

// --- components ---

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "Inspect the indexed component catalog",
}

var componentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all indexed components",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/components")
		if err != nil {
			return err
		}

		var components []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Category string `json:"category"`
			FilePath string `json:"file_path"`
		}
		if err := decodeJSON(resp, &components); err != nil {
			return err
		}

		if len(components) == 0 {
			fmt.Println("No components indexed.")
			return nil
		}
		for _, c := range components {
			category := c.Category
			if category == "" {
				category = "-"
			}
			fmt.Printf("%s  %-24s %-16s %s\n",
				colorize(ansiCyan, shortID(c.ID)),
				c.Name,
				category,
				c.FilePath,
			)
		}
		return nil
	},
}

var componentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one component as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/components/"+args[0])
		if err != nil {
			return err
		}

		var component any
		if err := decodeJSON(resp, &component); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(component)
	},
}

var componentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a component from the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/components/"+args[0])
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		printSuccess("Deleted %s", args[0])
		return nil
	},
}

func init() {
	componentsCmd.AddCommand(componentsListCmd)
	componentsCmd.AddCommand(componentsShowCmd)
	componentsCmd.AddCommand(componentsDeleteCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(ansiBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}

		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
