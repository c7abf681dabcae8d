package dbcli

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bptlab/btree"
	"bptlab/config"
	"bptlab/server"
	"bptlab/store"
)

// Root command for the CLI
var RootCmd = &cobra.Command{
	Use:   "bptlab",
	Short: "CLI for managing B+Tree simulations",
	Long:  "A Command Line Interface (CLI) for creating named B+Trees, running traced operations against them and serving the visualization API.",
}

// Execute runs the root command
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %v\n", err)
		os.Exit(1)
	}
}

var (
	configPath string
	treeName   string
	showSteps  bool
	bulkCount  int
	bulkSeed   int64
)

// openManager loads the configuration and opens the tree store. The caller
// owns the returned manager and must close it.
func openManager() (*store.Manager, *config.Config, *zap.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	mgr, err := store.NewManager(cfg, logger)
	if err != nil {
		log.Fatalf("Error opening store: %v", err)
	}
	return mgr, cfg, logger
}

// resolveTree picks the tree to operate on: the --tree flag when given,
// otherwise the currently selected tree.
func resolveTree(mgr *store.Manager) string {
	if treeName != "" {
		return treeName
	}
	name, err := mgr.CurrentTree()
	if err != nil {
		log.Fatalf("No tree selected. Create one with 'create-tree' or pass --tree.")
	}
	return name
}

// printResult summarizes an operation outcome, optionally dumping the trace.
func printResult(res *btree.Result) {
	if !res.Success {
		fmt.Fprintf(os.Stderr, "%s failed: %s\n", res.Operation, res.Error)
		os.Exit(1)
	}
	switch {
	case res.Value != nil && res.Key != nil:
		fmt.Printf("%s %s -> %s (%d steps)\n", res.Operation, res.Key, res.Value, len(res.Steps))
	case res.Keys != nil:
		fmt.Printf("%s returned %d results (%d steps)\n", res.Operation, len(res.Keys), len(res.Steps))
		for i := range res.Keys {
			fmt.Printf("  %s -> %s\n", res.Keys[i], res.Values[i])
		}
	default:
		fmt.Printf("%s ok (%d steps)\n", res.Operation, len(res.Steps))
	}
	if showSteps {
		for i, s := range res.Steps {
			fmt.Printf("  [%02d] %s\n", i, s.Type)
		}
	}
}

// Command to create a new named tree
var createTreeCmd = &cobra.Command{
	Use:   "create-tree [name]",
	Short: "Create a new named tree",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		meta, err := mgr.CreateTree(name)
		if err != nil {
			log.Fatalf("Error creating tree: %v", err)
		}
		fmt.Printf("Tree '%s' created (order %d).\n", meta.Name, meta.Order)
	},
}

// Command to list every stored tree
var listTreesCmd = &cobra.Command{
	Use:   "list-trees",
	Short: "List all stored trees",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		metas, err := mgr.ListTrees()
		if err != nil {
			log.Fatalf("Error listing trees: %v", err)
		}
		if len(metas) == 0 {
			fmt.Println("No trees stored.")
			return
		}
		current, _ := mgr.CurrentTree()
		for _, m := range metas {
			marker := " "
			if m.Name == current {
				marker = "*"
			}
			fmt.Printf("%s %-20s order=%d keys=%d height=%d updated=%s\n",
				marker, m.Name, m.Order, m.KeyCount, m.Height, m.UpdatedAt.Format(time.RFC3339))
		}
	},
}

// Command to delete a tree and its persisted state
var dropTreeCmd = &cobra.Command{
	Use:   "drop-tree <name>",
	Short: "Delete a tree and everything stored for it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		if err := mgr.DeleteTree(args[0]); err != nil {
			log.Fatalf("Error dropping tree: %v", err)
		}
		fmt.Printf("Tree '%s' dropped.\n", args[0])
	},
}

// Command to clear a tree's keys while keeping its history
var clearTreeCmd = &cobra.Command{
	Use:   "clear-tree <name>",
	Short: "Remove every key from a tree, keeping its WAL history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		if err := mgr.ClearTree(args[0]); err != nil {
			log.Fatalf("Error clearing tree: %v", err)
		}
		fmt.Printf("Tree '%s' cleared.\n", args[0])
	},
}

// Command to select the tree subsequent operations act on
var useCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the current tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		if err := mgr.SetCurrentTree(args[0]); err != nil {
			log.Fatalf("Error selecting tree: %v", err)
		}
		fmt.Printf("Now using tree '%s'.\n", args[0])
	},
}

// Command to show a tree's metadata and instrumentation state
var infoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show a tree's metadata, WAL position and cache counters",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		name := treeName
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			name = resolveTree(mgr)
		}

		meta, err := mgr.GetMetadata(name)
		if err != nil {
			log.Fatalf("Error reading tree: %v", err)
		}
		entry, err := mgr.GetTree(name)
		if err != nil {
			log.Fatalf("Error reading tree: %v", err)
		}
		stats := entry.Cache.Stats()

		fmt.Printf("Tree:      %s\n", meta.Name)
		fmt.Printf("Order:     %d\n", meta.Order)
		fmt.Printf("Keys:      %d\n", meta.KeyCount)
		fmt.Printf("Height:    %d\n", meta.Height)
		fmt.Printf("Next LSN:  %d (%d entries)\n", entry.WAL.NextLSN, entry.WAL.Len())
		fmt.Printf("Cache:     %d/%d pages, %d hits, %d misses, %d evictions\n",
			stats.Size, stats.MaxSize, stats.Hits, stats.Misses, stats.Evictions)
	},
}

// Command to insert a key-value pair into the current tree
var insertCmd = &cobra.Command{
	Use:   "insert <key> <value>",
	Short: "Insert a key-value pair into the current tree",
	Long:  "Keys and values are comma-separated typed columns, e.g. '42' or '42,string:eu-west'. Use TYPE:value to force a column type.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		key, err := parseKey(args[0])
		if err != nil {
			log.Fatalf("Invalid key: %v", err)
		}
		value, err := parseRecord(args[1])
		if err != nil {
			log.Fatalf("Invalid value: %v", err)
		}
		printResult(mgr.Insert(resolveTree(mgr), key, value))
	},
}

// Command to find a key in the current tree
var findCmd = &cobra.Command{
	Use:   "find <key>",
	Short: "Find a key in the current tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		key, err := parseKey(args[0])
		if err != nil {
			log.Fatalf("Invalid key: %v", err)
		}
		printResult(mgr.Search(resolveTree(mgr), key))
	},
}

// Command to update the value stored under an existing key
var updateCmd = &cobra.Command{
	Use:   "update <key> <new_value>",
	Short: "Update the value of an existing key in the current tree",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		key, err := parseKey(args[0])
		if err != nil {
			log.Fatalf("Invalid key: %v", err)
		}
		value, err := parseRecord(args[1])
		if err != nil {
			log.Fatalf("Invalid value: %v", err)
		}
		printResult(mgr.Update(resolveTree(mgr), key, value))
	},
}

// Command to delete a key from the current tree
var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a key from the current tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		key, err := parseKey(args[0])
		if err != nil {
			log.Fatalf("Invalid key: %v", err)
		}
		printResult(mgr.Delete(resolveTree(mgr), key))
	},
}

// Command to scan an inclusive key range
var rangeCmd = &cobra.Command{
	Use:   "range <start> <end>",
	Short: "Scan the inclusive key range [start, end] in the current tree",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		start, err := parseKey(args[0])
		if err != nil {
			log.Fatalf("Invalid start key: %v", err)
		}
		end, err := parseKey(args[1])
		if err != nil {
			log.Fatalf("Invalid end key: %v", err)
		}
		printResult(mgr.RangeQuery(resolveTree(mgr), start, end))
	},
}

// Command to fill the current tree with random data
var bulkLoadCmd = &cobra.Command{
	Use:   "bulk-load",
	Short: "Insert random key-value pairs into the current tree",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, _, _ := openManager()
		defer mgr.Close()

		seed := bulkSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		printResult(mgr.BulkLoad(resolveTree(mgr), bulkCount, seed))
	},
}

// Command to start the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the visualization API server",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, cfg, logger := openManager()
		defer mgr.Close()

		if err := server.Run(cfg, mgr, logger); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	},
}

func Init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	RootCmd.PersistentFlags().StringVar(&treeName, "tree", "", "Tree to operate on (defaults to the current tree)")
	RootCmd.PersistentFlags().BoolVar(&showSteps, "steps", false, "Print the step trace of the operation")

	bulkLoadCmd.Flags().IntVar(&bulkCount, "count", btree.DefaultBulkCount, "How many random pairs to insert")
	bulkLoadCmd.Flags().Int64Var(&bulkSeed, "seed", 0, "Random seed (0 uses the current time)")

	RootCmd.AddCommand(createTreeCmd)
	RootCmd.AddCommand(listTreesCmd)
	RootCmd.AddCommand(dropTreeCmd)
	RootCmd.AddCommand(clearTreeCmd)
	RootCmd.AddCommand(useCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(insertCmd)
	RootCmd.AddCommand(findCmd)
	RootCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(deleteCmd)
	RootCmd.AddCommand(rangeCmd)
	RootCmd.AddCommand(bulkLoadCmd)
	RootCmd.AddCommand(serveCmd)
}
