// Package cli is the shopctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samirrijal/localshop/internal/core/domain"
)

// Geocoder is the geocoding surface shopctl drives.
type Geocoder interface {
	Resolve(ctx context.Context, caller domain.Caller, text string) (domain.AddressCandidate, error)
	Reverse(ctx context.Context, caller domain.Caller, lat, lon float64) (domain.AddressCandidate, error)
	Autocomplete(ctx context.Context, caller domain.Caller, text string, bias *domain.GeoPoint, limit int) ([]domain.AddressCandidate, error)
}

// Searcher runs shop searches.
type Searcher interface {
	Search(ctx context.Context, caller domain.Caller, req domain.SearchRequest) (*domain.SearchResult, error)
}

var (
	version = "dev"

	geocoder Geocoder
	searcher Searcher

	jsonOutput bool
)

// cliCaller is the identity shopctl runs under; it has its own rate-limit key.
var cliCaller = domain.Caller{ID: "shopctl", Role: domain.RoleCustomer, Key: "cli:shopctl"}

var rootCmd = &cobra.Command{
	Use:           "shopctl",
	Short:         "Local shop directory toolbox",
	Long:          "shopctl geocodes addresses and searches the shop directory using the same services as the API.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
}

// SetServices installs the services the commands call.
func SetServices(g Geocoder, s Searcher) {
	geocoder = g
	searcher = s
}

// SetVersion sets the string printed by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command with output on stdout.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

// Root exposes the command tree, mainly for tests and doc generation.
func Root() *cobra.Command {
	return rootCmd
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
