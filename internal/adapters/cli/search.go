package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samirrijal/localshop/internal/core/domain"
)

var (
	searchLat      float64
	searchLon      float64
	searchRadius   float64
	searchCategory string
	searchLocality string
	searchSort     string
	searchPage     int
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search shops",
	Long: `Searches live shops. With --lat and --lon the search is a proximity
search; otherwise a query is geocoded, falling back to matching shop text.`,
	Args: cobra.ArbitraryArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Float64Var(&searchLat, "lat", 0, "center latitude")
	searchCmd.Flags().Float64Var(&searchLon, "lon", 0, "center longitude")
	searchCmd.Flags().Float64VarP(&searchRadius, "radius", "r", 0, "radius in metres")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "category filter")
	searchCmd.Flags().StringVar(&searchLocality, "locality", "", "city or area slug")
	searchCmd.Flags().StringVar(&searchSort, "sort", "", "proximity, rating or newest")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "page number")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "results per page")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searcher == nil {
		return errors.New("search service not configured")
	}

	sortBy, err := domain.ParseSortOrder(searchSort)
	if err != nil {
		return err
	}

	req := domain.SearchRequest{
		RadiusMeters: searchRadius,
		TextQuery:    strings.Join(args, " "),
		Sort:         sortBy,
		Page:         searchPage,
		Limit:        searchLimit,
		Filters: domain.SearchFilters{
			Category: searchCategory,
			Locality: searchLocality,
		},
	}
	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	if latSet != lonSet {
		return errors.New("--lat and --lon must be given together")
	}
	if latSet {
		p := domain.NewGeoPoint(searchLon, searchLat)
		req.Center = &p
	}

	res, err := searcher.Search(commandContext(cmd), cliCaller, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}
	return outputSearchTable(cmd, res)
}

func outputSearchTable(cmd *cobra.Command, res *domain.SearchResult) error {
	if len(res.Results) == 0 {
		cmd.Println("No shops found.")
		return nil
	}

	cmd.Printf("%d shop(s), page %d of %d (%s search):\n", res.Total, res.Page, res.Pages, res.Mode)
	for i, hit := range res.Results {
		line := fmt.Sprintf("  [%d] %s", (res.Page-1)*res.Limit+i+1, hit.Name)
		if hit.Distance != nil {
			line += fmt.Sprintf(" - %.1f km", *hit.Distance)
		}
		if hit.Rating > 0 {
			line += fmt.Sprintf(" (%.1f★)", hit.Rating)
		}
		cmd.Println(line)
		if addr := hit.Address.String(); addr != "" {
			cmd.Printf("      %s\n", addr)
		}
	}
	return nil
}
