package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samirrijal/localshop/internal/core/domain"
)

var (
	reverseLat float64
	reverseLon float64

	suggestLimit int
	suggestLat   float64
	suggestLon   float64
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode [address]",
	Short: "Resolve an address to coordinates",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGeocode,
}

var reverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "Resolve coordinates to an address",
	Args:  cobra.NoArgs,
	RunE:  runReverse,
}

var autocompleteCmd = &cobra.Command{
	Use:   "autocomplete [text]",
	Short: "Suggest places for partial input",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAutocomplete,
}

func init() {
	reverseCmd.Flags().Float64Var(&reverseLat, "lat", 0, "latitude")
	reverseCmd.Flags().Float64Var(&reverseLon, "lon", 0, "longitude")
	_ = reverseCmd.MarkFlagRequired("lat")
	_ = reverseCmd.MarkFlagRequired("lon")

	autocompleteCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 5, "maximum number of suggestions")
	autocompleteCmd.Flags().Float64Var(&suggestLat, "lat", 0, "bias latitude")
	autocompleteCmd.Flags().Float64Var(&suggestLon, "lon", 0, "bias longitude")

	rootCmd.AddCommand(geocodeCmd, reverseCmd, autocompleteCmd)
}

func runGeocode(cmd *cobra.Command, args []string) error {
	if geocoder == nil {
		return errors.New("geocoding service not configured")
	}
	cand, err := geocoder.Resolve(commandContext(cmd), cliCaller, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("geocode failed: %w", err)
	}
	return outputCandidate(cmd, cand)
}

func runReverse(cmd *cobra.Command, _ []string) error {
	if geocoder == nil {
		return errors.New("geocoding service not configured")
	}
	cand, err := geocoder.Reverse(commandContext(cmd), cliCaller, reverseLat, reverseLon)
	if err != nil {
		return fmt.Errorf("reverse geocode failed: %w", err)
	}
	return outputCandidate(cmd, cand)
}

func runAutocomplete(cmd *cobra.Command, args []string) error {
	if geocoder == nil {
		return errors.New("geocoding service not configured")
	}

	var bias *domain.GeoPoint
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
		p := domain.NewGeoPoint(suggestLon, suggestLat)
		bias = &p
	}

	suggestions, err := geocoder.Autocomplete(commandContext(cmd), cliCaller, strings.Join(args, " "), bias, suggestLimit)
	if err != nil {
		return fmt.Errorf("autocomplete failed: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, suggestions)
	}
	if len(suggestions) == 0 {
		cmd.Println("No suggestions.")
		return nil
	}
	for i, s := range suggestions {
		cmd.Printf("  [%d] %s (%s)\n", i+1, s.Label(), s.Provider)
	}
	return nil
}

func outputCandidate(cmd *cobra.Command, cand domain.AddressCandidate) error {
	if jsonOutput {
		return printJSON(cmd, cand)
	}
	cmd.Printf("%s\n", cand.Label())
	cmd.Printf("  lat,lon:    %.6f, %.6f\n", cand.Coordinates.Lat, cand.Coordinates.Lon)
	cmd.Printf("  provider:   %s (confidence %.2f)\n", cand.Provider, cand.Confidence)
	if cand.Locality != "" || cand.City != "" {
		cmd.Printf("  locality:   %s\n", strings.Trim(cand.Locality+", "+cand.City, ", "))
	}
	return nil
}
