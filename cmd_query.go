package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/models"
)

var (
	queryRoles   []string
	queryDegree  int
	queryNodes   int
	queryLinks   int
	queryAliases bool
	queryYear    string
	searchLimit  int

	networkCmd = &cobra.Command{
		Use:   "network KIND ID",
		Short: "Print the network around an artist or label as JSON",
		Long: `Build (or read from the cache) the network around an entity.

KIND is "artist" or "label". Unset flags take the configured defaults.

Examples:
  discograph network artist 12
  discograph network label 7 --roles "Sublabel Of" --degree 3
  discograph network artist 12 --roles all --year 1990-1995 --aliases`,
		Args: cobra.ExactArgs(2),
		RunE: runNetwork,
	}

	timelineCmd = &cobra.Command{
		Use:   "timeline KIND ID",
		Short: "Print the relation counts of an artist or label per year",
		Long: `Count the dated relations of an entity per year and role.

Examples:
  discograph timeline artist 12
  discograph timeline artist 12 --aliases --roles "Member Of"`,
		Args: cobra.ExactArgs(2),
		RunE: runTimeline,
	}

	searchCmd = &cobra.Command{
		Use:   "search TEXT",
		Short: "Search artists and labels by name",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	randomCmd = &cobra.Command{
		Use:   "random",
		Short: "Print a random entity that takes part in a relation",
		Args:  cobra.NoArgs,
		RunE:  runRandom,
	}
)

func init() {
	networkCmd.Flags().StringSliceVar(&queryRoles, "roles", nil,
		`Relation roles to follow, comma separated, or "all"`)
	networkCmd.Flags().IntVar(&queryDegree, "degree", 0, "Maximum distance from the center")
	networkCmd.Flags().IntVar(&queryNodes, "nodes", 0, "Maximum number of nodes")
	networkCmd.Flags().IntVar(&queryLinks, "links", 0, "Maximum number of links")
	networkCmd.Flags().BoolVar(&queryAliases, "aliases", false, "Include the center's aliases at distance 0")
	networkCmd.Flags().StringVar(&queryYear, "year", "", `Only follow relations from a year or range, e.g. "1990" or "1990-1995"`)

	timelineCmd.Flags().StringSliceVar(&queryRoles, "roles", nil,
		`Only count relations with these roles, comma separated`)
	timelineCmd.Flags().BoolVar(&queryAliases, "aliases", false, "Also count the relations of the entity's aliases")

	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum number of results (default from config)")

	randomCmd.Flags().StringSliceVar(&queryRoles, "roles", nil,
		`Only sample relations with these roles, comma separated, or "all"`)

	rootCmd.AddCommand(networkCmd, timelineCmd, searchCmd, randomCmd)
}

// parseEntityArgs reads the KIND ID positional arguments.
func parseEntityArgs(args []string) (models.Entity, error) {
	kind, err := models.ParseEntityKind(args[0])
	if err != nil {
		return models.Entity{}, err
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return models.Entity{}, fmt.Errorf("%w: id must be a positive integer, got %q", apperrors.ErrInvalidParameter, args[1])
	}
	return models.Entity{Kind: kind, ID: id}, nil
}

func runNetwork(cmd *cobra.Command, args []string) error {
	center, err := parseEntityArgs(args)
	if err != nil {
		return err
	}
	roles, err := parseRoleFlags(queryRoles)
	if err != nil {
		return err
	}
	year, err := models.ParseYearFilter(queryYear)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	service, err := a.newDiscographService(ctx)
	if err != nil {
		return err
	}

	req := service.NewNetworkRequest(center)
	if roles != nil {
		req.Roles = roles
	}
	if cmd.Flags().Changed("degree") {
		req.MaxDegree = queryDegree
	}
	if cmd.Flags().Changed("nodes") {
		req.MaxNodes = queryNodes
	}
	if cmd.Flags().Changed("links") {
		req.MaxLinks = queryLinks
	}
	req.IncludeAliases = queryAliases
	req.Year = year

	network, err := service.GetNetwork(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), network)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	center, err := parseEntityArgs(args)
	if err != nil {
		return err
	}
	roles, err := parseRoleFlags(queryRoles)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	service, err := a.newDiscographService(ctx)
	if err != nil {
		return err
	}

	timeline, err := service.RelationCounts(ctx, center, queryAliases, roles)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), timeline)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	service, err := a.newDiscographService(ctx)
	if err != nil {
		return err
	}

	results, err := service.Search(ctx, strings.Join(args, " "), searchLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), results)
}

func runRandom(cmd *cobra.Command, args []string) error {
	roles, err := parseRoleFlags(queryRoles)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	service, err := a.newDiscographService(ctx)
	if err != nil {
		return err
	}

	entity, err := service.RandomEntity(ctx, roles)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"key":  entity.Key(),
		"kind": entity.Kind,
		"id":   entity.ID,
	})
}

// parseRoleFlags returns nil when no role was given and every known role for "all".
func parseRoleFlags(names []string) ([]models.Role, error) {
	if len(names) == 0 {
		return nil, nil
	}
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			return models.KnownRoles(), nil
		}
	}
	return models.ParseRoles(names)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
