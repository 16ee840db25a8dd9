package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/localshop/internal/core/domain"
)

const callerCtxKey ctxKey = "caller"

func callerFromContext(ctx context.Context) domain.Caller {
	if caller, ok := ctx.Value(callerCtxKey).(domain.Caller); ok {
		return caller
	}
	return domain.Caller{Role: domain.RoleCustomer}
}

func candidateMap(c domain.AddressCandidate) map[string]interface{} {
	return map[string]interface{}{
		"lat":              c.Coordinates.Lat,
		"lon":              c.Coordinates.Lon,
		"formattedAddress": c.Label(),
		"street":           c.Street,
		"locality":         c.Locality,
		"city":             c.City,
		"state":            c.State,
		"postalCode":       c.PostalCode,
		"country":          c.Country,
		"provider":         c.Provider,
		"confidence":       c.Confidence,
	}
}

func shopMap(s domain.Shop, distance *float64) map[string]interface{} {
	m := map[string]interface{}{
		"id":         s.ID,
		"name":       s.Name,
		"category":   s.Category,
		"tags":       s.Tags,
		"rating":     s.Rating,
		"priceRange": s.PriceRange,
		"status":     string(s.Status),
		"address":    s.Address.String(),
		"locality":   s.Address.Locality,
		"city":       s.Address.City,
	}
	if s.Location != nil {
		m["lat"] = s.Location.Lat
		m["lon"] = s.Location.Lon
	}
	if distance != nil {
		m["distance"] = *distance
	}
	return m
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	candidateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AddressCandidate",
		Fields: graphql.Fields{
			"lat":              &graphql.Field{Type: graphql.Float},
			"lon":              &graphql.Field{Type: graphql.Float},
			"formattedAddress": &graphql.Field{Type: graphql.String},
			"street":           &graphql.Field{Type: graphql.String},
			"locality":         &graphql.Field{Type: graphql.String},
			"city":             &graphql.Field{Type: graphql.String},
			"state":            &graphql.Field{Type: graphql.String},
			"postalCode":       &graphql.Field{Type: graphql.String},
			"country":          &graphql.Field{Type: graphql.String},
			"provider":         &graphql.Field{Type: graphql.String},
			"confidence":       &graphql.Field{Type: graphql.Float},
		},
	})

	shopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Shop",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"category":   &graphql.Field{Type: graphql.String},
			"tags":       &graphql.Field{Type: graphql.NewList(graphql.String)},
			"rating":     &graphql.Field{Type: graphql.Float},
			"priceRange": &graphql.Field{Type: graphql.String},
			"status":     &graphql.Field{Type: graphql.String},
			"address":    &graphql.Field{Type: graphql.String},
			"locality":   &graphql.Field{Type: graphql.String},
			"city":       &graphql.Field{Type: graphql.String},
			"lat":        &graphql.Field{Type: graphql.Float},
			"lon":        &graphql.Field{Type: graphql.Float},
			"distance":   &graphql.Field{Type: graphql.Float, Description: "Kilometres from the search center"},
		},
	})

	pageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ShopPage",
		Fields: graphql.Fields{
			"results": &graphql.Field{Type: graphql.NewList(shopType)},
			"page":    &graphql.Field{Type: graphql.Int},
			"limit":   &graphql.Field{Type: graphql.Int},
			"total":   &graphql.Field{Type: graphql.Int},
			"pages":   &graphql.Field{Type: graphql.Int},
			"mode":    &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"shop": &graphql.Field{
				Type:        shopType,
				Description: "Get a live shop by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					shop, err := deps.Shops.Get(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					caller := callerFromContext(p.Context)
					if shop.Status != domain.ShopLive && !caller.IsAdmin() && !caller.Owns(shop.OwnerID) {
						return nil, domain.ErrNotFound
					}
					return shopMap(*shop, nil), nil
				},
			},
			"shopsNearby": &graphql.Field{
				Type:        pageType,
				Description: "Search shops around a point, or by free text when no point is given",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":       &graphql.ArgumentConfig{Type: graphql.Float},
					"q":         &graphql.ArgumentConfig{Type: graphql.String},
					"radius":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"category":  &graphql.ArgumentConfig{Type: graphql.String},
					"minRating": &graphql.ArgumentConfig{Type: graphql.Float},
					"sort":      &graphql.ArgumentConfig{Type: graphql.String},
					"page":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					req := domain.SearchRequest{
						RadiusMeters: p.Args["radius"].(float64),
						Page:         p.Args["page"].(int),
						Limit:        p.Args["limit"].(int),
					}
					lat, hasLat := p.Args["lat"].(float64)
					lon, hasLon := p.Args["lon"].(float64)
					if hasLat != hasLon {
						return nil, &domain.ValidationError{Field: "coordinates", Reason: "lat and lon must be given together"}
					}
					if hasLat {
						center := domain.NewGeoPoint(lon, lat)
						req.Center = &center
					}
					if q, ok := p.Args["q"].(string); ok {
						req.TextQuery = q
					}
					if cat, ok := p.Args["category"].(string); ok {
						req.Filters.Category = cat
					}
					if r, ok := p.Args["minRating"].(float64); ok {
						req.Filters.MinRating = &r
					}
					sortArg, _ := p.Args["sort"].(string)
					sortBy, err := domain.ParseSortOrder(sortArg)
					if err != nil {
						return nil, err
					}
					req.Sort = sortBy

					res, err := deps.Search.Search(p.Context, callerFromContext(p.Context), req)
					if err != nil {
						return nil, err
					}
					results := make([]map[string]interface{}, 0, len(res.Results))
					for _, hit := range res.Results {
						results = append(results, shopMap(hit.Shop, hit.Distance))
					}
					return map[string]interface{}{
						"results": results,
						"page":    res.Page,
						"limit":   res.Limit,
						"total":   res.Total,
						"pages":   res.Pages,
						"mode":    string(res.Mode),
					}, nil
				},
			},
			"geocode": &graphql.Field{
				Type:        candidateType,
				Description: "Resolve a free-text address",
				Args: graphql.FieldConfigArgument{
					"address": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					cand, err := deps.Geocoding.Resolve(p.Context, callerFromContext(p.Context), p.Args["address"].(string))
					if err != nil {
						return nil, err
					}
					return candidateMap(cand), nil
				},
			},
			"autocomplete": &graphql.Field{
				Type:        graphql.NewList(candidateType),
				Description: "Place suggestions merged across providers",
				Args: graphql.FieldConfigArgument{
					"q":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":   &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":   &graphql.ArgumentConfig{Type: graphql.Float},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 5},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var bias *domain.GeoPoint
					lat, hasLat := p.Args["lat"].(float64)
					lon, hasLon := p.Args["lon"].(float64)
					if hasLat && hasLon {
						b := domain.NewGeoPoint(lon, lat)
						bias = &b
					}
					cands, err := deps.Geocoding.Autocomplete(p.Context, callerFromContext(p.Context), p.Args["q"].(string), bias, p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(cands))
					for _, cand := range cands {
						out = append(out, candidateMap(cand))
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		ctx := context.WithValue(c.UserContext(), callerCtxKey, callerFrom(c))
		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        ctx,
		})

		return c.JSON(result)
	}
}
