package builtin

import (
	"context"
	"fmt"

	"github.com/harunnryd/voxa/pkg/tools"
)

const dummyNote = "This is dummy data. Integrate a real provider for production use."

func Weather() tools.Tool {
	return tools.Tool{
		Schema: tools.Schema{
			Name:        "get_current_weather",
			Description: "Get the current weather for a specific location. Use this when the user asks about weather conditions.",
			Parameters: []tools.Parameter{
				{Name: "location", Type: tools.TypeString, Description: "The city or location name, e.g., 'New York', 'London', 'Tokyo'", Required: true},
				{Name: "unit", Type: tools.TypeString, Description: "Temperature unit", Enum: []string{"celsius", "fahrenheit"}},
			},
		},
		Handler: func(_ context.Context, args tools.Args) tools.Result {
			unit := args.String("unit", "celsius")
			temp := 22
			if unit == "fahrenheit" {
				temp = 72
			}
			return tools.Success(map[string]any{
				"location":    args.String("location", ""),
				"temperature": temp,
				"unit":        unit,
				"condition":   "Partly Cloudy",
				"humidity":    65,
				"wind_speed":  15,
				"note":        dummyNote,
			})
		},
	}
}

const maxSearchResults = 3

func SearchWeb() tools.Tool {
	return tools.Tool{
		Schema: tools.Schema{
			Name:        "search_web",
			Description: "Search the web for information. Use this when the user asks you to look up information you don't know.",
			Parameters: []tools.Parameter{
				{Name: "query", Type: tools.TypeString, Description: "The search query", Required: true},
				{Name: "num_results", Type: tools.TypeInteger, Description: "Number of search results to return (1-5)", Minimum: tools.Bound(1), Maximum: tools.Bound(5)},
			},
		},
		Handler: func(_ context.Context, args tools.Args) tools.Result {
			query := args.String("query", "")
			n := min(args.Int("num_results", 3), maxSearchResults)
			results := make([]map[string]any, 0, n)
			for i := 1; i <= n; i++ {
				results = append(results, map[string]any{
					"title":   fmt.Sprintf("Result %d for '%s'", i, query),
					"snippet": "This is a dummy search result snippet for " + query,
					"url":     fmt.Sprintf("https://example.com/result%d", i),
				})
			}
			return tools.Success(map[string]any{
				"query":   query,
				"results": results,
				"note":    dummyNote,
			})
		},
	}
}
