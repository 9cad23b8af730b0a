package builtin

import (
	"context"
	"strings"
	"time"

	"github.com/harunnryd/voxa/pkg/tools"
)

func CurrentTime(now func() time.Time) tools.Tool {
	return tools.Tool{
		Schema: tools.Schema{
			Name:        "get_current_time",
			Description: "Get the current time and date. Use this when the user asks about the time or date.",
			Parameters: []tools.Parameter{
				{Name: "timezone", Type: tools.TypeString, Description: "The timezone: 'local' or an IANA name such as 'Europe/London'"},
			},
		},
		Handler: func(_ context.Context, args tools.Args) tools.Result {
			zone := args.String("timezone", "local")
			t := now()
			if !strings.EqualFold(zone, "local") {
				loc, err := time.LoadLocation(zone)
				if err != nil {
					return tools.Failure(tools.KindInvalidArguments, "unknown timezone: %s", zone)
				}
				t = t.In(loc)
			}
			return tools.Success(map[string]any{
				"time":        t.Format("15:04:05"),
				"date":        t.Format("2006-01-02"),
				"day_of_week": t.Weekday().String(),
				"timezone":    zone,
			})
		},
	}
}
