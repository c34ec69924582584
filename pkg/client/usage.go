package phytodex

import (
	"context"
	"net/url"
)

// Usage returns the token consumption report for the given period. An
// empty period defaults to the current month.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (UsageReport, error) {
	path := "/api/v1/usage"
	if period != "" {
		path += "?period=" + url.QueryEscape(string(period))
	}

	var out UsageReport
	if err := c.getJSON(ctx, path, &out); err != nil {
		return UsageReport{}, err
	}
	return out, nil
}
