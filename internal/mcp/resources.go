package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"chart-signal-bot/internal/domain"
)

func registerResources(server *mcp.Server, signals SignalAnalyzer, jobs JobQueue) {
	server.AddResource(&mcp.Resource{
		URI:         "market://supported-timeframes",
		Name:        "supported-timeframes",
		Description: "Timeframes suggested to users; any <number><unit> timeframe is accepted",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return jsonResource(req.Params.URI, domain.SupportedTimeframes)
	})

	server.AddResource(&mcp.Resource{
		URI:         "queue://stats",
		Name:        "queue-stats",
		Description: "Depth and outcome counters of the analysis queue",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if jobs == nil {
			return nil, fmt.Errorf("job queue unavailable")
		}
		stats, err := jobs.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, queueStatsOutput{Stats: stats})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "jobs://{id}",
		Name:        "job-by-id",
		Description: "Status of one queued job",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if jobs == nil {
			return nil, fmt.Errorf("job queue unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil || parsed.Scheme != "jobs" || parsed.Host == "" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		j, err := jobs.Get(ctx, parsed.Host)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		view, err := newJobView(j)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, jobsGetOutput{Job: view})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "signals://latest{?symbol,timeframe,action,limit}",
		Name:        "signals-latest",
		Description: "Recent accepted signals with optional symbol/timeframe/action/limit query params",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if signals == nil {
			return nil, fmt.Errorf("signal service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "signals" || parsed.Host != "latest" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		query := parsed.Query()
		input := signalsListInput{
			Symbol:    query.Get("symbol"),
			Timeframe: query.Get("timeframe"),
			Action:    query.Get("action"),
			Limit:     defaultSignalLimit,
		}
		if rawLimit := strings.TrimSpace(query.Get("limit")); rawLimit != "" {
			n, err := strconv.Atoi(rawLimit)
			if err != nil {
				return nil, fmt.Errorf("invalid limit: %s", rawLimit)
			}
			input.Limit = n
		}

		filter, err := normalizeSignalFilter(input)
		if err != nil {
			return nil, err
		}
		list, err := signals.ListHistory(ctx, filter)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, signalsListOutput{Signals: list})
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
