package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/ocr"
	"chart-signal-bot/internal/service"
)

func registerTools(server *mcp.Server, signals SignalAnalyzer, jobs JobQueue) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "signal_analyze",
		Description: "Fetch candles, generate and validate a trading signal for a pair and timeframe",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalAnalyzeInput) (*mcp.CallToolResult, signalAnalyzeOutput, error) {
		if signals == nil {
			return nil, signalAnalyzeOutput{}, fmt.Errorf("signal service unavailable")
		}
		symbol, err := normalizeSymbol(in.Symbol)
		if err != nil {
			return nil, signalAnalyzeOutput{}, err
		}
		timeframe, err := normalizeTimeframe(in.Timeframe)
		if err != nil {
			return nil, signalAnalyzeOutput{}, err
		}

		result, err := signals.Analyze(ctx, service.AnalysisRequest{
			Symbol:    symbol,
			Timeframe: timeframe,
			Source:    domain.SourceMCP,
		})
		if err != nil {
			return nil, signalAnalyzeOutput{}, toolError(err)
		}
		return nil, signalAnalyzeOutput{
			Symbol:    result.Symbol,
			Timeframe: result.Timeframe,
			Candles:   result.Candles,
			Signal:    result.Signal,
			Message:   result.Message,
			RawBlock:  result.Block,
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "trade_input_extract",
		Description: "Recover pair, timeframe, RSI and MACD from text recognized on a chart screenshot",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in tradeInputExtractInput) (*mcp.CallToolResult, tradeInputExtractOutput, error) {
		input, err := ocr.ExtractTradeInput(in.Text)
		if err != nil {
			return nil, tradeInputExtractOutput{}, err
		}
		return nil, tradeInputExtractOutput{Input: input, Recognized: ocr.Recognized(input)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jobs_enqueue_trade",
		Description: "Queue a trade analysis whose result is delivered to a Telegram chat",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in jobsEnqueueTradeInput) (*mcp.CallToolResult, jobsEnqueueTradeOutput, error) {
		if jobs == nil {
			return nil, jobsEnqueueTradeOutput{}, fmt.Errorf("job queue unavailable")
		}
		payload, symbol, timeframe, err := normalizeTradeCommand(in)
		if err != nil {
			return nil, jobsEnqueueTradeOutput{}, err
		}
		id, err := jobs.Enqueue(ctx, payload)
		if err != nil {
			return nil, jobsEnqueueTradeOutput{}, err
		}
		return nil, jobsEnqueueTradeOutput{JobID: id, Symbol: symbol, Timeframe: timeframe}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jobs_get",
		Description: "Get the status of a queued job",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in jobsGetInput) (*mcp.CallToolResult, jobsGetOutput, error) {
		if jobs == nil {
			return nil, jobsGetOutput{}, fmt.Errorf("job queue unavailable")
		}
		if in.ID == "" {
			return nil, jobsGetOutput{}, fmt.Errorf("id is required")
		}
		j, err := jobs.Get(ctx, in.ID)
		if err != nil {
			return nil, jobsGetOutput{}, err
		}
		view, err := newJobView(j)
		if err != nil {
			return nil, jobsGetOutput{}, err
		}
		return nil, jobsGetOutput{Job: view}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "queue_stats",
		Description: "Get depth and outcome counters of the analysis queue",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ queueStatsInput) (*mcp.CallToolResult, queueStatsOutput, error) {
		if jobs == nil {
			return nil, queueStatsOutput{}, fmt.Errorf("job queue unavailable")
		}
		stats, err := jobs.Stats(ctx)
		if err != nil {
			return nil, queueStatsOutput{}, err
		}
		return nil, queueStatsOutput{Stats: stats}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "signals_list",
		Description: "Get recent accepted signals with optional filters",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalsListInput) (*mcp.CallToolResult, signalsListOutput, error) {
		if signals == nil {
			return nil, signalsListOutput{}, fmt.Errorf("signal service unavailable")
		}
		filter, err := normalizeSignalFilter(in)
		if err != nil {
			return nil, signalsListOutput{}, err
		}
		result, err := signals.ListHistory(ctx, filter)
		if err != nil {
			return nil, signalsListOutput{}, err
		}
		return nil, signalsListOutput{Signals: result}, nil
	})
}

// toolError replaces internal failure detail with the notice a chat user would see.
func toolError(err error) error {
	if msg, ok := domain.NoticeFor(domain.JobTrade, err); ok {
		return errors.New(msg)
	}
	return err
}
