package corpus

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/savoir/kit"
)

// RegisterMCP registers the corpus tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerStartCrawlTool(srv)
	svc.registerCrawlStatusTool(srv)
	svc.registerCancelCrawlTool(srv)
	svc.registerRetrieveTool(srv)
	svc.registerScrapePageTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- start crawl ---

type startCrawlReq struct {
	SourceID string       `json:"source_id"`
	URL      string       `json:"url"`
	Options  CrawlOptions `json:"options"`
}

func (svc *Service) registerStartCrawlTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "corpus_start_crawl",
		Description: "Start a breadth-first website crawl and return the job id.",
		InputSchema: inputSchema(map[string]any{
			"source_id": map[string]any{"type": "string", "description": "Knowledge source identifier"},
			"url":       map[string]any{"type": "string", "description": "Start URL"},
			"options": map[string]any{
				"type":        "object",
				"description": "Crawl bounds: max_depth, max_pages, follow_external, include_paths, exclude_paths, disable_sitemap",
			},
		}, []string{"source_id", "url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*startCrawlReq)
		jobID, err := svc.StartCrawl(ctx, r.SourceID, r.URL, r.Options)
		if err != nil {
			return nil, err
		}
		return map[string]any{"job_id": jobID}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r startCrawlReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- crawl status ---

type jobIDReq struct {
	JobID string `json:"job_id"`
}

func (svc *Service) registerCrawlStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "corpus_crawl_status",
		Description: "Get the status and page counts of a crawl job.",
		InputSchema: inputSchema(map[string]any{
			"job_id": map[string]any{"type": "string", "description": "Crawl job id"},
		}, []string{"job_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*jobIDReq)
		return svc.CrawlStatus(ctx, r.JobID)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeJobID)
}

func (svc *Service) registerCancelCrawlTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "corpus_cancel_crawl",
		Description: "Request cancellation of a running crawl job.",
		InputSchema: inputSchema(map[string]any{
			"job_id": map[string]any{"type": "string", "description": "Crawl job id"},
		}, []string{"job_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*jobIDReq)
		cancelled, err := svc.CancelCrawl(ctx, r.JobID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"cancelled": cancelled}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeJobID)
}

func decodeJobID(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r jobIDReq
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

// --- retrieve ---

type retrieveReq struct {
	SourceID string `json:"source_id"`
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
}

func (svc *Service) registerRetrieveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "corpus_retrieve",
		Description: "Retrieve the most relevant stored snippets for a query.",
		InputSchema: inputSchema(map[string]any{
			"source_id": map[string]any{"type": "string", "description": "Knowledge source identifier"},
			"query":     map[string]any{"type": "string", "description": "Search query"},
			"top_k":     map[string]any{"type": "integer", "description": "Max candidates (default 5)"},
		}, []string{"source_id", "query"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*retrieveReq)
		candidates, err := svc.Retrieve(ctx, r.SourceID, r.Query, r.TopK)
		if err != nil {
			return nil, err
		}
		return map[string]any{"candidates": candidates}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r retrieveReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- scrape page ---

type scrapeReq struct {
	SourceID string `json:"source_id"`
	URL      string `json:"url"`
}

func (svc *Service) registerScrapePageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "corpus_scrape_page",
		Description: "Fetch and extract a single page, storing its chunks.",
		InputSchema: inputSchema(map[string]any{
			"source_id": map[string]any{"type": "string", "description": "Knowledge source identifier"},
			"url":       map[string]any{"type": "string", "description": "Page URL"},
		}, []string{"source_id", "url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*scrapeReq)
		return svc.ScrapeSinglePage(ctx, r.SourceID, r.URL)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r scrapeReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
