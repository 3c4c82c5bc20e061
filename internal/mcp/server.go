package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/pdf-field-extractor/internal/config"
	"github.com/a3tai/pdf-field-extractor/internal/descriptions"
	"github.com/a3tai/pdf-field-extractor/internal/extract"
	"github.com/a3tai/pdf-field-extractor/internal/pdf"
)

// maxListed bounds the files and records echoed back in text results.
const maxListed = 20

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	logger     *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *slog.Logger) (*Server, error) {
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		logger:     logger,
	}
	s.registerTools()
	return s, nil
}

// MCPServer exposes the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_search_directory",
		mcp.WithDescription(descriptions.PDFSearchDirectoryDescription),
		mcp.WithString("directory",
			mcp.Description("Directory to search, inside the configured root (default: the root)"),
		),
		mcp.WithString("query",
			mcp.Description("Optional fuzzy file-name filter"),
		),
	), s.handlePDFSearchDirectory)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_detect_fields",
		mcp.WithDescription(descriptions.PDFDetectFieldsDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
	), s.handlePDFDetectFields)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_find_pages",
		append(queryOptions(), mcp.WithDescription(descriptions.PDFFindPagesDescription))...,
	), s.handlePDFFindPages)

	extractOpts := append(queryOptions(),
		mcp.WithDescription(descriptions.PDFExtractByFieldDescription),
		mcp.WithString("output_dir",
			mcp.Description("Output root; a <FIELD>_<value> folder is created below it"),
		),
		mcp.WithBoolean("split",
			mcp.Description("Also write one PDF per matched page"),
		),
	)
	s.mcpServer.AddTool(mcp.NewTool("pdf_extract_by_field", extractOpts...), s.handlePDFExtractByField)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription(descriptions.PDFServerInfoDescription),
	), s.handlePDFServerInfo)
}

func queryOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("Value to look for, matched case-insensitively and literally"),
		),
		mcp.WithString("field",
			mcp.Description("Field label such as \"HEAT NO\"; required when match is field"),
		),
		mcp.WithString("match",
			mcp.Description("Match scope"),
			mcp.Enum(string(extract.MatchField), string(extract.MatchText), string(extract.MatchLine)),
			mcp.DefaultString(string(extract.MatchField)),
		),
		mcp.WithBoolean("discover",
			mcp.Description("Accept a field outside the vocabulary when the document carries it"),
			mcp.DefaultBool(false),
		),
	}
}

func findRequest(request mcp.CallToolRequest) (pdf.PDFFindPagesRequest, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return pdf.PDFFindPagesRequest{}, err
	}
	value, err := request.RequireString("value")
	if err != nil {
		return pdf.PDFFindPagesRequest{}, err
	}
	return pdf.PDFFindPagesRequest{
		Path:     path,
		Value:    value,
		Field:    request.GetString("field", ""),
		Match:    request.GetString("match", ""),
		Discover: request.GetBool("discover", false),
	}, nil
}

func (s *Server) progress(tool, path string) extract.ProgressFunc {
	return func(done, total int) {
		s.logger.Debug("progress", "tool", tool, "path", path, "done", done, "total", total)
	}
}

func (s *Server) handlePDFSearchDirectory(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	req := pdf.PDFSearchDirectoryRequest{
		Directory: request.GetString("directory", s.config.PDFDirectory),
		Query:     request.GetString("query", ""),
	}

	result, err := s.pdfService.PDFSearchDirectory(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if result.TotalCount == 0 {
		text := fmt.Sprintf("No PDF files found in directory: %s", result.Directory)
		if result.SearchQuery != "" {
			text += fmt.Sprintf(" (searched for: %s)", result.SearchQuery)
		}
		return mcp.NewToolResultText(text), nil
	}
	return mcp.NewToolResultText(formatPDFSearchDirectoryResult(result)), nil
}

func (s *Server) handlePDFDetectFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.DetectFields(ctx, pdf.PDFDetectFieldsRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPDFDetectFieldsResult(result)), nil
}

func (s *Server) handlePDFFindPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := findRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.FindPages(ctx, req, s.progress("pdf_find_pages", req.Path))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPDFFindPagesResult(result)), nil
}

func (s *Server) handlePDFExtractByField(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	find, err := findRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := pdf.PDFExtractByFieldRequest{
		PDFFindPagesRequest: find,
		OutputDir:           request.GetString("output_dir", ""),
	}
	if _, ok := request.GetArguments()["split"]; ok {
		split := request.GetBool("split", false)
		req.Split = &split
	}

	result, err := s.pdfService.ExtractByField(ctx, req, s.progress("pdf_extract_by_field", find.Path))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPDFExtractByFieldResult(result)), nil
}

func (s *Server) handlePDFServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.PDFServerInfo(ctx, pdf.PDFServerInfoRequest{}, s.config.ServerName, s.config.Version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPDFServerInfoResult(result)), nil
}

func formatPDFSearchDirectoryResult(result *pdf.PDFSearchDirectoryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d PDF file(s) in directory: %s\n", result.TotalCount, result.Directory)
	if result.SearchQuery != "" {
		fmt.Fprintf(&b, "Search query: %s\n", result.SearchQuery)
	}
	b.WriteString("\nFiles:\n")
	for i, file := range result.Files {
		if i >= maxListed {
			fmt.Fprintf(&b, "... and %d more files\n", len(result.Files)-maxListed)
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, file.Name)
		fmt.Fprintf(&b, "   Path: %s\n", file.Path)
		fmt.Fprintf(&b, "   Size: %d bytes\n", file.Size)
		fmt.Fprintf(&b, "   Modified: %s\n", file.ModifiedTime)
	}
	return b.String()
}

func formatPDFDetectFieldsResult(result *pdf.PDFDetectFieldsResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fields in %s (%d pages):\n", result.FilePath, result.TotalPages)
	if len(result.Fields) == 0 {
		b.WriteString("  none detected\n")
	}
	known := make(map[string]bool, len(result.Vocabulary))
	for _, f := range result.Vocabulary {
		known[f] = true
	}
	for _, f := range result.Fields {
		mark := ""
		if !known[f] {
			mark = " (outside vocabulary, query with discover=true)"
		}
		fmt.Fprintf(&b, "  • %s%s\n", f, mark)
	}
	fmt.Fprintf(&b, "\nVocabulary: %s\n", strings.Join(result.Vocabulary, ", "))
	return b.String()
}

func describeQuery(q extract.Query) string {
	if q.Mode == extract.MatchField || q.Mode == "" {
		return fmt.Sprintf("%s = %q", q.Field, q.Value)
	}
	return fmt.Sprintf("%q in any %s", q.Value, q.Mode)
}

func formatPDFFindPagesResult(result *pdf.PDFFindPagesResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", describeQuery(result.Query))
	fmt.Fprintf(&b, "File: %s (%d pages)\n", result.FilePath, result.TotalPages)
	fmt.Fprintf(&b, "Outcome: %s\n", result.Outcome)

	if result.Outcome == extract.OutcomeNoMatches {
		b.WriteString("\nNo page matched. Nothing was written.\n")
	} else {
		fmt.Fprintf(&b, "Matched pages (%d): %s\n", len(result.Pages), joinInts(result.Pages))
	}
	if len(result.OCRPages) > 0 {
		fmt.Fprintf(&b, "Read via OCR: %s\n", joinInts(result.OCRPages))
	}

	if len(result.Records) > 0 {
		b.WriteString("\nRecords:\n")
		for i, rec := range result.Records {
			if i >= maxListed {
				fmt.Fprintf(&b, "... and %d more pages\n", len(result.Records)-maxListed)
				break
			}
			fmt.Fprintf(&b, "  Page %d:", rec.Page)
			for _, f := range result.Fields {
				fmt.Fprintf(&b, " %s=%s;", f, rec.Values[f])
			}
			b.WriteString("\n")
		}
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "  ⚠️  %s\n", w)
		}
	}
	return b.String()
}

func formatPDFExtractByFieldResult(result *pdf.PDFExtractByFieldResult) string {
	text := formatPDFFindPagesResult(&result.PDFFindPagesResult)
	art := result.Artifacts
	if art == nil {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	fmt.Fprintf(&b, "\nOutput folder: %s\n", art.Dir)
	fmt.Fprintf(&b, "  Combined PDF: %s\n", art.Combined)
	fmt.Fprintf(&b, "  Summary: %s\n", art.Summary)
	fmt.Fprintf(&b, "  Report: %s\n", art.Report)
	if len(art.Split) > 0 {
		fmt.Fprintf(&b, "  Per-page files: %d\n", len(art.Split))
	}
	if art.RunID != "" {
		fmt.Fprintf(&b, "  Ledger run: %s\n", art.RunID)
	}
	return b.String()
}

func formatPDFServerInfoResult(result *pdf.PDFServerInfoResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	fmt.Fprintf(&b, "📁 Default Directory: %s\n", result.DefaultDirectory)
	fmt.Fprintf(&b, "📤 Output Directory: %s\n", result.OutputDirectory)
	fmt.Fprintf(&b, "📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	fmt.Fprintf(&b, "🏷️  Fields: %s\n", strings.Join(result.Fields, ", "))
	fmt.Fprintf(&b, "🔍 OCR: %s, rasterizer: %s\n\n", availability(result.OCRAvailable), availability(result.RasterizerAvailable))

	if len(result.DirectoryContents) > 0 {
		fmt.Fprintf(&b, "📂 Directory Contents (%d PDF files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 {
				fmt.Fprintf(&b, "   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			fmt.Fprintf(&b, "   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("📂 Directory Contents: No PDF files found in default directory\n\n")
	}

	if len(result.RecentRuns) > 0 {
		fmt.Fprintf(&b, "🗂️  Recent Runs (%d):\n", len(result.RecentRuns))
		for _, run := range result.RecentRuns {
			fmt.Fprintf(&b, "   %s  %s  %s  %s: %d of %d pages\n",
				run.CreatedAt.Local().Format("2006-01-02 15:04"), filepath.Base(run.Source),
				describeQuery(extract.Query{Field: run.Field, Value: run.Value, Mode: extract.MatchMode(run.Mode)}),
				run.Outcome, run.Matched, run.TotalPages)
		}
		b.WriteString("\n")
	}

	b.WriteString("🛠️  Available Tools:\n")
	for _, tool := range result.AvailableTools {
		fmt.Fprintf(&b, "\n• %s\n", tool.Name)
		fmt.Fprintf(&b, "  Description: %s\n", tool.Description)
		fmt.Fprintf(&b, "  Usage: %s\n", tool.Usage)
		fmt.Fprintf(&b, "  Parameters: %s\n", tool.Parameters)
	}

	b.WriteString("\n" + result.UsageGuidance)
	return b.String()
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

// Run serves MCP over stdin and stdout until ctx is cancelled or the input
// stream closes.
func (s *Server) Run(ctx context.Context) error {
	if !s.config.IsStdioMode() {
		return fmt.Errorf("server runs only in %s mode, got %q", config.ModeStdio, s.config.Mode)
	}
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve speaks the stdio transport over the given streams.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server",
		"mode", config.ModeStdio,
		"dir", s.config.PDFDirectory,
		"output", s.pdfService.OutputDir(),
	)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
