package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mapforge/internal/apperr"
	"github.com/starford/mapforge/internal/catalog"
	"github.com/starford/mapforge/internal/mapdoc"
)

const maxImportSize = 10 << 20 // 10 MB

var (
	allowedMIME = map[string]bool{
		"application/json": true,
		"text/json":        true,
		"text/plain":       true,
	}

	unsafeIDRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

type importResult struct {
	MapID     string `json:"mapId"`
	Name      string `json:"name"`
	Points    int    `json:"points"`
	Paths     int    `json:"paths"`
	Locations int    `json:"locations"`
}

func (s *Server) importMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURI(rawURL)
	} else {
		data, err = fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxImportSize {
		return mcp.NewToolResultError(fmt.Sprintf("document too large: %d bytes (max %d)", len(data), maxImportSize)), nil
	}

	id := req.GetString("map_id", "")
	if id == "" {
		id = mapIDFromURL(rawURL)
	}
	id = sanitizeMapID(id)

	doc, err := mapdoc.Normalize(data, id, time.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not a map document: %v", err)), nil
	}

	taken, err := s.exists(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if taken {
		return mcp.NewToolResultError(fmt.Sprintf("map already exists: %s", id)), nil
	}

	canonical, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Save(ctx, id, canonical); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save map: %v", err)), nil
	}

	if s.catalog != nil {
		sum, err := catalog.Summarize(id, canonical, time.Now())
		if err == nil {
			err = s.catalog.Upsert(ctx, sum)
		}
		if err != nil {
			s.logger.Warn("import not cataloged", slog.String("map_id", id), slog.String("error", err.Error()))
		}
	}

	return jsonResult(importResult{
		MapID:     id,
		Name:      doc.MapInfo.Name,
		Points:    len(doc.Elements.Points),
		Paths:     len(doc.Elements.Paths),
		Locations: len(doc.Elements.Locations),
	}), nil
}

// exists reports whether the backend already holds a map with id. Remote
// backends may answer a missing map with an envelope instead of a 404.
func (s *Server) exists(ctx context.Context, id string) (bool, error) {
	data, err := s.store.Load(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := mapdoc.Normalize(data, id, time.Now()); errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return true, nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if mime != "" && !allowedMIME[mime] {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// fetchHTTP downloads a document from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}

	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImportSize {
		return nil, fmt.Errorf("document too large: exceeds %d bytes", maxImportSize)
	}
	return data, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// mapIDFromURL takes the last path segment without its .json extension,
// falling back to a UUID.
func mapIDFromURL(rawURL string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := strings.TrimSuffix(path.Base(parsed.Path), ".json")
			if base != "" && base != "." && base != "/" {
				return base
			}
		}
	}
	return uuid.New().String()
}

// sanitizeMapID replaces characters not allowed in map ids. Ids start with
// a letter or digit.
func sanitizeMapID(id string) string {
	id = strings.TrimLeft(unsafeIDRe.ReplaceAllString(id, "_"), "_-")
	if id == "" {
		id = uuid.New().String()
	}
	return id
}
