// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes mapforge editing tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mapforge/internal/catalog"
	"github.com/starford/mapforge/internal/convert"
	"github.com/starford/mapforge/internal/geom"
	"github.com/starford/mapforge/internal/mapdoc"
	"github.com/starford/mapforge/internal/workspace"
)

const formatURI = "mapforge://document-format"

// Server wraps the MCP server with mapforge tools.
type Server struct {
	mcp     *server.MCPServer
	ws      *workspace.Workspace
	store   mapdoc.Persistence
	catalog catalog.Catalog
	logger  *slog.Logger
}

// New creates a new MCP server with all mapforge tools registered. store is
// the backend ws persists through and receives imported maps. cat may be nil,
// in which case list_maps reports nothing and imports are not cataloged.
func New(ws *workspace.Workspace, store mapdoc.Persistence, cat catalog.Catalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{ws: ws, store: store, catalog: cat, logger: logger}

	s.mcp = server.NewMCPServer(
		"Mapforge",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	mapIDArg := mcp.WithString("map_id", mcp.Required(), mcp.Description("Id of the map"))
	kindArg := mcp.WithString("kind", mcp.Required(),
		mcp.Description("Element kind"), mcp.Enum("point", "path", "location"))

	s.mcp.AddTool(mcp.NewTool("list_maps",
		mcp.WithDescription("List stored maps, optionally filtered by a substring of the id or name."),
		mcp.WithString("query", mcp.Description("Optional search string")),
	), s.listMaps)

	s.mcp.AddTool(mcp.NewTool("open_map",
		mcp.WithDescription("Load a map into the editing workspace. Reopening an open map discards unsaved edits."),
		mapIDArg,
	), s.openMap)

	s.mcp.AddTool(mcp.NewTool("get_map",
		mcp.WithDescription("Return the current document of an open map as canonical JSON."),
		mapIDArg,
	), s.getMap)

	s.mcp.AddTool(mcp.NewTool("add_point",
		mcp.WithDescription("Add a navigation point to an open map. The point goes to the active layer unless layer_id is set."),
		mapIDArg,
		mcp.WithNumber("x", mcp.Required(), mcp.Description("X coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Y coordinate")),
		mcp.WithString("name", mcp.Description("Point name; generated as Point-#### when empty")),
		mcp.WithString("type", mcp.Description("Point type")),
		mcp.WithString("layer_id", mcp.Description("Target layer")),
	), s.addPoint)

	s.mcp.AddTool(mcp.NewTool("move_element",
		mcp.WithDescription("Move a point, path or location so its anchor lands on (x, y)."),
		mapIDArg, kindArg,
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Id of the element")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Target X")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Target Y")),
	), s.moveElement)

	s.mcp.AddTool(mcp.NewTool("delete_element",
		mcp.WithDescription("Delete a point, path or location. The deletion can be undone."),
		mapIDArg, kindArg,
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Id of the element")),
	), s.deleteElement)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last command on an open map."),
		mapIDArg,
	), s.undo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone command on an open map."),
		mapIDArg,
	), s.redo)

	s.mcp.AddTool(mcp.NewTool("save_map",
		mcp.WithDescription("Persist an open map."),
		mapIDArg,
	), s.saveMap)

	s.mcp.AddTool(mcp.NewTool("snap_point",
		mcp.WithDescription("Snap a coordinate to the nearest point or path segment of an open map."),
		mapIDArg,
		mcp.WithNumber("x", mcp.Required(), mcp.Description("X coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Y coordinate")),
		mcp.WithNumber("grid_size", mcp.Description("Also snap to a grid of this size first")),
	), s.snapPoint)

	s.mcp.AddTool(mcp.NewTool("export_records",
		mcp.WithDescription("Export an open map as fleet control point, path and location records."),
		mapIDArg,
	), s.exportRecords)

	s.mcp.AddTool(mcp.NewTool("import_map",
		mcp.WithDescription("Store a new map from an http(s) URL or a base64 data URI. "+
			"The content must be a map document; read the format first via "+
			"get_document_format or the "+formatURI+" resource."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:application/json;base64,... URI")),
		mcp.WithString("map_id", mcp.Description("Id for the new map; derived from the URL when empty")),
	), s.importMap)

	s.mcp.AddTool(mcp.NewTool("get_document_format",
		mcp.WithDescription("Returns the canonical map document format."),
	), s.getDocumentFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Map Document Format",
			mcp.WithResourceDescription("Canonical JSON shape of a stored map document."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listMaps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.catalog == nil {
		return mcp.NewToolResultText("[]"), nil
	}
	maps, _, err := s.catalog.List(ctx, req.GetString("query", ""), 100, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(maps), nil
}

func (s *Server) openMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("map_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.ws.Open(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("opened %s: %d layers, %d points, %d paths, %d locations",
		id, len(doc.Layers), len(doc.Elements.Points), len(doc.Elements.Paths), len(doc.Elements.Locations))), nil
}

func (s *Server) getMap(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("map_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var doc *mapdoc.Document
	err = s.ws.View(id, func(ed *mapdoc.Editor) error {
		doc = ed.Document()
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) addPoint(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("map_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := mapdoc.Point{
		Name:    req.GetString("name", ""),
		Type:    req.GetString("type", ""),
		LayerID: req.GetString("layer_id", ""),
		X:       x,
		Y:       y,
	}

	var added mapdoc.Point
	err = s.ws.Edit(id, func(ed *mapdoc.Editor) error {
		if p.Type == "" {
			p.Type = ed.PointType()
		}
		cmd, err := mapdoc.NewAddCommand(mapdoc.KindPoint, p)
		if err != nil {
			return err
		}
		if err := ed.Execute(cmd); err != nil {
			return err
		}
		added, _ = ed.Point(cmd.ElementID)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(added), nil
}

// elementArgs reads the map id, element kind and element id arguments.
func elementArgs(req mcp.CallToolRequest) (string, mapdoc.ElementKind, string, error) {
	id, err := req.RequireString("map_id")
	if err != nil {
		return "", "", "", err
	}
	k, err := req.RequireString("kind")
	if err != nil {
		return "", "", "", err
	}
	kind := mapdoc.ElementKind(k)
	if !kind.Valid() {
		return "", "", "", fmt.Errorf("unknown element kind %q", k)
	}
	eid, err := req.RequireString("element_id")
	if err != nil {
		return "", "", "", err
	}
	return id, kind, eid, nil
}

func (s *Server) moveElement(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, kind, eid, err := elementArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	err = s.ws.Edit(id, func(ed *mapdoc.Editor) error {
		cmd, err := ed.MoveCommand(kind, eid, geom.Point{X: x, Y: y})
		if err != nil {
			return err
		}
		return ed.Execute(cmd)
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved %s %s to (%g, %g)", kind, eid, x, y)), nil
}

func (s *Server) deleteElement(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, kind, eid, err := elementArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	err = s.ws.Edit(id, func(ed *mapdoc.Editor) error {
		cmd, err := ed.DeleteCommand(kind, eid)
		if err != nil {
			return err
		}
		return ed.Execute(cmd)
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %s %s", kind, eid)), nil
}

func (s *Server) undo(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.step(req, "undo", (*mapdoc.Editor).Undo)
}

func (s *Server) redo(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.step(req, "redo", (*mapdoc.Editor).Redo)
}

func (s *Server) step(req mcp.CallToolRequest, name string, fn func(*mapdoc.Editor) bool) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("map_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var ok bool
	err = s.ws.Edit(id, func(ed *mapdoc.Editor) error {
		ok = fn(ed)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultText("nothing to " + name), nil
	}
	return mcp.NewToolResultText(name + " done"), nil
}

func (s *Server) saveMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("map_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.ws.Save(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved %s (version %s, updated %s)",
		id, doc.MapInfo.Version, doc.Metadata.UpdatedAt)), nil
}

func (s *Server) snapPoint(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("map_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts *geom.Options
	if size := req.GetFloat("grid_size", 0); size > 0 {
		o := s.ws.SnapDefaults()
		o.Grid, o.GridSize = true, size
		opts = &o
	}
	p, err := s.ws.Snap(id, geom.Point{X: x, Y: y}, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p), nil
}

func (s *Server) exportRecords(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("map_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var set convert.RecordSet
	err = s.ws.View(id, func(ed *mapdoc.Editor) error {
		set = convert.Records(ed.Document())
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(set), nil
}

func (s *Server) getDocumentFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
