// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Larder recipe search and favorites via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/explorer"
	"github.com/starford/larder/internal/favorites"
)

// FavoritesURI is the resource listing the favorites collection.
const FavoritesURI = "larder://favorites"

// Server wraps the MCP server with Larder tools.
type Server struct {
	mcp *server.MCPServer
	exp *explorer.Explorer
}

// New creates a new MCP server with all Larder tools registered.
func New(exp *explorer.Explorer, version string) *Server {
	s := &Server{exp: exp}

	s.mcp = server.NewMCPServer(
		"Larder",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_recipes",
		mcp.WithDescription("Search the recipe catalog by keyword. Returns matching recipes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search keyword, e.g. pasta")),
	), s.searchRecipes)

	s.mcp.AddTool(mcp.NewTool("get_recipe",
		mcp.WithDescription("Get one recipe by id, including whether it is a favorite."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Recipe id")),
	), s.getRecipe)

	s.mcp.AddTool(mcp.NewTool("list_favorites",
		mcp.WithDescription("List saved favorite recipes, optionally filtered."),
		mcp.WithString("cuisine", mcp.Description("Exact cuisine, e.g. Italian")),
		mcp.WithString("difficulty", mcp.Description("Exact difficulty, e.g. Easy")),
		mcp.WithString("sort", mcp.Description("Order: added (default) or name"), mcp.Enum(favorites.SortAdded, favorites.SortName)),
	), s.listFavorites)

	s.mcp.AddTool(mcp.NewTool("add_favorite",
		mcp.WithDescription("Save a recipe as a favorite. Adding an existing favorite changes nothing."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Recipe id")),
	), s.addFavorite)

	s.mcp.AddTool(mcp.NewTool("remove_favorite",
		mcp.WithDescription("Remove a recipe from the favorites."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Recipe id")),
	), s.removeFavorite)

	s.mcp.AddTool(mcp.NewTool("clear_favorites",
		mcp.WithDescription("Remove every favorite."),
	), s.clearFavorites)

	// Resource: the favorites collection.
	s.mcp.AddResource(
		mcp.NewResource(FavoritesURI, "Favorite recipes",
			mcp.WithResourceDescription("Saved favorite recipes in insertion order."),
			mcp.WithMIMEType("application/json"),
		),
		s.readFavoritesResource,
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

// mutationResult turns a favorites mutation error into a tool result. A
// storage write failure is reported but the change stands.
func mutationResult(text string, err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultText(text)
	case errors.Is(err, apperr.ErrPersist):
		return mcp.NewToolResultText(fmt.Sprintf("%s (warning: %v)", text, err))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) searchRecipes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.exp.SearchNow(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(page), nil
}

func (s *Server) getRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v := s.exp.Recipe(ctx, id)
	if v.Err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %d", v.Error, id)), nil
	}
	return jsonResult(v), nil
}

func (s *Server) listFavorites(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := favorites.Filter{
		Cuisine:    req.GetString("cuisine", ""),
		Difficulty: req.GetString("difficulty", ""),
		Sort:       req.GetString("sort", ""),
	}
	return jsonResult(s.exp.FavoritesPage(f)), nil
}

func (s *Server) addFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, added, err := s.exp.AddFavoriteByID(ctx, id)
	if !added && err == nil {
		return mcp.NewToolResultText(fmt.Sprintf("already a favorite: %s", r.Name)), nil
	}
	return mutationResult(fmt.Sprintf("added: %s", r.Name), err), nil
}

func (s *Server) removeFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	removed, err := s.exp.RemoveFavorite(id)
	if !removed && err == nil {
		return mcp.NewToolResultText(fmt.Sprintf("not a favorite: %d", id)), nil
	}
	return mutationResult(fmt.Sprintf("removed: %d", id), err), nil
}

func (s *Server) clearFavorites(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mutationResult("cleared", s.exp.ClearFavorites()), nil
}

func (s *Server) readFavoritesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(s.exp.Favorites(favorites.Filter{}))
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FavoritesURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
