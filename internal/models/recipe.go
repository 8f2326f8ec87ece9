// Package models defines the domain types for Larder.
package models

import (
	"encoding/json"
	"slices"
	"strings"
)

// Recipe is a dish as returned by the remote recipe API.
// Values are treated as immutable once decoded.
type Recipe struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Cuisine      string   `json:"cuisine"`
	Difficulty   string   `json:"difficulty"`
	MealType     []string `json:"mealType"`
	Image        string   `json:"image"`
	Instructions string   `json:"instructions,omitempty"`
}

// Clone returns a copy that shares no memory with r.
func (r Recipe) Clone() Recipe {
	out := r
	out.MealType = slices.Clone(r.MealType)
	if out.MealType == nil {
		out.MealType = []string{}
	}
	return out
}

// UnmarshalJSON accepts instructions either as a string or as a list of
// steps, which are joined with newlines.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	type plain Recipe
	var aux struct {
		plain
		Instructions json.RawMessage `json:"instructions,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Recipe(aux.plain)
	if r.MealType == nil {
		r.MealType = []string{}
	}
	r.Instructions = ""
	if len(aux.Instructions) == 0 || string(aux.Instructions) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.Instructions, &s); err == nil {
		r.Instructions = s
		return nil
	}
	var steps []string
	if err := json.Unmarshal(aux.Instructions, &steps); err != nil {
		return err
	}
	r.Instructions = strings.Join(steps, "\n")
	return nil
}

// SearchPage is one page of search results.
type SearchPage struct {
	Recipes []Recipe `json:"recipes"`
	Total   int      `json:"total"`
	Skip    int      `json:"skip"`
	Limit   int      `json:"limit"`
}
