// Package tools is the dispatch table for function calls intercepted
// from the live model. Handlers run locally and return a response map
// for the model plus an optional side-channel event for the client.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
)

// SideChannel is an extra client-facing event produced by a handler,
// delivered outside the model round trip.
type SideChannel struct {
	Event   string
	Payload map[string]any
}

// Outcome is a completed tool invocation. Response goes back to the
// model verbatim.
type Outcome struct {
	Response    map[string]any
	SideChannel *SideChannel
}

// Handler is one callable tool. RequiresAuth marks handlers that need
// user credentials; the registry rejects those calls itself when the
// session has none, without invoking Run.
type Handler struct {
	Name         string
	Description  string
	Parameters   *genai.Schema
	RequiresAuth bool
	Run          func(ctx context.Context, user *auth.Context, args map[string]any) (Outcome, error)
}

type Registry struct {
	byName map[string]*Handler
}

func NewRegistry(handlers ...*Handler) *Registry {
	r := &Registry{byName: make(map[string]*Handler, len(handlers))}
	for _, h := range handlers {
		if h == nil || h.Name == "" {
			continue
		}
		r.byName[h.Name] = h
	}
	return r
}

func (r *Registry) Lookup(name string) (*Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.byName[name]
	return h, ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Declarations returns the function declarations to advertise to the
// model. Auth-gated tools are omitted for unauthenticated sessions, so
// the model never calls what the session cannot run.
func (r *Registry) Declarations(authenticated bool) []*genai.FunctionDeclaration {
	if r == nil {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(r.byName))
	for _, name := range r.Names() {
		h := r.byName[name]
		if h.RequiresAuth && !authenticated {
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        h.Name,
			Description: h.Description,
			Parameters:  h.Parameters,
		})
	}
	return decls
}

// Execute runs one tool call. Unknown names and missing credentials
// fail with an error before the handler body runs; the caller turns
// that into an error entry for the model and client.
func (r *Registry) Execute(ctx context.Context, user *auth.Context, name string, args map[string]any) (Outcome, error) {
	h, ok := r.Lookup(name)
	if !ok {
		return Outcome{}, fmt.Errorf("unknown tool %q", name)
	}
	if h.RequiresAuth && !user.Authenticated() {
		return Outcome{}, fmt.Errorf("%s: user is not authenticated; ask them to sign in first", name)
	}
	return h.Run(ctx, user, args)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
