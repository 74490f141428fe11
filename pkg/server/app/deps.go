package app

import (
	"github.com/rs/zerolog"

	"github.com/rowforge/rowforge/pkg/config"
	"github.com/rowforge/rowforge/pkg/source"
	"github.com/rowforge/rowforge/pkg/store"
)

// Deps holds dependencies for the server application.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Store is the durable job record backend (sqlite or memory).
	Store store.Store

	// Accessor reads source rows and writes enriched fields back.
	Accessor source.Accessor

	// Processor enriches one row at a time. When nil, the registered
	// processor for each job's case type is resolved at startup.
	Processor source.RowProcessor

	// Config manager for runtime configuration
	Config *config.Manager

	// Logger for structured logging (injected by caller)
	Logger zerolog.Logger
}
