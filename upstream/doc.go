// Package upstream defines the Adapter contract and the four concrete
// adapters (Download, TvManager, MovieManager, MediaLibrary) the
// orchestrator drives. Each adapter owns its own HTTP client and credential;
// the orchestrator never dials an upstream directly.
package upstream
