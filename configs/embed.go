// Package configs embeds the configuration templates written by
// `docsmcp init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Built-in defaults
//  2. User config (~/.config/docsmcp/config.yaml)
//  3. Project config (.docsmcp.yaml)
//  4. Environment variables (DOCSMCP_*)
package configs

import _ "embed"

// UserConfigTemplate holds machine-level settings: data directory,
// embedder and server defaults.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate lists the documentation projects to index.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
