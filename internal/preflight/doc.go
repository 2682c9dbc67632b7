// Package preflight runs the environment checks behind 'docsmcp doctor'.
//
// It validates:
//   - at least one project is configured and local project paths exist
//   - git is installed when a project is fetched from a remote
//   - the data directory is writable and has free space
//   - the file descriptor limit suffices for watching
//   - the embeddings backend is reachable
//
// Required checks that fail make the command exit non-zero:
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
