// Package watcher watches local documentation projects with fsnotify and
// emits debounced batches of changed documentation files.
//
// Events are filtered against the index patterns and .gitignore files of
// each project, and coalesced per file so editor save bursts and temporary
// files produce at most one batch per debounce window.
//
// Usage:
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	_ = w.Add("panel", "/src/panel")
//	go w.Run(ctx)
//
//	for batch := range w.Events() {
//	    reindex(watcher.Projects(batch))
//	}
package watcher
