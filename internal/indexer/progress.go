package indexer

// ProgressReporter provides callbacks for reporting extraction progress.
// Implementations can display progress bars, log messages, or remain silent.
// Callbacks may be invoked from worker goroutines.
type ProgressReporter interface {
	// OnDiscoveryStart is called when file discovery begins.
	OnDiscoveryStart()

	// OnDiscoveryComplete is called when file discovery finishes.
	OnDiscoveryComplete(files int)

	// OnPassStart is called before a pass over totalFiles files.
	OnPassStart(pass int, totalFiles int)

	// OnFileProcessed is called after each file of a pass.
	OnFileProcessed(pass int, fileName string)

	// OnComplete is called when extraction completes successfully.
	OnComplete(stats Stats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnDiscoveryStart()                         {}
func (n *NoOpProgressReporter) OnDiscoveryComplete(files int)             {}
func (n *NoOpProgressReporter) OnPassStart(pass int, totalFiles int)      {}
func (n *NoOpProgressReporter) OnFileProcessed(pass int, fileName string) {}
func (n *NoOpProgressReporter) OnComplete(stats Stats)                    {}
