package ports

// Frontend is an entry point that drives the assessment pipeline
type Frontend interface {
	// Start starts serving in the background
	Start() error

	// Stop stops the frontend
	Stop() error
}
