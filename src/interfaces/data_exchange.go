package interfaces

import "runtime-observer/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger is how the observer hands built views to external systems (Server/Push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast stores the view and pushes it to subscribed listeners.
	Broadcast(view models.MRuntimeView)

	// -----------------------------------------------------------------------------
	// UpdateView stores the view without pushing it (used during replay).
	UpdateView(view models.MRuntimeView)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
