package router

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrControllerAttached is returned by Attach when another controller is attached to the camera.
	ErrControllerAttached = errors.New("router: camera already has a controller")

	// ErrNilController is returned by Attach when the controller is nil.
	ErrNilController = errors.New("router: controller is nil")
)

// Registry maps camera IDs to the controllers attached to them. It never owns the controllers:
// whoever manages the camera's lifecycle attaches and detaches them, and destroys them.
type Registry struct {
	mu          *sync.RWMutex
	controllers map[uint64]Controller
}

// NewRegistry creates an empty Registry.
//
// Returns:
//   - *Registry: the new registry
func NewRegistry() *Registry {
	return &Registry{
		mu:          &sync.RWMutex{},
		controllers: make(map[uint64]Controller),
	}
}

// Attach attaches c to the camera. Attaching the controller that is already attached does nothing.
//
// Parameters:
//   - cameraID: the camera's ID
//   - c: the controller
//
// Returns:
//   - error: ErrNilController, or ErrControllerAttached if a different controller is attached
func (r *Registry) Attach(cameraID uint64, c Controller) error {
	if c == nil {
		return ErrNilController
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.controllers[cameraID]; ok && cur != c {
		return fmt.Errorf("%w: camera %d has %q", ErrControllerAttached, cameraID, cur.Name())
	}
	r.controllers[cameraID] = c
	return nil
}

// Detach removes the camera's controller from the registry.
//
// Parameters:
//   - cameraID: the camera's ID
//
// Returns:
//   - Controller: the detached controller, nil if none was attached
func (r *Registry) Detach(cameraID uint64) Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.controllers[cameraID]
	delete(r.controllers, cameraID)
	return c
}

// Lookup returns the controller attached to the camera.
//
// Parameters:
//   - cameraID: the camera's ID
//
// Returns:
//   - Controller: the controller
//   - bool: false if no controller is attached
func (r *Registry) Lookup(cameraID uint64) (Controller, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[cameraID]
	return c, ok
}

// Len returns the number of attached controllers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}
