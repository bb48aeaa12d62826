package panoptic

import (
	"context"
	"time"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

// RestartDelay separates a failed module run from its restart.
const RestartDelay = 3 * time.Second

// RunModuleWithGracefulRestart reruns a module that returned an error, e.g. a
// status server whose port was briefly taken. A nil return or a cancelled
// context ends it.
func RunModuleWithGracefulRestart(ctx context.Context, module *Module) {
	for {
		err := (*module).RunModule(ctx)
		if err == nil {
			return
		}
		Logger.Log.Errorf("module %s failed: %v, restart in %s", (*module).Name(), err, RestartDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(RestartDelay):
		}
	}
}

// Module is one long-running part of the daemon: the cycle scheduler, the
// metrics reporter or the status server.
type Module interface {
	// RunModule blocks until ctx is cancelled. A non-nil error gets the
	// module restarted.
	RunModule(ctx context.Context) error

	// Name is used in logs and must be unique within an engine.
	Name() string

	// Shutdown releases what cancelling the context does not, such as a
	// listening socket.
	Shutdown()
}
