// Package fatal turns platform crash notifications into reports the engine
// can forward to the IDE.
package fatal

// Location is where the debuggee was executing when the signal arrived.
type Location struct {
	File     string
	Line     int
	Function string
}

// Report describes one fatal condition. Adapters fill Kind and Message; the
// engine fills Location from its current frame when the adapter cannot.
type Report struct {
	Kind     string
	Message  string
	Location Location
}

type Handler func(Report)

// OnFatalSignal installs handler for the fatal signals of the platform. The
// returned function uninstalls it.
func OnFatalSignal(handler Handler) (stop func()) {
	return install(handler)
}
