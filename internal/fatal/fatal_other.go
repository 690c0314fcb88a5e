//go:build !unix

package fatal

// Fatal signals cannot be trapped here; the process dies without a report.
func install(Handler) func() {
	return func() {}
}
