package library

// Reporter receives human readable progress and error messages while the
// repository works. Calls are fire and forget.
type Reporter interface {
	Report(message string)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(message string)

func (f ReporterFunc) Report(message string) { f(message) }

type nopReporter struct{}

func (nopReporter) Report(string) {}
