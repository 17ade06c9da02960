package engine

type ApplicationConfig struct {
	// The application name, used in logs.
	Name string
	// Frames per second the loop is limited to. Zero runs unthrottled.
	TargetFrameRate int
	// Frames between two stats lines in the log. Zero disables them.
	StatsInterval int
}
