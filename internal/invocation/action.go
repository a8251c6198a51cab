package invocation

// Action is the outcome of classifying an invocation. It is either
// RunApplication or Delegate.
type Action interface {
	isAction()
}

// RunApplication intercepts the invocation and launches the application's
// exec command inside the sandbox.
type RunApplication struct {
	Config  AppConfig
	Command ParsedCommand
	// AppDir is the directory the config was found in.
	AppDir string
}

// Delegate hands the invocation to the real runtime unchanged. When
// Sanitized is set, Path is the PATH value to give it.
type Delegate struct {
	Path      string
	Sanitized bool
}

func (RunApplication) isAction() {}
func (Delegate) isAction()       {}
