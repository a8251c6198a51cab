package shim

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/VikingOwl91/smallweb-shim/internal/invocation"
	"github.com/VikingOwl91/smallweb-shim/internal/sandbox"
)

// ScriptPlaceholder stands in for the launch script path in explanations.
const ScriptPlaceholder = "<script>"

// Explanation describes what Run would do with an invocation without
// doing it.
type Explanation struct {
	Self        string              `json:"self"`
	Action      string              `json:"action"`
	Application *explainApplication `json:"application,omitempty"`
	Delegate    *explainDelegate    `json:"delegate,omitempty"`
	Policy      explainPolicy       `json:"policy"`
	Sandbox     explainSandbox      `json:"sandbox"`
}

type explainApplication struct {
	AppDir     string   `json:"app_dir"`
	Exec       string   `json:"exec"`
	Entrypoint string   `json:"entrypoint"`
	Port       uint16   `json:"port"`
	Argv       []string `json:"argv,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type explainDelegate struct {
	Runtime      string `json:"runtime"`
	Path         string `json:"path"`
	Sanitized    bool   `json:"sanitized"`
	Executable   string `json:"executable,omitempty"`
	ResolvedPath string `json:"resolved_path,omitempty"`
	ComputedHash string `json:"computed_hash,omitempty"`
	Error        string `json:"error,omitempty"`
}

type explainPolicy struct {
	Default string              `json:"default"`
	Rules   []explainPolicyRule `json:"rules,omitempty"`
}

type explainPolicyRule struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Effect     string `json:"effect"`
}

type explainSandbox struct {
	Helper        string `json:"helper,omitempty"`
	Level         string `json:"level"`
	UserNamespace bool   `json:"user_namespace"`
	Landlock      bool   `json:"landlock"`
	LandlockABI   int    `json:"landlock_abi"`
}

const (
	actionRunApplication = "run-application"
	actionDelegate       = "delegate"
)

// Explain classifies opts.Args and reports the resulting plan. Only a
// failure to resolve the shim's own path is returned as an error; problems
// further along are recorded in the explanation.
func Explain(opts Options) (*Explanation, error) {
	s := newShim(opts)

	action, self, err := s.classify()
	if err != nil {
		return nil, err
	}

	caps := sandbox.DetectCapabilities(s.settings.Sandbox.Helper)
	out := &Explanation{
		Self: self,
		Policy: explainPolicy{
			Default: s.settings.Policy.Default,
		},
		Sandbox: explainSandbox{
			Helper:        caps.Helper,
			Level:         caps.EffectiveLevel(),
			UserNamespace: caps.UserNamespace,
			Landlock:      caps.Landlock,
			LandlockABI:   caps.LandlockABI,
		},
	}
	for _, rule := range s.settings.Policy.Rules {
		out.Policy.Rules = append(out.Policy.Rules, explainPolicyRule{
			Name:       rule.Name,
			Expression: rule.Expression,
			Effect:     rule.Effect,
		})
	}

	switch a := action.(type) {
	case invocation.RunApplication:
		out.Action = actionRunApplication
		out.Application = s.explainApplication(a, self, caps.Helper)
	case invocation.Delegate:
		out.Action = actionDelegate
		out.Delegate = s.explainDelegate(a, self)
	}
	return out, nil
}

func (s *shim) explainApplication(a invocation.RunApplication, self, helper string) *explainApplication {
	app := &explainApplication{
		AppDir:     a.AppDir,
		Exec:       a.Config.Exec,
		Entrypoint: a.Command.Entrypoint,
		Port:       a.Command.Port,
	}
	if helper == "" {
		app.Error = "bwrap not found"
		helper = "bwrap"
	}
	app.Argv = sandbox.Launch{
		Helper: helper,
		Spec:   sandbox.NewSynthesizer(s.logger).Synthesize(s.opts.Args[1:], self),
		Script: ScriptPlaceholder,
	}.Argv()
	return app
}

func (s *shim) explainDelegate(d invocation.Delegate, self string) *explainDelegate {
	pathVar := s.opts.Path
	if d.Sanitized {
		pathVar = d.Path
	}
	out := &explainDelegate{
		Runtime:   s.settings.Runtime,
		Sanitized: d.Sanitized,
	}
	result, pathVar, err := s.resolveRuntime(pathVar, self)
	out.Path = pathVar
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Executable = result.Path
	out.ResolvedPath = result.ResolvedPath
	out.ComputedHash = result.ComputedHash
	return out
}

// WriteJSON writes e as indented JSON.
func (e *Explanation) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling explanation: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
