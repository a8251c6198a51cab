// Package policy decides, with CEL rules from the settings file, whether a
// recognised application launch is intercepted and sandboxed or handed to
// the real runtime unchanged.
package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/VikingOwl91/smallweb-shim/internal/config"
	"github.com/VikingOwl91/smallweb-shim/internal/invocation"
)

type Effect int

const (
	Intercept Effect = iota
	Delegate
)

func (e Effect) String() string {
	if e == Delegate {
		return config.EffectDelegate
	}
	return config.EffectIntercept
}

func parseEffect(s string) (Effect, error) {
	switch s {
	case config.EffectIntercept:
		return Intercept, nil
	case config.EffectDelegate:
		return Delegate, nil
	default:
		return Intercept, fmt.Errorf("unknown effect %q", s)
	}
}

// RequestContext is the activation a rule sees.
type RequestContext struct {
	Command    string
	Entrypoint string
	Port       uint16
	AppDir     string
}

func (rc RequestContext) activation() map[string]any {
	return map[string]any{
		"command":    rc.Command,
		"entrypoint": rc.Entrypoint,
		"port":       int64(rc.Port),
		"app_dir":    rc.AppDir,
	}
}

type rule struct {
	name    string
	effect  Effect
	program cel.Program
}

// Engine evaluates rules in order; the first rule whose expression is true
// decides.
type Engine struct {
	rules  []rule
	dflt   Effect
	source string
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("command", cel.StringType),
		cel.Variable("entrypoint", cel.StringType),
		cel.Variable("port", cel.IntType),
		cel.Variable("app_dir", cel.StringType),
	)
}

// New compiles every rule. An empty default means intercept.
func New(cfg config.PolicyConfig) (*Engine, error) {
	def := cfg.Default
	if def == "" {
		def = config.EffectIntercept
	}
	dflt, err := parseEffect(def)
	if err != nil {
		return nil, fmt.Errorf("policy default: %w", err)
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	e := &Engine{dflt: dflt, source: "default:" + dflt.String()}
	for _, r := range cfg.Rules {
		effect, err := parseEffect(r.Effect)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %q: compiling: %w", r.Name, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: program: %w", r.Name, err)
		}
		e.rules = append(e.rules, rule{name: r.Name, effect: effect, program: prg})
	}
	return e, nil
}

// Evaluate returns the decided effect and the name of the deciding rule,
// "default:<effect>" when none matched. A rule that errors or does not
// yield a bool fails closed to Delegate with rule "error:<name>".
func (e *Engine) Evaluate(rc RequestContext) (Effect, string) {
	act := rc.activation()
	for _, r := range e.rules {
		out, _, err := r.program.Eval(act)
		if err != nil {
			return Delegate, "error:" + r.name
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return Delegate, "error:" + r.name
		}
		if matched {
			return r.effect, r.name
		}
	}
	return e.dflt, e.source
}

// Intercept adapts the engine to the classifier's policy hook.
func (e *Engine) Intercept(cmd invocation.ParsedCommand, appDir string) (bool, string) {
	effect, name := e.Evaluate(RequestContext{
		Command:    cmd.Command,
		Entrypoint: cmd.Entrypoint,
		Port:       cmd.Port,
		AppDir:     appDir,
	})
	return effect == Intercept, name
}
