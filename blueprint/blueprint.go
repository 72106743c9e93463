package blueprint

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/kbukum/justconveyor/errors"
)

// Node is one declared element of a blueprint chain.
type Node struct {
	// Name is the label recorded in step history.
	Name    string
	Step    Step
	OnError *ErrorHandler

	// CarrierType and StepName are set for steps looked up on a carrier.
	CarrierType reflect.Type
	StepName    string

	inlineHandler bool
}

// Kind is the role of the node's step.
func (n Node) Kind() Kind { return n.Step.kind }

// Rebind looks the node's step up again on a live carrier instance.
func (n Node) Rebind(c Carrier) (Node, error) {
	if n.CarrierType == nil {
		return n, nil
	}
	steps, err := stepsOf(c)
	if err != nil {
		return n, err
	}
	ns, err := steps.lookup(n.Step.kind, n.StepName)
	if err != nil {
		return n, err
	}
	n.Step = ns.step
	if n.inlineHandler {
		return n, nil
	}
	n.OnError, err = steps.errorHandler(n.StepName)
	return n, err
}

// Blueprint is the declarative, uncompiled description of a pipeline.
// Builder methods record the first failure and turn later calls into
// no-ops; Err reports it.
type Blueprint struct {
	name  string
	seed  reflect.Type
	nodes []Node
	flow  reflect.Type
	err   error
}

// New starts a blueprint whose pipeline expects seeds of type T.
func New[T any](name string) *Blueprint {
	seed := reflect.TypeFor[T]()
	return &Blueprint{name: name, seed: seed, flow: seed}
}

// Name returns the blueprint name.
func (b *Blueprint) Name() string { return b.name }

// SeedType returns the type of the initial unit.
func (b *Blueprint) SeedType() reflect.Type { return b.seed }

// Err returns the first build failure.
func (b *Blueprint) Err() error { return b.err }

// Nodes returns a copy of the declared chain.
func (b *Blueprint) Nodes() []Node {
	out := make([]Node, len(b.nodes))
	copy(out, b.nodes)
	return out
}

// Apply appends the processor found on carrier. With no name the carrier
// must offer exactly one processor.
func (b *Blueprint) Apply(c Carrier, name ...string) *Blueprint {
	return b.fromCarrier(KindProcessor, c, name)
}

// Split appends the splitter found on carrier.
func (b *Blueprint) Split(c Carrier, name ...string) *Blueprint {
	return b.fromCarrier(KindSplitter, c, name)
}

// CollectBy appends the collector found on carrier.
func (b *Blueprint) CollectBy(c Carrier, name ...string) *Blueprint {
	return b.fromCarrier(KindCollector, c, name)
}

// ApplyFunc appends an inline processor.
func (b *Blueprint) ApplyFunc(name string, step Step) *Blueprint {
	return b.inline(KindProcessor, name, step)
}

// SplitFunc appends an inline splitter.
func (b *Blueprint) SplitFunc(name string, step Step) *Blueprint {
	return b.inline(KindSplitter, name, step)
}

// CollectFunc appends an inline collector such as GroupBy.
func (b *Blueprint) CollectFunc(name string, step Step) *Blueprint {
	return b.inline(KindCollector, name, step)
}

// Collect appends a collector that gathers all children into one list.
func (b *Blueprint) Collect(name ...string) *Blueprint {
	n := "collect"
	if len(name) > 0 && name[0] != "" {
		n = name[0]
	}
	return b.inline(KindCollector, n, Collect())
}

// OnError attaches an inline error processor to the last node.
func (b *Blueprint) OnError(handler any) *Blueprint {
	if b.err != nil {
		return b
	}
	if len(b.nodes) == 0 {
		b.err = errors.IncorrectErrorProcessor(b.name, "", "no step to attach to")
		return b
	}
	last := &b.nodes[len(b.nodes)-1]
	h, err := NewErrorHandler(b.name, last.Name, handler)
	if err != nil {
		b.err = err
		return b
	}
	last.OnError = h
	last.inlineHandler = true
	return b
}

func (b *Blueprint) fromCarrier(kind Kind, c Carrier, name []string) *Blueprint {
	if b.err != nil {
		return b
	}
	var want string
	if len(name) > 0 {
		want = name[0]
	}

	steps, err := stepsOf(c)
	if err != nil {
		b.err = err
		return b
	}
	ns, err := steps.lookup(kind, want)
	if err != nil {
		b.err = err
		return b
	}
	handler, err := steps.errorHandler(ns.name)
	if err != nil {
		b.err = err
		return b
	}

	return b.append(Node{
		Name:        strings.TrimPrefix(steps.carrier, "*") + "." + ns.name,
		Step:        ns.step,
		OnError:     handler,
		CarrierType: reflect.TypeOf(c),
		StepName:    ns.name,
	})
}

func (b *Blueprint) inline(kind Kind, name string, step Step) *Blueprint {
	if b.err != nil {
		return b
	}
	if !step.valid() || step.kind != kind {
		b.err = errors.FunctionNotFound(b.name, kind.String(), name)
		return b
	}
	if name == "" {
		name = fmt.Sprintf("%s#%d", kind, len(b.nodes)+1)
	}
	return b.append(Node{Name: name, Step: step})
}

func (b *Blueprint) append(n Node) *Blueprint {
	if !compatible(b.flow, n.Step.in) {
		b.err = errors.ParameterTypeMismatch(n.Name, b.flow.String(), n.Step.in.String())
		return b
	}
	if !n.Step.passthrough {
		b.flow = n.Step.out
	}
	b.nodes = append(b.nodes, n)
	return b
}

// compatible reports whether a value of type have can feed a step that
// takes want. Unknown types on either side are accepted.
func compatible(have, want reflect.Type) bool {
	if have == nil || want == nil {
		return true
	}
	if have.Kind() == reflect.Interface {
		return true
	}
	return have.AssignableTo(want)
}

func (b *Blueprint) String() string {
	parts := make([]string, len(b.nodes))
	for i, n := range b.nodes {
		parts[i] = n.Name
	}
	return b.name + "[" + strings.Join(parts, " -> ") + "]"
}
