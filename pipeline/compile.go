package pipeline

import (
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/justconveyor/blueprint"
	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/logger"
)

type tag int

const (
	tagInitiator tag = iota
	tagProcessor
	tagSplitter
	tagCollector
	tagTerminator
)

const none = -1

// node is one arena slot. next, prev and paired are indices into the
// owning Pipeline's nodes.
type node struct {
	tag     tag
	name    string
	step    blueprint.Step
	onError *blueprint.ErrorHandler
	async   bool

	next, prev, paired int

	run runFunc
}

// Resolver supplies live carrier instances by type.
type Resolver interface {
	ResolveType(t reflect.Type) (any, error)
}

// Option configures compilation.
type Option func(*options)

type options struct {
	resolver Resolver
	log      *logger.Logger
	tracing  bool
}

// WithResolver resolves carriers from a container when compiling. Carriers
// the resolver does not know fall back to the prototype given to the builder.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithLogger sets the logger used for step failures.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithStepTracing opens a span around every step.
func WithStepTracing() Option {
	return func(o *options) { o.tracing = true }
}

// Compile validates a blueprint and binds it into an executable Pipeline.
// A blueprint can be compiled any number of times; pipelines share nothing.
func Compile(bp *blueprint.Blueprint, opts ...Option) (*Pipeline, error) {
	if err := bp.Err(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}

	p := &Pipeline{
		id:      bp.Name() + ":" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		name:    bp.Name(),
		seed:    bp.SeedType(),
		log:     o.log.WithFields(logger.Fields(logger.FieldBlueprint, bp.Name())),
		tracing: o.tracing,
	}

	declared := bp.Nodes()
	p.nodes = make([]node, 0, len(declared)+2)
	p.nodes = append(p.nodes, node{tag: tagInitiator, name: "I"})
	for _, d := range declared {
		bound, err := bind(d, o.resolver)
		if err != nil {
			return nil, err
		}
		p.nodes = append(p.nodes, node{
			tag:     tagOf(bound.Kind()),
			name:    bound.Name,
			step:    bound.Step,
			onError: bound.OnError,
			async:   bound.Step.Async(),
		})
	}
	p.nodes = append(p.nodes, node{tag: tagTerminator, name: "T"})

	for i := range p.nodes {
		p.nodes[i].prev, p.nodes[i].next, p.nodes[i].paired = i-1, i+1, none
	}
	p.nodes[len(p.nodes)-1].next = none

	if err := p.pair(); err != nil {
		return nil, err
	}
	for i := len(p.nodes) - 1; i >= 0; i-- {
		p.nodes[i].run = p.bindRun(i)
	}
	return p, nil
}

func tagOf(k blueprint.Kind) tag {
	switch k {
	case blueprint.KindSplitter:
		return tagSplitter
	case blueprint.KindCollector:
		return tagCollector
	default:
		return tagProcessor
	}
}

// bind swaps the prototype carrier for the resolver's live instance.
func bind(n blueprint.Node, r Resolver) (blueprint.Node, error) {
	if r == nil || n.CarrierType == nil {
		return n, nil
	}
	inst, err := r.ResolveType(n.CarrierType)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeServiceNotFound) {
			return n, nil
		}
		return n, err
	}
	c, ok := inst.(blueprint.Carrier)
	if !ok {
		return n, nil
	}
	return n.Rebind(c)
}

// pair matches splitters with collectors using a stack and marks every
// open splitter async when its span holds an async node.
func (p *Pipeline) pair() error {
	var open []int
	for i := range p.nodes {
		n := &p.nodes[i]
		switch n.tag {
		case tagSplitter:
			open = append(open, i)
		case tagCollector:
			if len(open) == 0 {
				return errors.InvalidSplitCollect(p.name)
			}
			s := open[len(open)-1]
			open = open[:len(open)-1]
			p.nodes[s].paired = i
			n.paired = s
		}
		if n.async {
			for _, s := range open {
				p.nodes[s].async = true
			}
		}
	}
	if len(open) != 0 {
		return errors.InvalidSplitCollect(p.name)
	}
	return nil
}
