package pubstatic

import (
	"fmt"
	"strings"
)

// Decision is the outcome of a preprocessor.
type Decision int

const (
	// Keep passes the item on to rendering.
	Keep Decision = iota
	// Exclude drops the item from output and from every collection.
	Exclude
)

func (d Decision) String() string {
	if d == Exclude {
		return "exclude"
	}
	return "keep"
}

// PreprocessContext is what a preprocessor knows about the current item
// besides its data and raw body.
type PreprocessContext struct {
	Mode      RunMode
	InputPath string
	Format    string
}

// PreprocessFunc inspects an item before rendering. It must return a new
// Metadata instead of changing data.
type PreprocessFunc func(ctx PreprocessContext, data Metadata, content []byte) (Metadata, Decision)

type preprocessor struct {
	name    string
	formats map[string]struct{} // nil matches every format
	fn      PreprocessFunc
}

// Preprocessors is an ordered set of named preprocessors.
type Preprocessors struct {
	list []preprocessor
}

// Add registers fn under name for the given formats. formats is "*" for
// every template format or a comma separated list such as "md,html".
func (p *Preprocessors) Add(name, formats string, fn PreprocessFunc) error {
	if name == "" {
		return fmt.Errorf("pubstatic: preprocessor name is required")
	}
	if fn == nil {
		return fmt.Errorf("pubstatic: preprocessor %q has no function", name)
	}
	for _, existing := range p.list {
		if existing.name == name {
			return fmt.Errorf("pubstatic: preprocessor %q already registered", name)
		}
	}
	pp := preprocessor{name: name, fn: fn}
	if strings.TrimSpace(formats) != "*" {
		pp.formats = make(map[string]struct{})
		for _, f := range FilterEmpty(strings.Split(formats, ",")) {
			pp.formats[strings.TrimPrefix(strings.ToLower(f), ".")] = struct{}{}
		}
	}
	p.list = append(p.list, pp)
	return nil
}

// Names returns registered preprocessor names in run order.
func (p *Preprocessors) Names() []string {
	names := make([]string, len(p.list))
	for i, pp := range p.list {
		names[i] = pp.name
	}
	return names
}

// Run applies every matching preprocessor in registration order. The first
// Exclude stops the chain.
func (p *Preprocessors) Run(ctx PreprocessContext, data Metadata, content []byte) (Metadata, Decision) {
	current := data
	for _, pp := range p.list {
		if pp.formats != nil {
			if _, ok := pp.formats[ctx.Format]; !ok {
				continue
			}
		}
		next, decision := pp.fn(ctx, current, content)
		if next != nil {
			current = next
		}
		if decision == Exclude {
			return current, Exclude
		}
	}
	return current, Keep
}
