// Package decl loads page declarations from YAML and builds them into
// hxbus element trees.
//
// A declaration describes the tree once; Build produces a fresh tree for
// each request so that observer registration tables are never shared.
//
//	page:
//	  id: page
//	  kind: page
//	  children:
//	    - id: form
//	      kind: form
//	      children:
//	        - id: save
//	          kind: button
//	          text: Save
//	          producers:
//	            - {on: click, event: saved, group: orders}
//	        - id: watcher
//	          kind: observer
//	          group: orders
//	          on:
//	            - {event: saved, render: summary}
//	        - {id: summary, kind: panel}
package decl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/pthm/hxbus"
)

// Document is a parsed declaration file.
type Document struct {
	Name string      `mapstructure:"name"`
	Page ElementDecl `mapstructure:"page"`
}

// ElementDecl declares one element.
type ElementDecl struct {
	ID        string            `mapstructure:"id"`
	Kind      string            `mapstructure:"kind"`
	Text      string            `mapstructure:"text"`
	Attrs     map[string]string `mapstructure:"attrs"`
	Children  []ElementDecl     `mapstructure:"children"`
	Producers []ProducerDecl    `mapstructure:"producers"`

	// Observer attributes, used when Kind is "observer".
	Group     string        `mapstructure:"group"`
	Immediate bool          `mapstructure:"immediate"`
	On        []OnEventDecl `mapstructure:"on"`
}

// ProducerDecl declares a producer on its enclosing element.
type ProducerDecl struct {
	On    string `mapstructure:"on"`
	Event string `mapstructure:"event"`
	Group string `mapstructure:"group"`
}

// OnEventDecl declares a subscription. Execute and Render accept either a
// whitespace-separated string or a list of references.
type OnEventDecl struct {
	Event   string `mapstructure:"event"`
	Execute any    `mapstructure:"execute"`
	Render  any    `mapstructure:"render"`
}

// Parse decodes a YAML declaration.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decl: parse yaml: %w", err)
	}

	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &doc,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decl: decode: %w", err)
	}
	return &doc, nil
}

// LoadFile reads and parses a declaration file. The document name
// defaults to the file name without extension.
func LoadFile(filename string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	}
	return doc, nil
}

// LoadGlob parses every file of fsys matching pattern (doublestar
// syntax, e.g. "pages/**/*.yaml"), keyed by document name.
func LoadGlob(fsys fs.FS, pattern string) (map[string]*Document, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("decl: glob %q: %w", pattern, err)
	}

	docs := make(map[string]*Document, len(matches))
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, err
		}
		doc, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		if doc.Name == "" {
			doc.Name = strings.TrimSuffix(path.Base(m), path.Ext(m))
		}
		if _, dup := docs[doc.Name]; dup {
			return nil, fmt.Errorf("decl: duplicate page name %q (%s)", doc.Name, m)
		}
		docs[doc.Name] = doc
	}
	return docs, nil
}

// Validate reports every missing required attribute.
func (d *Document) Validate(reg *hxbus.Registry) error {
	var errs []error
	var walk func(p string, e ElementDecl)
	walk = func(p string, e ElementDecl) {
		where := p + "/" + e.ID
		if e.Kind == "" {
			errs = append(errs, fmt.Errorf("%s: kind is required", where))
		} else if reg != nil {
			if _, ok := reg.Lookup(hxbus.Kind(e.Kind)); !ok {
				errs = append(errs, fmt.Errorf("%s: unknown kind %q", where, e.Kind))
			}
		}
		for i, pr := range e.Producers {
			if err := pr.producer().Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: producer %d: %w", where, i, err))
			}
		}
		if hxbus.Kind(e.Kind) != hxbus.KindObserver && (len(e.On) > 0 || e.Group != "") {
			errs = append(errs, fmt.Errorf("%s: observer attributes on a %q element", where, e.Kind))
		}
		for i, on := range e.On {
			o, err := on.onEvent()
			if err == nil {
				err = o.Validate()
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: on %d: %w", where, i, err))
			}
		}
		for _, c := range e.Children {
			walk(where, c)
		}
	}
	walk("", d.Page)
	return errors.Join(errs...)
}

// Build creates a fresh element tree from the declaration.
func (d *Document) Build() (*hxbus.Element, error) {
	return d.Page.build()
}

// NewPage builds a fresh tree and composes it into a page.
func (d *Document) NewPage(opts ...hxbus.PageOption) (*hxbus.Page, error) {
	root, err := d.Build()
	if err != nil {
		return nil, err
	}
	return hxbus.NewPage(root, opts...)
}

func (e ElementDecl) build() (*hxbus.Element, error) {
	el := hxbus.NewElement(hxbus.Kind(e.Kind), e.ID)
	el.Text = e.Text
	if len(e.Attrs) > 0 {
		el.Attrs = make(map[string]any, len(e.Attrs))
		for k, v := range e.Attrs {
			el.Attrs[k] = v
		}
	}
	for _, p := range e.Producers {
		el.Producers = append(el.Producers, p.producer())
	}

	if hxbus.Kind(e.Kind) == hxbus.KindObserver {
		obs := hxbus.NewObserver(e.Group).Immediate(e.Immediate)
		for _, on := range e.On {
			o, err := on.onEvent()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.ID, err)
			}
			obs.On(o)
		}
		el.Observer = obs
	}

	for _, c := range e.Children {
		child, err := c.build()
		if err != nil {
			return nil, err
		}
		el.Append(child)
	}
	return el, nil
}

func (p ProducerDecl) producer() hxbus.Producer {
	return hxbus.NewProducer(p.On, p.Event).InGroup(p.Group)
}

func (o OnEventDecl) onEvent() (hxbus.OnEvent, error) {
	on := hxbus.OnEvent{Event: o.Event}
	var err error
	if on.Execute, on.ExecuteList, err = tokens(o.Execute); err != nil {
		return hxbus.OnEvent{}, fmt.Errorf("execute: %w", err)
	}
	if on.Render, on.RenderList, err = tokens(o.Render); err != nil {
		return hxbus.OnEvent{}, fmt.Errorf("render: %w", err)
	}
	return on, nil
}

// tokens splits a string or list attribute into an optional expression
// and an optional literal token list. List elements are kept whole.
func tokens(v any) (*string, []string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil, nil
	case string:
		return hxbus.Ref(val), nil, nil
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: reference %#v is not a string", hxbus.ErrInvalidDeclaration, item)
			}
			items = append(items, s)
		}
		return nil, items, nil
	default:
		return nil, nil, fmt.Errorf("%w: unsupported value %#v", hxbus.ErrInvalidDeclaration, v)
	}
}
