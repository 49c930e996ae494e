package hxbus

import (
	"bytes"
	"context"
	"io"
	"slices"
	"testing"

	"github.com/a-h/templ"
)

func TestRegistryAddDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	defer func() {
		if recover() == nil {
			t.Error("Add() of a built-in kind did not panic")
		}
	}()
	reg.Add(KindButton, Behavior{})
}

func TestRegistryReplace(t *testing.T) {
	reg := NewRegistry()
	reg.Replace(KindPanel, Behavior{
		Render: func(ctx context.Context, w io.Writer, e *Element, attrs templ.Attributes, children templ.Component) error {
			_, err := io.WriteString(w, "<section>"+e.ClientID()+"</section>")
			return err
		},
	})

	root := NewElement(KindPage, "page", NewElement(KindPanel, "p1"))
	page, err := NewPage(root, WithRegistry(reg))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := page.Render(context.Background(), &buf, nil); err != nil {
		t.Fatal(err)
	}
	if want := `<div id="page"><section>p1</section></div>`; buf.String() != want {
		t.Errorf("Render() = %q, want %q", buf.String(), want)
	}
}

func TestRegistryCustomKind(t *testing.T) {
	reg := NewRegistry()
	reg.Add("card", Behavior{NamingContainer: true, Render: containerRenderer("article")})

	btn := NewElement(KindButton, "go")
	root := NewElement(KindPage, "page", NewElement("card", "c1", btn))
	if err := Compose(root, reg); err != nil {
		t.Fatal(err)
	}
	if got := btn.ClientID(); got != "c1:go" {
		t.Errorf("ClientID() = %q, want c1:go", got)
	}
}

func TestRegistryKinds(t *testing.T) {
	kinds := NewRegistry().Kinds()
	if !slices.IsSorted(kinds) {
		t.Errorf("Kinds() not sorted: %v", kinds)
	}
	for _, k := range []Kind{KindPage, KindForm, KindPanel, KindButton, KindLink, KindInput, KindText, KindObserver} {
		if !slices.Contains(kinds, k) {
			t.Errorf("Kinds() missing %q", k)
		}
	}
}
