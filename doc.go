// Package hxbus provides a client-side event bus for server-rendered pages
// built with Go, Templ templates, and HTMX.
//
// Producers broadcast named events from trigger elements; observers
// subscribe to them and answer each one with a partial update of the page.
// The server only emits declarative calls. Routing an event to its
// observers is done entirely by the browser runtime (see lib/runtime).
//
// # Page Tree and Addressing
//
// A page is a tree of *Element values. Elements of a naming-container
// kind (forms) prefix the client ids of their descendants with their own
// id and the ':' separator:
//
//	page
//	└── form           -> "form"
//	    ├── save       -> "form:save"
//	    └── orders     -> "form:orders"
//
// References are resolved relative to the element that declares them.
// A leading ':' searches from the root; the tokens @this, @none, @all and
// @form are passed through unchanged. A reference that resolves to
// nothing is an error carrying the closest known id:
//
//	hxbus: no such element "pannel" (resolved from "form:orders"), did you mean "panel"?
//
// Applications with their own component tree implement Node to plug it
// into the resolver.
//
// # Producers
//
// A Producer binds a dispatch call to a client condition of its host:
//
//	save.Producers = []hxbus.Producer{hxbus.NewProducer("click", "saved").InGroup("orders")}
//
// renders
//
//	<button id="form:save" hx-on:click="hxbus.dispatch('orders','saved')">
//
// Producers attached to kinds without client behaviors are ignored.
//
// # Observers
//
// An Observer declares one subscription per event:
//
//	orders.Observer = hxbus.NewObserver("orders").On(hxbus.OnEvent{
//	    Event:  "saved",
//	    Render: hxbus.Ref("panel"),
//	})
//
// Declarations are expressions evaluated at render time by an Evaluator
// (lib/expr evaluates ${...} placeholders with jq). Each render pass
// rebuilds the observer's registration table from scratch and writes:
//
//	<span id="form:orders"><script>
//	hxbus.register('orders','saved','form:orders','@this','form:panel');
//	</script></span>
//
// Only the group and the immediate flag are durable; registrations are
// never persisted.
//
// # Round Trip
//
// When an observer is notified, the runtime posts the source, execute and
// render sets back to the page. Page.ServeHTTP restores the view state,
// lets the observers inside the execute set decode the request, delivers
// the queued action events (immediate observers first), and answers with
// the render set as out-of-band swaps. Listeners may call Emit to dispatch
// further events once the response settles:
//
//	page.OnAction("form:orders", func(ctx context.Context, ev hxbus.ActionEvent) error {
//	    hxbus.Emit(ctx, "orders", "refreshed")
//	    return nil
//	})
//
// # Security Model
//
// View state is encoded in a hidden input using one of two modes:
//   - Signed (default): HMAC-authenticated msgpack, visible but tamper-proof
//   - Encrypted: AES-GCM encrypted, opaque to clients
//
// CSRF protection is automatic: round trips require the HX-Request: true
// header that HTMX sends.
//
// # Declarations and Serving
//
// Pages can be declared in YAML (lib/decl), mounted on a chi router
// (adapters/chi), and pushed to from the server over WebSocket
// (lib/push). The hxbus command serves a directory of page declarations.
package hxbus
