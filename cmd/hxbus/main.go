// Command hxbus serves, renders and validates page declarations wired
// with the hxbus event bus.
package main

func main() {
	Execute()
}
