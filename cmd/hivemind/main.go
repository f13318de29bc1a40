// Command hivemind turns a free-text task into a graph of role tasks and
// runs them against an executor backend.
package main

func main() {
	Execute()
}
